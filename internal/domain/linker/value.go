package linker

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// valueKey returns the canonical encoding of a JSON value. Two values are
// equal for matching purposes iff their keys are equal: maps compare deeply,
// lists compare element-wise in order, and numbers compare by exact decimal
// value (1234 == 1234.0, 9007199254740993 != 9007199254740992) but never
// equal strings or booleans. Strings are keyed by their raw bytes, so invalid
// UTF-8 sequences stay distinct.
func valueKey(v any) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if t {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case string:
		sb.WriteString(strconv.Quote(t))
	case json.Number:
		writeNumber(sb, string(t))
	case float64:
		writeFloat(sb, t)
	case float32:
		writeFloat(sb, float64(t))
	case int:
		writeNumber(sb, strconv.FormatInt(int64(t), 10))
	case int32:
		writeNumber(sb, strconv.FormatInt(int64(t), 10))
	case int64:
		writeNumber(sb, strconv.FormatInt(t, 10))
	case uint64:
		writeNumber(sb, strconv.FormatUint(t, 10))
	case []any:
		sb.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeKey(sb, e)
		}
		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			writeKey(sb, t[k])
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "%T:%#v", v, v)
	}
}

// writeFloat keys a float by its shortest decimal form, the same digits a
// JSON encoder would print, so 0.1 matches the literal "0.1".
func writeFloat(sb *strings.Builder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		fmt.Fprintf(sb, "float:%v", f)
		return
	}
	writeNumber(sb, strconv.FormatFloat(f, 'g', -1, 64))
}

// writeNumber keys a decimal literal by its exact rational value.
func writeNumber(sb *strings.Builder, lit string) {
	r, ok := new(big.Rat).SetString(lit)
	if !ok {
		fmt.Fprintf(sb, "number:%s", lit)
		return
	}
	sb.WriteByte('#')
	sb.WriteString(r.RatString())
}

// ValuesEqual reports whether two JSON values are equal under matching rules.
func ValuesEqual(a, b any) bool {
	return valueKey(a) == valueKey(b)
}

// distinctValueKeys returns the sorted set of canonical keys of the
// top-level values of m.
func distinctValueKeys(m map[string]any) []string {
	seen := make(map[string]struct{}, len(m))
	keys := make([]string, 0, len(m))
	for _, v := range m {
		k := valueKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
