package linker

import (
	"sort"

	"github.com/corey/doclink/internal/ports"
)

// Separator joins parent and child keys in flattened paths.
const Separator = "."

// Flatten converts a nested document into a flat mapping of dotted path to
// leaf value. Only map[string]any values are recursed into; lists and every
// other value are leaves copied verbatim. Empty nested maps contribute no keys.
//
// Keys are visited in sorted order so the output is deterministic even when a
// literal dotted key ("a.b") collides with a nested path (a -> b). The literal
// key always sorts after its parent and therefore wins.
func Flatten(doc ports.Document) map[string]any {
	out := make(map[string]any, len(doc))
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + Separator + k
		}
		if child, ok := m[k].(map[string]any); ok {
			flattenInto(out, path, child)
			continue
		}
		out[path] = m[k]
	}
}
