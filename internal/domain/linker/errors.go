package linker

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/corey/doclink/internal/ports"
)

// Error kinds. Errors returned by the engine are marked with one of these so
// callers can classify them with errors.Is.
var (
	// ErrParse marks a payload that does not decode to a JSON object.
	ErrParse = errors.New("document parse error")

	// ErrPersistence marks a storage failure other than a missing group.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidSample marks a sample with an empty id or nil description.
	ErrInvalidSample = errors.New("invalid sample")
)

// ParseDocument decodes a single payload into a document. The payload must
// hold exactly one JSON object; arrays, scalars and trailing data are
// rejected with ErrParse. Numbers are kept as json.Number so large integers
// compare exactly.
func ParseDocument(payload []byte) (ports.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode payload"), ErrParse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Mark(errors.New("trailing data after JSON object"), ErrParse)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Mark(errors.Newf("payload is %s, want JSON object", jsonKind(v)), ErrParse)
	}
	return doc, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "unknown"
	}
}

// persistenceError wraps a store failure and marks it with ErrPersistence.
func persistenceError(err error, op, sampleID string) error {
	return errors.Mark(errors.Wrapf(err, "%s %q", op, sampleID), ErrPersistence)
}
