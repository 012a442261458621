// Package samplefile reads sample and document files from disk.
//
// Sample files map a sample id to its description and come in three formats,
// chosen by extension:
//
//	.json  {"sample1": {"email": "a@example.com"}, ...}
//	.yaml  sample1: {email: a@example.com}
//	.toml  [sample1]
//	       email = "a@example.com"
//
// JSON and YAML files may instead hold a list of {sample_id, description}
// records. JSON and YAML keep file order; TOML tables come back sorted by id.
//
// Document files hold the records to ingest: a JSON object whose values are
// documents, a JSON array of documents, or JSONL with one document per line.
// Every value is normalized to the shapes encoding/json produces with
// UseNumber, so numbers are json.Number whatever the source format.
package samplefile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/corey/doclink/internal/ports"
)

// Format names a sample file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported sample file extension %q (want .json, .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// ReadSamples loads a sample file.
func ReadSamples(path string) ([]ports.SampleRecord, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	recs, err := ParseSamples(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// ParseSamples decodes sample data in the given format.
func ParseSamples(data []byte, format Format) ([]ports.SampleRecord, error) {
	switch format {
	case FormatJSON:
		return parseJSONSamples(data)
	case FormatYAML:
		return parseYAMLSamples(data)
	case FormatTOML:
		return parseTOMLSamples(data)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// sampleListItem is the list form of a sample file entry.
type sampleListItem struct {
	ID          string         `json:"sample_id" yaml:"sample_id"`
	Description map[string]any `json:"description" yaml:"description"`
}

func parseJSONSamples(data []byte) ([]ports.SampleRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []sampleListItem
		if err := unmarshalNumbers(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode sample list: %w", err)
		}
		return fromList(items)
	}

	entries, err := orderedObject(trimmed)
	if err != nil {
		return nil, err
	}
	out := make([]ports.SampleRecord, 0, len(entries))
	for _, e := range entries {
		desc, err := normalizeObject(e.value)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", e.key, err)
		}
		out = append(out, ports.SampleRecord{ID: e.key, Description: desc})
	}
	return out, nil
}

func parseYAMLSamples(data []byte) ([]ports.SampleRecord, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]

	switch doc.Kind {
	case yaml.SequenceNode:
		var items []sampleListItem
		if err := doc.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode sample list: %w", err)
		}
		return fromList(items)
	case yaml.MappingNode:
		out := make([]ports.SampleRecord, 0, len(doc.Content)/2)
		for i := 0; i+1 < len(doc.Content); i += 2 {
			id := doc.Content[i].Value
			var v any
			if err := doc.Content[i+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("sample %q: %w", id, err)
			}
			desc, err := normalizeObject(v)
			if err != nil {
				return nil, fmt.Errorf("sample %q: %w", id, err)
			}
			out = append(out, ports.SampleRecord{ID: id, Description: desc})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("yaml samples must be a mapping or a list")
	}
}

func parseTOMLSamples(data []byte) ([]ports.SampleRecord, error) {
	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	ids := make([]string, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]ports.SampleRecord, 0, len(ids))
	for _, id := range ids {
		desc, err := normalizeObject(tables[id])
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", id, err)
		}
		out = append(out, ports.SampleRecord{ID: id, Description: desc})
	}
	return out, nil
}

func fromList(items []sampleListItem) ([]ports.SampleRecord, error) {
	out := make([]ports.SampleRecord, 0, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("entry %d: missing sample_id", i)
		}
		desc, err := normalizeObject(it.Description)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", it.ID, err)
		}
		out = append(out, ports.SampleRecord{ID: it.ID, Description: desc})
	}
	return out, nil
}

// ReadDocuments loads a document file.
func ReadDocuments(path string) ([]ports.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	defer f.Close()

	docs, err := ParseDocuments(f, strings.EqualFold(filepath.Ext(path), ".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// ParseDocuments decodes documents. With lines set, every non-blank line is
// one JSON object; otherwise the input is a JSON object of documents or a
// JSON array of documents.
func ParseDocuments(r io.Reader, lines bool) ([]ports.Document, error) {
	if lines {
		return parseLines(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode document list: %w", err)
		}
		out := make([]ports.Document, 0, len(raw))
		for i, r := range raw {
			doc, err := decodeDocument(r)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			out = append(out, doc)
		}
		return out, nil
	}

	entries, err := orderedObject(trimmed)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Document, 0, len(entries))
	for _, e := range entries {
		doc, err := normalizeObject(e.value)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", e.key, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func parseLines(r io.Reader) ([]ports.Document, error) {
	var out []ports.Document
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		doc, err := decodeDocument(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, doc)
	}
	return out, sc.Err()
}

func decodeDocument(raw []byte) (ports.Document, error) {
	var doc map[string]any
	if err := unmarshalNumbers(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return doc, nil
}

type entry struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes the top-level members of a JSON object in file order.
func orderedObject(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object or array")
	}

	var out []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		out = append(out, entry{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

// normalizeObject round-trips v through encoding/json so every value has the
// shape the engine sees for wire documents.
func normalizeObject(v any) (map[string]any, error) {
	var data []byte
	switch t := v.(type) {
	case json.RawMessage:
		data = t
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}
	var out map[string]any
	if err := unmarshalNumbers(data, &out); err != nil {
		return nil, fmt.Errorf("not an object: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("not an object")
	}
	return out, nil
}

// unmarshalNumbers is json.Unmarshal with numbers kept as json.Number.
func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}
