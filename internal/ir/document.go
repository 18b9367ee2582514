package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when generated text contains no JSON object.
var ErrNoJSON = errors.New("ir: no JSON object found in generated text")

// Document is a decoded IR candidate.
// Keys follow the wire format; values are whatever encoding/json produced.
type Document map[string]any

// ParseDocument decodes generated text into a Document.
// The text may be wrapped in markdown fences or surrounded by prose; the
// first top-level JSON object that decodes cleanly wins.
func ParseDocument(text string) (Document, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	// Fast path: the whole response is the object.
	var doc Document
	if err := json.Unmarshal([]byte(trimmed), &doc); err == nil && doc != nil {
		return doc, nil
	}

	candidates := findJSONCandidates(trimmed)
	if len(candidates) == 0 {
		return nil, ErrNoJSON
	}

	var lastErr error
	for _, c := range candidates {
		var d Document
		if err := json.Unmarshal([]byte(c), &d); err != nil {
			lastErr = err
			continue
		}
		return d, nil
	}
	return nil, fmt.Errorf("ir: decode generated JSON: %w", lastErr)
}

// Discriminator returns the variant tag carried by the document.
// Both `pattern` and `pattern_type` are accepted; `pattern` wins when both are set.
func (d Document) Discriminator() string {
	if s, ok := d["pattern"].(string); ok && s != "" {
		return s
	}
	if s, ok := d["pattern_type"].(string); ok {
		return s
	}
	return ""
}

// Metadata returns the metadata mapping, or nil when absent or not an object.
func (d Document) Metadata() map[string]any {
	m, _ := d["metadata"].(map[string]any)
	return m
}

// Domain returns metadata.domain, or "" when unset.
func (d Document) Domain() string {
	s, _ := d.Metadata()["domain"].(string)
	return s
}

// SetDomain writes metadata.domain, creating the metadata mapping if needed.
// A non-object metadata value is replaced.
func (d Document) SetDomain(domain string) {
	m := d.Metadata()
	if m == nil {
		m = map[string]any{}
		d["metadata"] = m
	}
	m["domain"] = domain
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		// Documents only ever hold JSON-decoded values.
		panic(fmt.Sprintf("ir: clone: %v", err))
	}
	var out Document
	_ = json.Unmarshal(raw, &out)
	return out
}

// Bytes returns the compact JSON encoding without HTML escaping.
func (d Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Indent returns a two-space indented JSON rendering used inside prompts.
func (d Document) Indent() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Items returns the object elements of the array stored at key.
// Non-object elements are skipped; a missing key yields nil.
func (d Document) Items(key string) []map[string]any {
	arr, _ := d[key].([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Decode converts a document into a typed view.
func Decode[T any](d Document) (T, error) {
	var out T
	raw, err := json.Marshal(d)
	if err != nil {
		return out, fmt.Errorf("ir: encode document: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("ir: decode %T: %w", out, err)
	}
	return out, nil
}

// FromValue converts a typed view back into a Document.
func FromValue(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ir: encode %T: %w", v, err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("ir: decode document: %w", err)
	}
	return d, nil
}
