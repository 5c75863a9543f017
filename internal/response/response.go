// Package response extracts JSON documents from free-form model output.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// ErrNoObject is returned when the text holds no brace-delimited object.
var ErrNoObject = errors.New("no JSON object found")

// ParseError reports model output that could not be turned into a document
// carrying the required keys.
type ParseError struct {
	Missing []string
	Err     error
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("parse response: missing keys %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Document is a decoded top-level JSON object.
type Document struct {
	raw    []byte
	fields map[string]json.RawMessage
}

// Raw returns the extracted object text.
func (d Document) Raw() []byte {
	return d.raw
}

// Has reports whether key is present (null counts as absent).
func (d Document) Has(key string) bool {
	v, ok := d.fields[key]
	return ok && string(v) != "null"
}

// Field returns the raw value of key.
func (d Document) Field(key string) (json.RawMessage, bool) {
	if !d.Has(key) {
		return nil, false
	}
	return d.fields[key], true
}

// Len returns the number of top-level keys.
func (d Document) Len() int {
	return len(d.fields)
}

// Decode unmarshals the whole object into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.raw, v)
}

// String returns the value of key when it is a JSON string, or the compact
// JSON text of any other value. Absent keys yield "".
func (d Document) String(key string) string {
	raw, ok := d.Field(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Strings returns key as a list of strings. A single string becomes a
// one-element list; absent or non-string values yield nil.
func (d Document) Strings(key string) []string {
	raw, ok := d.Field(key)
	if !ok {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

// Extract returns the text between the first '{' and the last '}'.
func Extract(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Parse locates the JSON object in text by brace scanning and decodes it.
// Model output wrapped in prose or code fences is accepted. When the scanned
// substring does not decode, trailing commas are stripped and decoding is
// retried once. Every key in required must be present.
func Parse(text string, required ...string) (Document, error) {
	obj, ok := Extract(text)
	if !ok {
		return Document{}, &ParseError{Err: ErrNoObject}
	}

	var fields map[string]json.RawMessage
	err := json.Unmarshal([]byte(obj), &fields)
	if err != nil {
		cleaned := trailingCommaPattern.ReplaceAllString(obj, "$1")
		if cerr := json.Unmarshal([]byte(cleaned), &fields); cerr != nil {
			return Document{}, &ParseError{Err: fmt.Errorf("decode object: %w", err)}
		}
		obj = cleaned
	}

	doc := Document{raw: []byte(obj), fields: fields}

	var missing []string
	for _, k := range required {
		if !doc.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return doc, &ParseError{Missing: missing}
	}
	return doc, nil
}
