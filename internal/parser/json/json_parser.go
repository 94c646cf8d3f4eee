// Package json implements a JSON parser that turns newline-delimited JSON
// objects into record maps while preserving each object's key order.
//
// It is deliberately simple and conservative:
//
//   - Supports newline-delimited JSON objects:
//     {"id":1,"name":"a"}
//     {"id":2,"name":"b"}
//   - Rejects non-object top-level values (arrays, primitives).
//   - Key order matters downstream: the CSV header of a sampled dataset is
//     derived from the first record's keys in their original order, so the
//     decoder reports keys as they appear in the document, not in Go map
//     iteration order.
//
// This matches a very common ETL pattern: NDJSON logs / exports.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Record is one decoded NDJSON object. Fields holds the decoded values
// (numbers as json.Number); Keys holds the object's top-level keys in
// document order.
type Record struct {
	Fields map[string]any
	Keys   []string
}

// Decoder wraps encoding/json.Decoder to provide a record-oriented API
// suitable for use in stream-based pipelines.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder constructs a Decoder from an io.Reader.
func NewDecoder(r io.Reader) *Decoder {
	d := json.NewDecoder(r)
	// UseNumber so callers can decide how to map numeric values.
	d.UseNumber()
	return &Decoder{dec: d}
}

// Next reads the next JSON object and converts it into a Record.
//
// It expects each top-level item in the stream to be a JSON object, e.g.:
//
//	{"id":1,"name":"a"}
//	{"id":2,"name":"b"}
//
// If the input contains a non-object top-level value, it returns an error
// (there is no per-line recovery; a malformed line fails the whole stage).
// io.EOF is returned when the stream is exhausted.
func (d *Decoder) Next() (Record, error) {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("json parser: decode: %w", err)
	}

	fields := map[string]any{}
	fdec := json.NewDecoder(bytes.NewReader(raw))
	fdec.UseNumber()
	if err := fdec.Decode(&fields); err != nil {
		return Record{}, fmt.Errorf("json parser: top-level value is not an object: %w", err)
	}

	keys, err := ObjectKeys(raw)
	if err != nil {
		return Record{}, err
	}
	return Record{Fields: fields, Keys: keys}, nil
}

// ObjectKeys returns the top-level keys of a JSON object in document order.
// It tokenizes the raw bytes rather than round-tripping through a Go map,
// which would lose ordering.
func ObjectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	t, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("json parser: keys: %w", err)
	}
	if d, ok := t.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("json parser: keys: top-level value is %v, want object", t)
	}

	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json parser: keys: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("json parser: keys: unexpected token %v", kt)
		}
		keys = append(keys, key)

		if err := skipValue(dec); err != nil {
			return nil, fmt.Errorf("json parser: keys: %w", err)
		}
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("json parser: keys: %w", err)
	}
	return keys, nil
}

// skipValue consumes exactly one JSON value (scalar, object, or array) from dec.
func skipValue(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := t.(json.Delim)
	if !ok {
		return nil // scalar
	}
	if d == '{' || d == '[' {
		for dec.More() {
			if err := skipValue(dec); err != nil {
				return err
			}
		}
		// Closing delimiter.
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	return nil
}
