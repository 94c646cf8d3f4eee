// Package csv centralizes the CSV conventions shared by the pipeline stages.
// Intermediate files are an ad hoc serialization contract between stages:
// comma-delimited, UTF-8, one header row, columns in writer order. Readers and
// writers in this package exist so every stage parses that contract the same
// way.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// NewReader returns an encoding/csv reader configured for pipeline
// intermediate files. Field counts are enforced against the header row
// (FieldsPerRecord default), since the files are written by upstream stages
// and a width mismatch means a broken contract, not dirty input.
func NewReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ','
	return cr
}

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	if strings.HasPrefix(headers[0], utf8BOM) {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

// ReadHeader reads the header row, stripping a UTF-8 BOM when present.
// io.EOF from an empty file is returned unchanged so callers can treat
// header-less files explicitly.
func ReadHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	return StripHeaderBOM(header), nil
}

// Index maps column names to their positions in the header. Duplicate names
// keep the first occurrence.
func Index(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

// RequireColumns verifies that every named column is present in idx. The
// error names the first missing column; a missing column is a contract
// violation between stages and fails the stage.
func RequireColumns(idx map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := idx[name]; !ok {
			return fmt.Errorf("csv: required column %q not found in header", name)
		}
	}
	return nil
}
