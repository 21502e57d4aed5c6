// Package upload turns raw CSV bytes into a sanitized table, enforcing the
// structural limits before any cell is inspected.
package upload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/okian/perfreport/internal/domain/sanitize"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Stats summarises what sanitization did to an upload.
type Stats struct {
	Bytes     int64                   `json:"bytes"`
	Cells     int                     `json:"cells"`
	Sanitized map[sanitize.Threat]int `json:"sanitized"`
	Truncated int                     `json:"truncated"`
}

// SanitizedTotal is the number of neutralized cells across every category.
func (s Stats) SanitizedTotal() int {
	n := 0
	for _, c := range s.Sanitized {
		n += c
	}
	return n
}

// Table is a sanitized upload. Rows may be shorter than Headers.
type Table struct {
	Filename string
	Headers  []string
	Rows     [][]string
	Stats    Stats
}

// Parser validates and sanitizes CSV uploads. It is safe for concurrent use.
type Parser struct {
	limits    sanitize.Limits
	sanitizer *sanitize.Sanitizer
}

// NewParser creates a Parser.
func NewParser(limits sanitize.Limits, s *sanitize.Sanitizer) *Parser {
	if s == nil {
		s = sanitize.New()
	}
	return &Parser{limits: limits, sanitizer: s}
}

// Limits returns the structural limits the parser enforces.
func (p *Parser) Limits() sanitize.Limits { return p.limits }

// ReadAll reads at most the byte limit from r. declared is the size the
// caller was told about (e.g. Content-Length), or -1.
func (p *Parser) ReadAll(r io.Reader, declared int64) ([]byte, error) {
	if err := p.limits.CheckSize(declared); err != nil {
		return nil, err
	}
	if p.limits.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, p.limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := p.limits.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// Parse checks size, shape and emptiness in that order and only then
// sanitizes every header and cell. Any violation returns a
// *sanitize.StructuralViolation and no table.
func (p *Parser) Parse(filename string, data []byte) (*Table, error) {
	if err := p.limits.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &sanitize.StructuralViolation{Reason: sanitize.ReasonEmpty}
	}
	if err != nil {
		return nil, &sanitize.StructuralViolation{Reason: sanitize.ReasonMalformed, Detail: err.Error()}
	}
	if err := p.limits.CheckColumns(len(header)); err != nil {
		return nil, err
	}

	var raw [][]string
	count := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &sanitize.StructuralViolation{Reason: sanitize.ReasonMalformed, Detail: err.Error()}
		}
		if err := p.limits.CheckColumns(len(rec)); err != nil {
			return nil, err
		}
		count++
		if p.limits.MaxRows <= 0 || count <= p.limits.MaxRows {
			raw = append(raw, rec)
		}
	}
	if err := p.limits.CheckRows(count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &sanitize.StructuralViolation{Reason: sanitize.ReasonEmpty}
	}

	t := &Table{
		Filename: filename,
		Stats: Stats{
			Bytes:     int64(len(data)),
			Sanitized: make(map[sanitize.Threat]int),
		},
	}
	t.Headers = p.sanitizeRow(header, &t.Stats)
	t.Rows = make([][]string, len(raw))
	for i, rec := range raw {
		t.Rows[i] = p.sanitizeRow(rec, &t.Stats)
	}
	return t, nil
}

func (p *Parser) sanitizeRow(rec []string, st *Stats) []string {
	out := make([]string, len(rec))
	for i, cell := range rec {
		v := p.sanitizer.Sanitize(cell)
		out[i] = v.Value
		st.Cells++
		if v.Neutralized() {
			st.Sanitized[v.Threat]++
		}
		if v.Truncated {
			st.Truncated++
		}
	}
	return out
}
