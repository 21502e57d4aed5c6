// Package report renders assembled athletes into PDF reports and bundles
// team reports into ZIP archives.
package report

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/okian/perfreport/internal/domain/assembler"
)

// Report is one rendered athlete PDF.
type Report struct {
	Row      int
	Athlete  string
	Filename string
	PDF      []byte
}

// Generator builds documents and prints them.
type Generator struct {
	doc      *Document
	renderer PDFRenderer
}

// NewGenerator returns a Generator printing through renderer.
func NewGenerator(renderer PDFRenderer, opts ...Option) *Generator {
	g := &Generator{
		doc:      NewDocument(),
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Athlete renders the report for ath.
func (g *Generator) Athlete(ctx context.Context, res *assembler.Result, ath assembler.Athlete) (Report, error) {
	if g.renderer == nil {
		return Report{}, ErrNoRenderer
	}
	page, err := g.doc.HTML(ath, res)
	if err != nil {
		return Report{}, err
	}
	pdf, err := g.renderer.RenderPDF(ctx, page)
	if err != nil {
		return Report{}, fmt.Errorf("render %s: %w", Filename(ath.Name), err)
	}
	return Report{Row: ath.Row, Athlete: ath.Name, Filename: Filename(ath.Name), PDF: pdf}, nil
}

// Row renders the athlete assembled from data row.
func (g *Generator) Row(ctx context.Context, res *assembler.Result, row int) (Report, error) {
	ath, ok := res.Athlete(row)
	if !ok {
		return Report{}, fmt.Errorf("%w: row %d", ErrNoAthlete, row)
	}
	return g.Athlete(ctx, res, ath)
}

// Filename is "<Name>_performance_report.pdf" with whitespace and path
// separators turned into underscores and other punctuation dropped.
func Filename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '/', r == '\\':
			b.WriteRune('_')
		}
	}
	safe := strings.Trim(b.String(), ".")
	if safe == "" {
		safe = "Athlete"
	}
	return safe + "_performance_report.pdf"
}
