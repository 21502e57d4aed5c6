package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/schema"
)

const reportTitle = "Athlete Performance Report"

const pageCSS = "html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
	"body{font-family:Helvetica,Arial,sans-serif;color:#111827;background:#fff;margin:0;padding:0.6rem;} " +
	".report{max-width:820px;margin:0 auto;} h1{text-align:center;font-size:24pt;margin-bottom:4pt;} " +
	".season{text-align:center;color:#4b5563;font-weight:bold;margin-bottom:18pt;} " +
	"h2{font-size:16pt;border-bottom:2px solid #1d4ed8;padding-bottom:3pt;} " +
	"table{border-collapse:collapse;width:100%;font-size:11pt;} th,td{border:1px solid #d1d5db;padding:4pt 6pt;text-align:left;} " +
	"thead th{background:#f1f5f9;} .charts figure{margin:12pt 0;break-inside:avoid;page-break-inside:avoid;} " +
	".note{color:#6b7280;font-style:italic;} " +
	"@media print{ @page{size:A4;margin:12mm;} body{padding:0;} }"

// markdownEscaper backslash-escapes characters that carry meaning in
// CommonMark inline syntax or GFM tables.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `#`, `\#`, `|`, `\|`, `!`, `\!`, "\n", " ", "\r", " ",
)

// Document turns assembled athletes into standalone HTML pages.
type Document struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewDocument returns a Document using GFM markdown and a UGC sanitizing policy.
func NewDocument() *Document {
	return &Document{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Markdown writes the text part of an athlete report. Only sections the
// upload supports and values the athlete has are included.
func (d *Document) Markdown(ath assembler.Athlete, res *assembler.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", reportTitle)

	b.WriteString("## Athlete Information\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Name | %s |\n", markdownEscaper.Replace(ath.Name))
	if hasSection(res, assembler.SectionAnthropometrics) {
		for _, key := range []string{schema.KeyWeight, schema.KeyHeight} {
			if v, ok := ath.Lookup(key); ok {
				fmt.Fprintf(&b, "| %s | %s %s |\n", v.Label, formatValue(v.Value), v.Unit)
			}
		}
	}
	b.WriteString("\n")

	if hasSection(res, assembler.SectionDerived) && len(ath.Derived) > 0 {
		b.WriteString("## Derived Metrics\n\n")
		b.WriteString("| Metric | Value | Rating |\n|---|---|---|\n")
		for _, v := range ath.Derived {
			rating := string(v.Rating)
			if rating == "" {
				rating = "-"
			}
			fmt.Fprintf(&b, "| %s | %s %s | %s |\n", v.Label, formatValue(v.Value), v.Unit, rating)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Charts returns the SVG figures for every upload chart the athlete has a
// value for.
func (d *Document) Charts(ath assembler.Athlete, res *assembler.Result) []string {
	var out []string
	for _, c := range res.Charts {
		v, ok := ath.Lookup(c.Metric)
		if !ok {
			continue
		}
		caption := fmt.Sprintf("%s: %s %s (%s)", c.Title, formatValue(v.Value), c.Unit, v.Rating)
		out = append(out, "<figure>"+ChartSVG(c, v.Value)+"<figcaption>"+html.EscapeString(caption)+"</figcaption></figure>")
	}
	return out
}

// HTML renders the complete page for one athlete. Markdown output passes
// through the sanitizing policy; charts are generated here with escaped
// text and are appended afterwards.
func (d *Document) HTML(ath assembler.Athlete, res *assembler.Result) (string, error) {
	var body bytes.Buffer
	if err := d.md.Convert([]byte(d.Markdown(ath, res)), &body); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	content := d.policy.Sanitize(body.String())

	var charts strings.Builder
	if hasSection(res, assembler.SectionPerformance) {
		charts.WriteString("<section class='charts'><h2>Performance Metrics</h2>")
		figures := d.Charts(ath, res)
		if len(figures) == 0 {
			charts.WriteString("<p class='note'>No performance results recorded for this athlete.</p>")
		}
		for _, f := range figures {
			charts.WriteString(f)
		}
		charts.WriteString("</section>")
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>" +
		html.EscapeString(ath.Name+" - "+reportTitle) + "</title>" +
		"<style>" + pageCSS + "</style></head><body><div class='report'>" +
		injectSeason(content, res.Season) + charts.String() +
		"</div></body></html>", nil
}

// injectSeason places the season banner right after the title heading.
func injectSeason(content string, s schema.Season) string {
	banner := "<p class='season'>" + html.EscapeString(s.Label()) + "</p>"
	if i := strings.Index(content, "</h1>"); i >= 0 {
		i += len("</h1>")
		return content[:i] + banner + content[i:]
	}
	return banner + content
}

func hasSection(res *assembler.Result, s assembler.Section) bool {
	for _, got := range res.Sections {
		if got == s {
			return true
		}
	}
	return false
}
