package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/okian/perfreport/internal/domain/assembler"
)

// Chart geometry in SVG user units.
const (
	chartWidth   = 480
	chartHeight  = 320
	plotLeft     = 64
	plotTop      = 40
	plotRight    = 400
	plotBottom   = 280
	barHalfWidth = 60
)

var bandColors = map[assembler.Rating]string{
	assembler.RatingExcellent: "#16a34a",
	assembler.RatingGood:      "#eab308",
	assembler.RatingAverage:   "#f97316",
	assembler.RatingPoor:      "#dc2626",
}

// formatValue renders a measurement with at most two decimals.
func formatValue(v float64) string {
	return humanize.FtoaWithDigits(v, 2)
}

// ChartSVG draws one bar over the rating bands of c. Values outside the
// axis are clamped for drawing but labelled with their real value.
func ChartSVG(c assembler.ChartSpec, v float64) string {
	e := c.Bands.Edges
	lo, hi := e[0], e[4]
	y := func(x float64) float64 {
		if x < lo {
			x = lo
		}
		if x > hi {
			x = hi
		}
		return plotBottom - (x-lo)/(hi-lo)*(plotBottom-plotTop)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="chart" width="%d" height="%d" viewBox="0 0 %d %d" role="img" aria-label="%s">`,
		chartWidth, chartHeight, chartWidth, chartHeight, html.EscapeString(c.Title))
	fmt.Fprintf(&b, `<text x="%d" y="24" text-anchor="middle" font-size="16" font-weight="bold">%s</text>`,
		chartWidth/2, html.EscapeString(c.Title))

	for _, r := range c.Bands.Regions() {
		top, bottom := y(r.To), y(r.From)
		fmt.Fprintf(&b, `<rect x="%d" y="%.1f" width="%d" height="%.1f" fill="%s" fill-opacity="0.3"/>`,
			plotLeft, top, plotRight-plotLeft, bottom-top, bandColors[r.Rating])
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" text-anchor="end" font-size="11">%s</text>`,
			plotRight-6, (top+bottom)/2+4, r.Rating)
	}
	for _, edge := range e {
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" text-anchor="end" font-size="10">%s</text>`,
			plotLeft-6, y(edge)+3, formatValue(edge))
	}

	mid := (plotLeft + plotRight) / 2
	top := y(v)
	fmt.Fprintf(&b, `<rect x="%d" y="%.1f" width="%d" height="%.1f" fill="#2563eb" stroke="#111827"/>`,
		mid-barHalfWidth, top, 2*barHalfWidth, plotBottom-top)
	fmt.Fprintf(&b, `<text x="%d" y="%.1f" text-anchor="middle" font-size="13" font-weight="bold">%s %s</text>`,
		mid, top-6, formatValue(v), html.EscapeString(c.Unit))

	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#111827"/>`, plotLeft, plotTop, plotLeft, plotBottom)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#111827"/>`, plotLeft, plotBottom, plotRight, plotBottom)
	fmt.Fprintf(&b, `<text x="16" y="%d" font-size="11" transform="rotate(-90 16 %d)" text-anchor="middle">%s</text>`,
		(plotTop+plotBottom)/2, (plotTop+plotBottom)/2, html.EscapeString(c.Unit))
	b.WriteString(`</svg>`)
	return b.String()
}
