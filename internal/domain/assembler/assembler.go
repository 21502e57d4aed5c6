// Package assembler turns a populated availability map into the charts,
// report sections and per-athlete values an upload can support.
package assembler

import (
	"fmt"
	"strings"

	"github.com/okian/perfreport/internal/domain/schema"
)

// Section is a block of the athlete report.
type Section string

const (
	SectionProfile         Section = "profile"
	SectionAnthropometrics Section = "anthropometrics"
	SectionPerformance     Section = "performance"
	SectionDerived         Section = "derived"
)

// Value is one resolved or derived measurement for an athlete.
type Value struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Unit   string  `json:"unit"`
	Value  float64 `json:"value"`
	Rating Rating  `json:"rating,omitempty"`
}

// Athlete holds everything the report layer needs for one data row.
type Athlete struct {
	// Row is the zero-based data row the athlete came from.
	Row     int     `json:"row"`
	Name    string  `json:"name"`
	Values  []Value `json:"values"`
	Derived []Value `json:"derived,omitempty"`
}

// Lookup finds a base or derived value by key.
func (a Athlete) Lookup(key string) (Value, bool) {
	for _, v := range a.Values {
		if v.Key == key {
			return v, true
		}
	}
	for _, v := range a.Derived {
		if v.Key == key {
			return v, true
		}
	}
	return Value{}, false
}

// Result is the assembled view of one upload.
type Result struct {
	Season   schema.Season `json:"season"`
	Charts   []ChartSpec   `json:"charts"`
	Sections []Section     `json:"sections"`
	Athletes []Athlete     `json:"athletes"`
}

// Athlete returns the athlete assembled from data row.
func (r *Result) Athlete(row int) (Athlete, bool) {
	for _, a := range r.Athletes {
		if a.Row == row {
			return a, true
		}
	}
	return Athlete{}, false
}

// Assembler decides what an upload can show. It is immutable after New.
type Assembler struct {
	registry *schema.Registry
	derived  []DerivedSpec
	charts   []ChartSpec
}

// New creates an Assembler over reg with the default derived metrics and charts.
func New(reg *schema.Registry, opts ...Option) *Assembler {
	a := &Assembler{
		registry: reg,
		derived:  DefaultDerived(),
		charts:   DefaultCharts(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the vocabulary the assembler was built over.
func (a *Assembler) Registry() *schema.Registry { return a.registry }

// Charts lists the charts that exist for the whole upload. A metric chart
// exists when its metric is available and in season; a chart over a derived
// metric also needs every dependency available.
func (a *Assembler) Charts(av *schema.AvailabilityMap, season schema.Season) []ChartSpec {
	var out []ChartSpec
	for _, m := range a.registry.Metrics() {
		if m.ChartID == "" || !av.Available(m.Key) || !m.AppliesTo(season) {
			continue
		}
		if c, ok := a.chart(m.ChartID); ok && !c.Derived {
			out = append(out, c)
		}
	}
	for _, d := range a.Derivable(av, season) {
		for _, c := range a.charts {
			if c.Derived && c.Metric == d.Key {
				out = append(out, c)
			}
		}
	}
	return out
}

// Derivable lists derived metrics in scope for season whose dependencies are
// all available in the upload. Individual rows may still lack a value.
func (a *Assembler) Derivable(av *schema.AvailabilityMap, season schema.Season) []DerivedSpec {
	var out []DerivedSpec
	for _, d := range a.derived {
		if d.AppliesTo(season) && a.dependenciesAvailable(av, d) {
			out = append(out, d)
		}
	}
	return out
}

// Sections lists the report sections the upload can fill.
func (a *Assembler) Sections(av *schema.AvailabilityMap, season schema.Season) []Section {
	out := []Section{SectionProfile}
	if av.Available(schema.KeyWeight) || av.Available(schema.KeyHeight) {
		out = append(out, SectionAnthropometrics)
	}
	if len(a.Charts(av, season)) > 0 {
		out = append(out, SectionPerformance)
	}
	if len(a.Derivable(av, season)) > 0 {
		out = append(out, SectionDerived)
	}
	return out
}

// Athlete resolves one data row. Base values are limited to available,
// in-season numeric metrics that hold a finite number in this row. Derived
// metrics whose dependencies are missing for the row are omitted.
func (a *Assembler) Athlete(av *schema.AvailabilityMap, row []string, index int, season schema.Season) Athlete {
	ath := Athlete{Row: index, Name: fmt.Sprintf("Athlete %d", index+1)}
	if name, ok := av.Value(row, schema.KeyName); ok && strings.TrimSpace(name) != "" {
		ath.Name = strings.TrimSpace(name)
	}

	for _, m := range a.registry.Metrics() {
		if !m.Numeric || !m.AppliesTo(season) || !av.Available(m.Key) {
			continue
		}
		v, ok := av.Number(row, m.Key)
		if !ok {
			continue
		}
		ath.Values = append(ath.Values, a.value(m.Key, m.Label, m.Unit, v))
	}

	for _, d := range a.Derivable(av, season) {
		deps := make(map[string]float64, len(d.DependsOn))
		complete := true
		for _, dep := range d.DependsOn {
			v, ok := av.Number(row, dep)
			if !ok {
				complete = false
				break
			}
			deps[dep] = v
		}
		if !complete {
			continue
		}
		if v, ok := d.Compute(deps); ok {
			ath.Derived = append(ath.Derived, a.value(d.Key, d.Label, d.Unit, v))
		}
	}
	return ath
}

// Assemble builds the full view of an upload. Rows with no non-blank cell
// are skipped.
func (a *Assembler) Assemble(av *schema.AvailabilityMap, rows [][]string, season schema.Season) *Result {
	res := &Result{
		Season:   season,
		Charts:   a.Charts(av, season),
		Sections: a.Sections(av, season),
	}
	for i, row := range rows {
		if blank(row) {
			continue
		}
		res.Athletes = append(res.Athletes, a.Athlete(av, row, i, season))
	}
	return res
}

func (a *Assembler) value(key, label, unit string, v float64) Value {
	out := Value{Key: key, Label: label, Unit: unit, Value: v}
	for _, c := range a.charts {
		if c.Metric == key {
			out.Rating = c.Bands.Rate(v)
			break
		}
	}
	return out
}

func (a *Assembler) chart(id string) (ChartSpec, bool) {
	for _, c := range a.charts {
		if c.ID == id {
			return c, true
		}
	}
	return ChartSpec{}, false
}

// dependenciesAvailable never treats a derived metric as a base metric.
func (a *Assembler) dependenciesAvailable(av *schema.AvailabilityMap, d DerivedSpec) bool {
	for _, dep := range d.DependsOn {
		if !av.Available(dep) {
			return false
		}
	}
	return true
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
