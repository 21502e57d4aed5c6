package assembler

import (
	"math"
	"slices"

	"github.com/okian/perfreport/internal/domain/schema"
)

// Derived metric keys.
const (
	KeyBMI           = "bmi"
	KeyPowerToWeight = "power_to_weight"
)

// DerivedSpec declares a metric computed from canonical metrics.
type DerivedSpec struct {
	Key       string
	Label     string
	Unit      string
	DependsOn []string
	Seasons   []schema.Season
	// Compute receives one finite value per dependency and may still decline.
	Compute func(v map[string]float64) (float64, bool)
}

// AppliesTo reports whether the derived metric is in scope for season s.
func (d DerivedSpec) AppliesTo(s schema.Season) bool {
	return slices.Contains(d.Seasons, s)
}

// ChartSpec describes one chart the report layer may draw.
type ChartSpec struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Metric string `json:"metric"`
	Unit   string `json:"unit"`
	// Derived is set when Metric names a DerivedSpec.
	Derived bool  `json:"derived"`
	Bands   Bands `json:"-"`
}

// DefaultDerived returns BMI and relative peak power.
func DefaultDerived() []DerivedSpec {
	return []DerivedSpec{
		{
			Key: KeyBMI, Label: "BMI", Unit: "kg/m²",
			DependsOn: []string{schema.KeyWeight, schema.KeyHeight},
			Seasons:   []schema.Season{schema.SeasonOff, schema.SeasonIn},
			Compute: func(v map[string]float64) (float64, bool) {
				m := v[schema.KeyHeight] / 100
				if m <= 0 {
					return 0, false
				}
				return finite(v[schema.KeyWeight] / (m * m))
			},
		},
		{
			Key: KeyPowerToWeight, Label: "Wattbike 6s Relative Power", Unit: "W/kg",
			DependsOn: []string{schema.KeyWattbike6s, schema.KeyWeight},
			Seasons:   []schema.Season{schema.SeasonIn},
			Compute: func(v map[string]float64) (float64, bool) {
				w := v[schema.KeyWeight]
				if w <= 0 {
					return 0, false
				}
				return finite(v[schema.KeyWattbike6s] / w)
			},
		},
	}
}

// DefaultCharts returns the performance charts with their rating bands.
func DefaultCharts() []ChartSpec {
	return []ChartSpec{
		{
			ID: "sprint_10m", Title: "10m Sprint Performance", Metric: schema.KeySprint10m, Unit: "s",
			Bands: Bands{Direction: LowerIsBetter, Edges: [5]float64{1.65, 1.80, 1.85, 1.91, 2.0}},
		},
		{
			ID: "sprint_30m", Title: "30m Sprint Performance", Metric: schema.KeySprint30m, Unit: "s",
			Bands: Bands{Direction: LowerIsBetter, Edges: [5]float64{4.00, 4.17, 4.30, 4.45, 5.00}},
		},
		{
			ID: "cmj", Title: "CMJ Performance", Metric: schema.KeyCMJ, Unit: "cm",
			Bands: Bands{Direction: HigherIsBetter, Edges: [5]float64{30, 38, 45, 52, 60}},
		},
		{
			ID: "wattbike", Title: "Wattbike 6s Power Performance", Metric: KeyPowerToWeight, Unit: "W/kg",
			Derived: true,
			Bands:   Bands{Direction: HigherIsBetter, Edges: [5]float64{10, 14, 16, 18, 24}},
		},
		{
			ID: "yoyo", Title: "Yo-Yo Test Performance", Metric: schema.KeyYoYo, Unit: "level",
			Bands: Bands{Direction: HigherIsBetter, Edges: [5]float64{12, 15, 17, 19, 23}},
		},
	}
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
