package schema

import (
	"fmt"
	"slices"
)

// Canonical metric keys of the default registry.
const (
	KeyName       = "name"
	KeyWeight     = "weight"
	KeyHeight     = "height"
	KeySprint10m  = "sprint_10m"
	KeySprint30m  = "sprint_30m"
	KeyCMJ        = "cmj"
	KeyWattbike6s = "wattbike_6s"
	KeyYoYo       = "yoyo"
)

// Metric is one entry in the canonical vocabulary.
type Metric struct {
	Key      string
	Label    string
	Synonyms []string
	Numeric  bool
	Unit     string
	Seasons  []Season
	// ChartID names the chart drawn for the metric; empty means no chart.
	ChartID string
}

// AppliesTo reports whether the metric is relevant in season s.
func (m Metric) AppliesTo(s Season) bool {
	return slices.Contains(m.Seasons, s)
}

func (m Metric) clone() Metric {
	m.Synonyms = slices.Clone(m.Synonyms)
	m.Seasons = slices.Clone(m.Seasons)
	return m
}

// alias is a normalized spelling of a canonical key.
type alias struct {
	text  string
	key   string
	order int // registry position of key
}

// Registry is the immutable canonical metric vocabulary.
type Registry struct {
	metrics []Metric
	byKey   map[string]int
	aliases []alias
	exact   map[string]string

	// distances holds the run distances named by each key or its synonyms.
	distances map[string][]string
}

// NewRegistry builds a registry. Synonyms are normalized; the key itself is
// always an alias. A normalized alias may belong to one key only.
func NewRegistry(metrics ...Metric) (*Registry, error) {
	r := &Registry{
		byKey:     make(map[string]int, len(metrics)),
		exact:     make(map[string]string),
		distances: make(map[string][]string),
	}
	for i, m := range metrics {
		if m.Key == "" {
			return nil, ErrEmptyKey
		}
		if _, dup := r.byKey[m.Key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, m.Key)
		}
		m = m.clone()
		r.byKey[m.Key] = i
		r.metrics = append(r.metrics, m)

		for _, raw := range append([]string{m.Key}, m.Synonyms...) {
			text := Normalize(raw)
			if text == "" {
				continue
			}
			if owner, seen := r.exact[text]; seen {
				if owner == m.Key {
					continue
				}
				return nil, fmt.Errorf("%w: %q (%s, %s)", ErrDuplicateAlias, text, owner, m.Key)
			}
			r.exact[text] = m.Key
			r.aliases = append(r.aliases, alias{text: text, key: m.Key, order: i})
			for _, d := range distances(text) {
				if !slices.Contains(r.distances[m.Key], d) {
					r.distances[m.Key] = append(r.distances[m.Key], d)
				}
			}
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(metrics ...Metric) *Registry {
	r, err := NewRegistry(metrics...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the physical-test vocabulary.
func DefaultRegistry() *Registry {
	both := []Season{SeasonOff, SeasonIn}
	return MustRegistry(
		Metric{
			Key: KeyName, Label: "Name",
			Synonyms: []string{"athlete", "athlete_name", "player", "player_name", "full_name"},
			Seasons:  both,
		},
		Metric{
			Key: KeyWeight, Label: "Weight", Numeric: true, Unit: "kg",
			Synonyms: []string{"body_weight", "bodyweight", "mass", "body_mass", "bw"},
			Seasons:  both,
		},
		Metric{
			Key: KeyHeight, Label: "Height", Numeric: true, Unit: "cm",
			Synonyms: []string{"stature", "body_height"},
			Seasons:  both,
		},
		Metric{
			Key: KeySprint10m, Label: "10m Sprint", Numeric: true, Unit: "s",
			Synonyms: []string{"sprint", "sprint_10", "10m_sprint", "sprint_10_m", "10m"},
			Seasons:  []Season{SeasonOff},
			ChartID:  "sprint_10m",
		},
		Metric{
			Key: KeySprint30m, Label: "30m Sprint", Numeric: true, Unit: "s",
			Synonyms: []string{"sprint_30", "30m_sprint", "sprint_30_m", "30m"},
			Seasons:  []Season{SeasonOff},
			ChartID:  "sprint_30m",
		},
		Metric{
			Key: KeyCMJ, Label: "Countermovement Jump", Numeric: true, Unit: "cm",
			Synonyms: []string{"countermovement_jump", "counter_movement_jump", "jump", "vertical_jump", "jump_height"},
			Seasons:  both,
			ChartID:  "cmj",
		},
		Metric{
			Key: KeyWattbike6s, Label: "Wattbike 6s Peak Power", Numeric: true, Unit: "W",
			Synonyms: []string{"wattbike", "wattbike_6_s", "peak_power", "6s_peak_power"},
			Seasons:  []Season{SeasonIn},
		},
		Metric{
			Key: KeyYoYo, Label: "Yo-Yo Test", Numeric: true, Unit: "level",
			Synonyms: []string{"yo_yo", "yo_yo_test", "yoyo_test", "yo_yo_ir1", "yoyo_ir1"},
			Seasons:  both,
			ChartID:  "yoyo",
		},
	)
}

// Metrics returns a copy of the vocabulary in registry order.
func (r *Registry) Metrics() []Metric {
	out := make([]Metric, len(r.metrics))
	for i, m := range r.metrics {
		out[i] = m.clone()
	}
	return out
}

// Metric looks up a canonical metric by key.
func (r *Registry) Metric(key string) (Metric, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Metric{}, false
	}
	return r.metrics[i].clone(), true
}

// Keys returns canonical keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		keys[i] = m.Key
	}
	return keys
}

// Len returns the number of canonical metrics.
func (r *Registry) Len() int { return len(r.metrics) }
