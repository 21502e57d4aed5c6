package schema

import "fmt"

// Season selects which canonical metrics and derived metrics are in scope.
type Season string

const (
	SeasonOff Season = "off"
	SeasonIn  Season = "in"
)

// Seasons lists every season variant in display order.
func Seasons() []Season { return []Season{SeasonOff, SeasonIn} }

// ParseSeason accepts "off", "OFF Season", "in_season", "In-Season" and similar.
func ParseSeason(raw string) (Season, error) {
	switch Normalize(raw) {
	case "off", "off_season", "offseason":
		return SeasonOff, nil
	case "in", "in_season", "inseason":
		return SeasonIn, nil
	}
	return "", fmt.Errorf("%w: %q (want one of %v)", ErrUnknownSeason, raw, Seasons())
}

// Label is the human-readable season name used in reports.
func (s Season) Label() string {
	switch s {
	case SeasonOff:
		return "OFF Season"
	case SeasonIn:
		return "IN Season"
	}
	return string(s)
}
