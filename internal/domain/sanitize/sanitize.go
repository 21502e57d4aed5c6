// Package sanitize neutralizes untrusted CSV cell content and enforces the
// structural limits of an upload.
package sanitize

import (
	"regexp"
	"strings"
)

// Threat is the injection class a cell matched.
type Threat string

const (
	ThreatNone      Threat = "none"
	ThreatFormula   Threat = "formula"
	ThreatScript    Threat = "script"
	ThreatSeparator Threat = "separator"
)

// Threats lists every category that triggers neutralization.
func Threats() []Threat { return []Threat{ThreatFormula, ThreatScript, ThreatSeparator} }

// NeutralizePrefix is prepended to every flagged value.
const NeutralizePrefix = "'"

var (
	formulaPrefixes = "=@+-!"
	scriptTokens    = []string{"<script", "javascript:", "data:"}
)

// eventHandler matches an inline handler that starts a word: " onload=",
// "<svg/onload=".
var eventHandler = regexp.MustCompile(`(?i)(?:^|[^a-z0-9_])on[a-z]+\s*=`)

// Verdict is the outcome of sanitizing one cell.
type Verdict struct {
	Original  string
	Threat    Threat
	Value     string
	Truncated bool
}

// Neutralized reports whether Value differs from the cleaned input because of a threat.
func (v Verdict) Neutralized() bool { return v.Threat != ThreatNone }

// Sanitizer rewrites unsafe cell values. It is safe for concurrent use.
type Sanitizer struct {
	maxCellLength int
}

// New creates a Sanitizer with the default cell length limit.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{maxCellLength: DefaultMaxCellLength}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxCellLength returns the rune limit applied before detection.
func (s *Sanitizer) MaxCellLength() int { return s.maxCellLength }

// Sanitize cleans a cell and neutralizes it when it matches an injection
// class. The value is stripped of NUL bytes, trimmed and truncated to the
// cell length limit before detection runs. Detection order is formula
// prefix, script or markup token, then command separator; the first match
// names the threat. A flagged value is prefixed with a single quote unless it
// already starts with one, so sanitizing twice is a no-op. Sanitize never fails.
func (s *Sanitizer) Sanitize(cell string) Verdict {
	v := Verdict{Original: cell, Threat: ThreatNone}

	value := strings.TrimSpace(strings.ReplaceAll(cell, "\x00", ""))
	if s.maxCellLength > 0 {
		if r := []rune(value); len(r) > s.maxCellLength {
			value = strings.TrimSpace(string(r[:s.maxCellLength]))
			v.Truncated = true
		}
	}

	v.Threat = Detect(value)
	if v.Threat != ThreatNone && !strings.HasPrefix(value, NeutralizePrefix) {
		value = NeutralizePrefix + value
	}
	v.Value = value
	return v
}

// Detect classifies an already cleaned value.
func Detect(value string) Threat {
	if value == "" {
		return ThreatNone
	}
	if strings.ContainsRune(formulaPrefixes, rune(value[0])) {
		return ThreatFormula
	}
	lower := strings.ToLower(value)
	for _, tok := range scriptTokens {
		if strings.Contains(lower, tok) {
			return ThreatScript
		}
	}
	if eventHandler.MatchString(value) {
		return ThreatScript
	}
	if strings.ContainsAny(value, "|;") {
		return ThreatSeparator
	}
	return ThreatNone
}
