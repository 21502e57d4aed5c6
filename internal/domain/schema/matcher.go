package schema

import (
	"slices"
	"strings"
)

// minPartialLen is the shortest alias or header that may take part in a
// containment match.
const minPartialLen = 3

// genericWords never identify a metric on their own.
var genericWords = map[string]bool{
	"test": true, "power": true, "body": true, "peak": true, "score": true, "time": true,
	"result": true, "best": true, "total": true, "level": true, "value": true, "max": true,
}

// Binding records one raw header resolved to a canonical key.
type Binding struct {
	Header     string `json:"header"`
	Normalized string `json:"normalized"`
	Index      int    `json:"index"`
	Key        string `json:"key"`
	Exact      bool   `json:"exact"`
}

// candidate is the best partial match found for a header.
type candidate struct {
	key   string
	score int
	order int
}

func (c candidate) beats(o candidate) bool {
	if o.key == "" {
		return true
	}
	if c.score != o.score {
		return c.score > o.score
	}
	return c.order < o.order
}

// Resolve binds raw headers to canonical keys and returns an unpopulated
// availability map.
//
// Precedence: every exact match (key or synonym) is bound first, in file
// order; remaining headers are then bound by containment in either direction,
// preferring the longest matched text and then registry order. A header only
// ever binds to its best candidate. When that key is already taken the header
// is a duplicate and is ignored. Headers with no candidate are unrecognized.
func (r *Registry) Resolve(headers []string) *AvailabilityMap {
	av := newAvailabilityMap(r)
	normalized := make([]string, len(headers))
	bound := make([]bool, len(headers))

	for i, h := range headers {
		n := Normalize(h)
		normalized[i] = n
		key, ok := r.exact[n]
		if !ok {
			continue
		}
		bound[i] = true
		if !av.bind(Binding{Header: h, Normalized: n, Index: i, Key: key, Exact: true}) {
			av.Duplicates = append(av.Duplicates, h)
		}
	}

	for i, h := range headers {
		if bound[i] {
			continue
		}
		best := r.bestPartial(normalized[i])
		switch {
		case best.key == "":
			av.Unrecognized = append(av.Unrecognized, h)
		case !av.bind(Binding{Header: h, Normalized: normalized[i], Index: i, Key: best.key}):
			av.Duplicates = append(av.Duplicates, h)
		}
	}

	av.sortBindings()
	return av
}

// bestPartial finds the strongest containment match for a normalized header.
// A header naming a run distance never matches a key measured over another
// distance. An alias contains the header only as whole words, and never when
// the header is nothing but generic words.
func (r *Registry) bestPartial(header string) candidate {
	var best candidate
	if len(header) < minPartialLen {
		return best
	}
	headerDist := distances(header)
	reverse := !generic(header)
	for _, a := range r.aliases {
		score := 0
		switch {
		case len(a.text) >= minPartialLen && strings.Contains(header, a.text):
			score = len(a.text)
		case reverse && strings.Contains("_"+a.text+"_", "_"+header+"_"):
			score = len(header)
		default:
			continue
		}
		if !r.distanceAgrees(a.key, headerDist) {
			continue
		}
		c := candidate{key: a.key, score: score, order: a.order}
		if c.beats(best) {
			best = c
		}
	}
	return best
}

func (r *Registry) distanceAgrees(key string, headerDist []string) bool {
	keyDist := r.distances[key]
	if len(headerDist) == 0 || len(keyDist) == 0 {
		return true
	}
	for _, d := range headerDist {
		if slices.Contains(keyDist, d) {
			return true
		}
	}
	return false
}

// distances lists the run distances in a normalized text, in metres:
// 10m, sprint10m and 10_m all name 10.
func distances(text string) []string {
	var out []string
	words := strings.Split(text, "_")
	for i, w := range words {
		switch {
		case strings.HasSuffix(w, "m"):
			if d := trailingDigits(strings.TrimSuffix(w, "m")); d != "" {
				out = append(out, d)
			}
		case w != "" && i+1 < len(words) && words[i+1] == "m" && trailingDigits(w) == w:
			out = append(out, w)
		}
	}
	return out
}

func trailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[i:]
}

func generic(header string) bool {
	for _, w := range strings.Split(header, "_") {
		if !genericWords[w] {
			return false
		}
	}
	return true
}
