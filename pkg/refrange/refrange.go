// Package refrange parses textual laboratory reference ranges and classifies
// numeric results against them.
//
// Three textual forms are understood: "< X" (upper bound), "> X" (lower bound)
// and "low-high". Units or other trailing text after the numbers are ignored,
// so "<5.7%" and "4,000-11,000 /cumm" both parse.
package refrange

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which of the three reference-range forms was parsed.
type Kind int

const (
	Invalid Kind = iota
	UpperBound
	LowerBound
	Between
)

// Status is the classification of a value against a range.
type Status string

const (
	Low    Status = "low"
	Normal Status = "normal"
	High   Status = "high"
)

// Range is a parsed reference range.
type Range struct {
	Kind Kind
	Low  float64
	High float64
}

var (
	boundRe   = regexp.MustCompile(`^([<>])\s*=?\s*(\d[\d,]*(?:\.\d+)?)`)
	betweenRe = regexp.MustCompile(`^(\d[\d,]*(?:\.\d+)?)\s*(?:-|–|to)\s*(\d[\d,]*(?:\.\d+)?)`)
)

// Parse parses a reference range. The second return value is false when the
// text matches none of the supported forms.
func Parse(text string) (Range, bool) {
	s := strings.TrimSpace(text)
	if m := boundRe.FindStringSubmatch(s); m != nil {
		v, err := ParseNumber(m[2])
		if err != nil {
			return Range{}, false
		}
		if m[1] == "<" {
			return Range{Kind: UpperBound, High: v}, true
		}
		return Range{Kind: LowerBound, Low: v}, true
	}
	if m := betweenRe.FindStringSubmatch(s); m != nil {
		lo, err := ParseNumber(m[1])
		if err != nil {
			return Range{}, false
		}
		hi, err := ParseNumber(m[2])
		if err != nil {
			return Range{}, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return Range{Kind: Between, Low: lo, High: hi}, true
	}
	return Range{}, false
}

// Classify reports where v sits relative to the range. A value on an open
// bound ("< X" with v == X) is outside the range.
func (r Range) Classify(v float64) Status {
	switch r.Kind {
	case UpperBound:
		if v < r.High {
			return Normal
		}
		return High
	case LowerBound:
		if v > r.Low {
			return Normal
		}
		return Low
	case Between:
		if v < r.Low {
			return Low
		}
		if v > r.High {
			return High
		}
		return Normal
	default:
		return Normal
	}
}

// Abnormal reports whether v falls outside the range.
func (r Range) Abnormal(v float64) bool {
	return r.Kind != Invalid && r.Classify(v) != Normal
}

// ParseNumber parses a decimal number that may carry thousands separators.
func ParseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}
