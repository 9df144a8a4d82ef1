package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// PHCFraction is an Ontario Regulation 153 petroleum hydrocarbon fraction.
type PHCFraction string

const (
	F1 PHCFraction = "F1" // C6-C10, light aliphatic
	F2 PHCFraction = "F2" // C10-C16, medium aliphatic
	F3 PHCFraction = "F3" // C16-C34, heavy aliphatic
	F4 PHCFraction = "F4" // >C34, very heavy aliphatic
)

var phcExplicitRe = regexp.MustCompile(`(?i)(?:phc|petroleum\s+hydrocarbons?)\s*(?:fraction\s*)?f?([1-4])`)
var phcFractionWordRe = regexp.MustCompile(`(?i)\bf(?:raction\s*)?([1-4])\b`)
var carbonRangeRe = regexp.MustCompile(`(?i)\bc(\d+)\s*(?:-|to)\s*c(\d+)\b`)
var carbonGreaterRe = regexp.MustCompile(`(?i)>\s*c(\d+)`)

var phcAliases = map[PHCFraction][]string{
	F1: {"f1", "fraction 1", "c6-c10", "c6 to c10"},
	F2: {"f2", "fraction 2", "c10-c16", "c10 to c16"},
	F3: {"f3", "fraction 3", "c16-c34", "c16 to c34"},
	F4: {"f4", "fraction 4", ">c34", "greater than c34"},
}

// DetectFraction recognizes any of the common PHC notation forms in text
// ("PHC F2", "Petroleum Hydrocarbons Fraction 3", "C10-C16", ">C34") and
// returns the standardized fraction, or "" if none is present.
func DetectFraction(text string) PHCFraction {
	if text == "" {
		return ""
	}

	if m := phcExplicitRe.FindStringSubmatch(text); m != nil {
		return PHCFraction("F" + m[1])
	}
	if m := phcFractionWordRe.FindStringSubmatch(text); m != nil {
		return PHCFraction("F" + m[1])
	}

	if m := carbonRangeRe.FindStringSubmatch(text); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if f := carbonRangeToFraction(start, end); f != "" {
			return f
		}
	}

	if m := carbonGreaterRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= 34 {
			return F4
		}
	}

	lower := strings.ToLower(text)
	for fraction, aliases := range phcAliases {
		for _, alias := range aliases {
			if strings.Contains(lower, alias) {
				return fraction
			}
		}
	}

	return ""
}

func carbonRangeToFraction(start, end int) PHCFraction {
	switch {
	case start == 6 && end == 10:
		return F1
	case start == 10 && end == 16:
		return F2
	case start == 16 && end == 34:
		return F3
	case start >= 34:
		return F4
	case start >= 5 && start <= 7 && end >= 9 && end <= 11:
		return F1
	case start >= 9 && start <= 11 && end >= 15 && end <= 17:
		return F2
	case start >= 15 && start <= 17 && end >= 32 && end <= 35:
		return F3
	}
	return ""
}

// IsPetroleum reports whether text refers to petroleum hydrocarbons at
// all, whether or not a specific fraction is present.
func IsPetroleum(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "phc") || strings.Contains(lower, "petroleum hydrocarbon") {
		return true
	}
	return DetectFraction(text) != ""
}

// NormalizePetroleumNotation canonicalizes a petroleum-hydrocarbon token
// to "phc fN" form. Text with no detectable fraction is returned
// unchanged so the caller can fall through to the general pipeline.
func NormalizePetroleumNotation(text string) string {
	fraction := DetectFraction(text)
	if fraction == "" {
		return text
	}
	return "phc " + strings.ToLower(string(fraction))
}

// FractionCarbonRange returns the (low, high) carbon-number bound
// strings for a fraction; high is "" for F4's open-ended range.
func FractionCarbonRange(fraction PHCFraction) (lo, hi string) {
	switch fraction {
	case F1:
		return "C6", "C10"
	case F2:
		return "C10", "C16"
	case F3:
		return "C16", "C34"
	case F4:
		return "C34", ""
	}
	return "", ""
}
