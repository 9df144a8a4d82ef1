package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// commonQualifiers lists descriptive terms lab data attaches to a base
// analyte name. StripQualifiers tries them longest first so multi-word
// qualifiers match before their single-word substrings do.
var commonQualifiers = []string{
	"total recoverable",
	"weak acid dissociable",
	"acid extractable",
	"total",
	"dissolved",
	"recoverable",
	"extractable",
	"hexavalent",
	"trivalent",
	"reactive",
	"available",
	"soluble",
	"inorganic",
	"organic",
	"elemental",
	"ionic",
	"free",
	"combined",
	"as n",
	"as p",
	"as cn",
}

// PreserveAlways lists qualifiers that differentiate a distinct analyte
// identity (e.g. chromium vs. chromium, hexavalent) and must never be
// stripped regardless of what the corpus contains.
var PreserveAlways = map[string]bool{
	"hexavalent": true,
	"trivalent":  true,
	"as n":       true,
	"as p":       true,
	"as cn":      true,
	"elemental":  true,
	"ionic":      true,
}

var qualifierPatterns = buildQualifierPatterns()

func buildQualifierPatterns() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(commonQualifiers))
	for _, q := range commonQualifiers {
		m[q] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(q) + `\b`)
	}
	return m
}

var trailingCommaRe = regexp.MustCompile(`\s*,\s*$`)
var leadingCommaRe = regexp.MustCompile(`^\s*,\s*`)
var emptyParensRe = regexp.MustCompile(`\(\s*\)`)

// StripQualifiers removes known qualifiers from text, returning the
// cleaned text and the list of qualifiers that were found and removed.
// Qualifiers named in preserve are left untouched. Qualifiers in
// PreserveAlways should be listed by the caller when the cascade already
// knows the corpus differentiates them (see ShouldPreserveQualifier).
func StripQualifiers(text string, preserve map[string]bool) (string, []string) {
	if text == "" {
		return "", nil
	}

	ordered := append([]string(nil), commonQualifiers...)
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	var extracted []string
	cleaned := text
	for _, q := range ordered {
		if preserve[strings.ToLower(q)] {
			continue
		}
		pat := qualifierPatterns[q]
		if pat.MatchString(cleaned) {
			extracted = append(extracted, q)
			cleaned = pat.ReplaceAllString(cleaned, "")
		}
	}

	cleaned = cleanupAfterRemoval(cleaned)
	return cleaned, extracted
}

func cleanupAfterRemoval(text string) string {
	text = emptyParensRe.ReplaceAllString(text, "")
	text = trailingCommaRe.ReplaceAllString(text, "")
	text = leadingCommaRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ShouldPreserveQualifier decides whether a qualifier differentiates a
// distinct analyte identity given the set of preferred names already in
// the corpus. It mirrors the always-preserve list plus a presence check:
// if the corpus has both the bare name and a name containing the
// qualifier, the qualifier is load-bearing and must be preserved.
func ShouldPreserveQualifier(baseName, qualifier string, corpusNames map[string]bool) bool {
	if PreserveAlways[strings.ToLower(qualifier)] {
		return true
	}
	if corpusNames == nil {
		return true
	}

	baseLower := strings.ToLower(baseName)
	qualLower := strings.ToLower(qualifier)

	hasWithout := corpusNames[baseLower]
	hasWith := false
	for name := range corpusNames {
		if strings.Contains(name, baseLower) && strings.Contains(name, qualLower) {
			hasWith = true
			break
		}
	}

	return hasWith && hasWithout
}

// ExtractQualifiers returns every known qualifier present in text without
// modifying it.
func ExtractQualifiers(text string) []string {
	var found []string
	for _, q := range commonQualifiers {
		if qualifierPatterns[q].MatchString(text) {
			found = append(found, q)
		}
	}
	return found
}
