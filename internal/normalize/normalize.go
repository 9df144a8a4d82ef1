// Package normalize implements the deterministic, versioned text pipeline
// that turns a raw lab token into a matchable surface form. It never
// consults the corpus; it is a pure function of its input plus the
// normalization version.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Version is incremented whenever the pipeline's rules change. Stored rows
// carry the version they were normalized under so a later migration can
// detect and re-normalize stale data.
const Version = 1

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	bracketRe     = regexp.MustCompile(`[(){}\[\]]`)
	dashRe        = regexp.MustCompile(`[\x{2010}-\x{2015}\x{2212}-]`)
	quoteRe       = regexp.MustCompile(`['"]`)
	punctRe       = regexp.MustCompile(`[;:,]`)
	stereoParenRe = regexp.MustCompile(`\(([+\-±RSEZrsez])\)`)
	stereoSpaceRe = regexp.MustCompile(`([+\-±])([a-zA-Z])`)
)

// abbreviation, greekLetter, and numericPrefix are ordered so multi-word or
// longer patterns are tried first within each table, mirroring the
// reference pipeline's word-boundary regex substitutions.
var abbreviations = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\btert\b`), "tertiary"},
	{regexp.MustCompile(`(?i)\bt-\b`), "tertiary"},
	{regexp.MustCompile(`(?i)\bsec\b`), "secondary"},
	{regexp.MustCompile(`(?i)\bs-\b`), "secondary"},
	{regexp.MustCompile(`(?i)\biso\b`), "iso"},
	{regexp.MustCompile(`(?i)\bi-\b`), "iso"},
	{regexp.MustCompile(`(?i)\bn-\b`), "normal"},
	{regexp.MustCompile(`(?i)\bortho\b`), "ortho"},
	{regexp.MustCompile(`(?i)\bo-\b`), "ortho"},
	{regexp.MustCompile(`(?i)\bmeta\b`), "meta"},
	{regexp.MustCompile(`(?i)\bm-\b`), "meta"},
	{regexp.MustCompile(`(?i)\bpara\b`), "para"},
	{regexp.MustCompile(`(?i)\bp-\b`), "para"},
}

var greekLetters = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\balpha\b`), "α"},
	{regexp.MustCompile(`(?i)\bbeta\b`), "β"},
	{regexp.MustCompile(`(?i)\bgamma\b`), "γ"},
	{regexp.MustCompile(`(?i)\bdelta\b`), "δ"},
	{regexp.MustCompile(`(?i)\bepsilon\b`), "ε"},
	{regexp.MustCompile(`(?i)\bzeta\b`), "ζ"},
	{regexp.MustCompile(`(?i)\beta\b`), "η"},
	{regexp.MustCompile(`(?i)\btheta\b`), "θ"},
	{regexp.MustCompile(`(?i)\biota\b`), "ι"},
	{regexp.MustCompile(`(?i)\bkappa\b`), "κ"},
	{regexp.MustCompile(`(?i)\blambda\b`), "λ"},
	{regexp.MustCompile(`(?i)\bmu\b`), "μ"},
	{regexp.MustCompile(`(?i)\bnu\b`), "ν"},
	{regexp.MustCompile(`(?i)\bxi\b`), "ξ"},
	{regexp.MustCompile(`(?i)\bomicron\b`), "ο"},
	{regexp.MustCompile(`(?i)\bpi\b`), "π"},
	{regexp.MustCompile(`(?i)\brho\b`), "ρ"},
	{regexp.MustCompile(`(?i)\bsigma\b`), "σ"},
	{regexp.MustCompile(`(?i)\btau\b`), "τ"},
	{regexp.MustCompile(`(?i)\bupsilon\b`), "υ"},
	{regexp.MustCompile(`(?i)\bphi\b`), "φ"},
	{regexp.MustCompile(`(?i)\bchi\b`), "χ"},
	{regexp.MustCompile(`(?i)\bpsi\b`), "ψ"},
	{regexp.MustCompile(`(?i)\bomega\b`), "ω"},
}

var numericPrefixes = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bdi-`), "di"},
	{regexp.MustCompile(`(?i)\btri-`), "tri"},
	{regexp.MustCompile(`(?i)\btetra-`), "tetra"},
	{regexp.MustCompile(`(?i)\bpenta-`), "penta"},
	{regexp.MustCompile(`(?i)\bhexa-`), "hexa"},
	{regexp.MustCompile(`(?i)\bhepta-`), "hepta"},
	{regexp.MustCompile(`(?i)\bocta-`), "octa"},
	{regexp.MustCompile(`(?i)\bnona-`), "nona"},
	{regexp.MustCompile(`(?i)\bdeca-`), "deca"},
	{regexp.MustCompile(`(?i)\bmono-`), "mono"},
	{regexp.MustCompile(`(?i)\bpoly-`), "poly"},
}

// Normalize applies the full pipeline to raw chemical name text:
// NFKC, whitespace collapse, punctuation standardization, abbreviation
// expansion, Greek letter folding, stereochemistry folding, numeric
// prefix folding, trailing-period trim, case fold, final whitespace trim.
// The result is deterministic and idempotent: Normalize(Normalize(x)) ==
// Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFKC.String(text)
	text = collapseWhitespace(text)
	text = standardizePunctuation(text)
	text = applyTable(text, abbreviations)
	text = applyTable(text, greekLetters)
	text = normalizeStereochemistry(text)
	text = applyTable(text, numericPrefixes)
	text = strings.TrimRight(text, ".")
	text = caseFold(text)
	text = collapseWhitespace(text)

	return strings.TrimSpace(text)
}

func collapseWhitespace(text string) string {
	return whitespaceRe.ReplaceAllString(text, " ")
}

func standardizePunctuation(text string) string {
	text = bracketRe.ReplaceAllString(text, " ")
	text = dashRe.ReplaceAllString(text, " ")
	text = quoteRe.ReplaceAllString(text, " ")
	text = punctRe.ReplaceAllString(text, " ")
	return collapseWhitespace(text)
}

func normalizeStereochemistry(text string) string {
	text = stereoParenRe.ReplaceAllString(text, "$1")
	text = stereoSpaceRe.ReplaceAllString(text, "$1 $2")
	return text
}

func applyTable(text string, table []struct {
	pattern *regexp.Regexp
	replace string
}) string {
	for _, t := range table {
		text = t.pattern.ReplaceAllString(text, t.replace)
	}
	return text
}

func caseFold(text string) string {
	return strings.Map(unicode.ToLower, text)
}
