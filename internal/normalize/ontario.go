package normalize

import (
	"regexp"
)

// ApplyOntarioPatterns layers Ontario environmental-lab-specific
// truncation expansion, number-spacing repair, and notation folding on
// top of the base Normalize pipeline. It is an optional pre-pass: the
// Ontario rules run on the raw text, and the result is then passed
// through Normalize. Callers outside Ontario should call Normalize
// directly.
func ApplyOntarioPatterns(text string) string {
	if text == "" {
		return ""
	}

	text = expandTruncations(text)
	text = normalizeNumberSpacing(text)
	text = applyNotationVariants(text)

	return Normalize(text)
}

type ontarioRule struct {
	pattern *regexp.Regexp
	replace string
}

var ontarioTruncations = []ontarioRule{
	{regexp.MustCompile(`(?i)\b1,4\s*diox\b`), "1,4-dioxane"},
	{regexp.MustCompile(`(?i)\bdiox\b`), "dioxane"},
	{regexp.MustCompile(`(?i)\b1,1,1-tca\b`), "1,1,1-trichloroethane"},
	{regexp.MustCompile(`(?i)\btca\b`), "trichloroethane"},
	{regexp.MustCompile(`(?i)\btce\b`), "trichloroethylene"},
	{regexp.MustCompile(`(?i)\bpce\b`), "tetrachloroethylene"},
	{regexp.MustCompile(`(?i)\bdce\b`), "dichloroethylene"},
	{regexp.MustCompile(`(?i)\bdca\b`), "dichloroethane"},
	{regexp.MustCompile(`(?i)\bphc\s+f([1-4])\b`), "petroleum hydrocarbons f$1"},
	{regexp.MustCompile(`(?i)\bhexavalent\s+cr\b`), "chromium, hexavalent"},
	{regexp.MustCompile(`(?i)\bcr\s*\(vi\)`), "chromium, hexavalent"},
	{regexp.MustCompile(`(?i)\bcr6\+`), "chromium, hexavalent"},
	{regexp.MustCompile(`(?i)\bpah\b`), "polyaromatic hydrocarbon"},
	{regexp.MustCompile(`(?i)\bnaph\b`), "naphthalene"},
	{regexp.MustCompile(`(?i)\bbtex\b`), "benzene, toluene, ethylbenzene, xylene"},
	{regexp.MustCompile(`(?i)\btotal\s+p\b`), "phosphorus, total"},
	{regexp.MustCompile(`(?i)\bt?p\s+\(total\)`), "phosphorus, total"},
	{regexp.MustCompile(`(?i)\btotal\s+n\b`), "nitrogen, total"},
	{regexp.MustCompile(`(?i)\btn\b`), "nitrogen, total"},
	{regexp.MustCompile(`(?i)\btkn\b`), "nitrogen, total kjeldahl"},
}

var ontarioSpacing = []ontarioRule{
	{regexp.MustCompile(`(\d)\s*,\s*(\d)\s*,\s*(\d)\s*-`), "$1,$2,$3-"},
	{regexp.MustCompile(`(\d)\s*,\s*(\d)\s*-\s*([a-zA-Z])`), "$1,$2-$3"},
	{regexp.MustCompile(`(\d)\s*,\s*(\d)`), "$1,$2"},
}

var ontarioNotation = []ontarioRule{
	{regexp.MustCompile(`(?i)\bf-?([1-4])\b`), "f$1"},
	{regexp.MustCompile(`(?i)\bp-`), "para-"},
	{regexp.MustCompile(`(?i)\bo-`), "ortho-"},
	{regexp.MustCompile(`(?i)\bm-`), "meta-"},
	{regexp.MustCompile(`(?i)\bdiss\b`), "dissolved"},
	{regexp.MustCompile(`(?i)\btot\b`), "total"},
	{regexp.MustCompile(`(?i)\brec\b`), "recoverable"},
}

func expandTruncations(text string) string {
	for _, r := range ontarioTruncations {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}

func normalizeNumberSpacing(text string) string {
	for _, r := range ontarioSpacing {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}

func applyNotationVariants(text string) string {
	for _, r := range ontarioNotation {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}

// DetectTruncatedName reports whether text matches one of the known
// Ontario truncation patterns, for diagnostics/flagging purposes.
func DetectTruncatedName(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range ontarioTruncations {
		if r.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
