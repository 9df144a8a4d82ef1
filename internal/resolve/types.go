// Package resolve implements the cascade resolver: the ordered pipeline
// vendor-cache -> CAS -> exact -> fuzzy -> semantic -> gate that produces
// one resolution result per input.
package resolve

import "github.com/sudo-kno3/analyte-resolver/internal/model"

// BestMatch is the resolver's chosen analyte for a resolve call, or nil
// inside ResolutionResult when the band is UNKNOWN or NOVEL_COMPOUND.
// Spec design note "Polymorphic candidate types": this is the Match half
// of the Match | NoMatch alternative, represented as a nullable pointer
// rather than sentinel fields scattered across ResolutionResult.
type BestMatch struct {
	AnalyteID     string
	PreferredName string
	Confidence    float64 // gate-adjusted (may be capped by disagreement_cap)
	Method        string
	RawScore      float64 // the candidate's score before any cap
	Metadata      map[string]string
}

// ResolutionResult is the output of one resolve call.
type ResolutionResult struct {
	InputText           string
	BestMatch           *BestMatch
	AllCandidates       []model.Candidate // <=5, combined/deduped/sorted
	SignalsUsed         map[string]bool
	VendorTag           string
	DisagreementFlag    bool // top-1 and top-2 fuzzy candidates disagree within a narrow gap
	CrossMethodConflict bool
	ConfidenceBand      model.ConfidenceBand
	ResolutionTimeMs    float64
	Margin              float64
}
