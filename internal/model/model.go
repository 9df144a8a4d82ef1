// Package model defines the shared data types for the analyte corpus:
// analytes, synonyms, vendor observations, and the decision audit trail.
package model

import "time"

// AnalyteType classifies what kind of regulatory entity an Analyte represents.
type AnalyteType string

const (
	AnalyteSingleSubstance AnalyteType = "single_substance"
	AnalyteFraction        AnalyteType = "fraction_or_group"
	AnalyteSuite           AnalyteType = "suite"
	AnalyteParameter       AnalyteType = "parameter"
)

// SynonymType classifies the provenance/register of a surface form.
type SynonymType string

const (
	SynonymIUPAC        SynonymType = "iupac"
	SynonymCommon       SynonymType = "common"
	SynonymAbbreviation SynonymType = "abbreviation"
	SynonymLabVariant   SynonymType = "lab_variant"
	SynonymTrade        SynonymType = "trade"
)

// ValidationGrade is the confidence grade attached to a validated LabVariant.
type ValidationGrade string

const (
	GradeHigh     ValidationGrade = "HIGH"
	GradeMedium   ValidationGrade = "MEDIUM"
	GradeLow      ValidationGrade = "LOW"
	GradeUnknown  ValidationGrade = "UNKNOWN"
	GradeUnstable ValidationGrade = "UNSTABLE"
)

// Analyte is a canonical chemical entity. Its ID is assigned at corpus
// bootstrap and never mutated.
type Analyte struct {
	ID            string
	PreferredName string
	Type          AnalyteType
	CASNumber     string // empty if none
	ParentAnalyte string // empty if root; forms a forest, never a cycle
}

// Synonym maps one surface form to exactly one analyte.
type Synonym struct {
	ID                   int64
	AnalyteID            string
	Raw                  string
	Normalized           string
	Type                 SynonymType
	HarvestSource        string // e.g. "pubchem", "manual", "validated_runtime[:vendor]"
	Confidence           float64
	LabVendor            string // empty for API-harvested synonyms
	NormalizationVersion int
	CreatedAt            time.Time
}

// LabVariant is a per-vendor observation of a raw lab token. Key is
// (LabVendor, NormalizedText); unique.
type LabVariant struct {
	ID                   int64
	NormalizedText       string
	LabVendor            string
	FrequencyCount       int
	FirstSeenDate        time.Time
	LastSeenDate         time.Time
	CollisionCount       int
	LastCollisionDate    time.Time // zero value if never collided
	NormalizationVersion int
	ValidatedAnalyteID   string // empty if not yet validated
	ValidationGrade      ValidationGrade
	CreatedAt            time.Time
}

// LabVariantConfirmation is one distinct submission's confirmation of a
// variant -> analyte mapping; an audit child of LabVariant.
type LabVariantConfirmation struct {
	ID                 int64
	VariantID          int64
	SubmissionID       string
	ConfirmedAnalyteID string
	ConfirmedAt        time.Time
	ValidForConsensus  bool
}

// Candidate is one scored match produced by a signal (exact/fuzzy/semantic/
// vendor cache) before the cascade combines and dedupes them.
type Candidate struct {
	AnalyteID     string
	PreferredName string
	Score         float64
	Method        string
	Metadata      map[string]string
}

// ConfidenceBand is the cascade's final disposition for a resolve.
type ConfidenceBand string

const (
	BandAutoAccept    ConfidenceBand = "AUTO_ACCEPT"
	BandReview        ConfidenceBand = "REVIEW"
	BandUnknown       ConfidenceBand = "UNKNOWN"
	BandNovelCompound ConfidenceBand = "NOVEL_COMPOUND"
)

// Method tag vocabulary, stable and emitted in decision logs.
const (
	MethodExact            = "exact"
	MethodCASExtracted     = "cas_extracted"
	MethodFuzzy            = "fuzzy"
	MethodSemantic         = "semantic"
	MethodHybrid           = "hybrid"
	MethodVendorCache      = "vendor_cache"
	MethodVendorCacheStale = "vendor_cache_stale"
	MethodUnknown          = "unknown"
)

// MatchDecision is an append-only audit row for a single resolve.
type MatchDecision struct {
	ID                  int64
	InputText           string
	MatchedAnalyteID    string // empty if no match
	Method              string
	TopCandidates       []Candidate
	SignalsUsed         map[string]bool
	ConfidenceScore     float64
	Margin              float64
	CrossMethodConflict bool
	DisagreementFlag    bool
	CorpusSnapshotHash  string
	ModelHash           string
	LabVendor           string
	DecisionTimestamp   time.Time
	HumanValidated      bool
	Ingested            bool
	CorrectionOf        int64 // 0 if not a correction
	IsCorrected         bool
}

// EmbeddingsMetadata is one row per vector in the semantic index.
type EmbeddingsMetadata struct {
	Position    int // position in the dense vector array, [0,N)
	SynonymID   int64
	AnalyteID   string
	TextContent string
	ModelName   string
	ModelHash   string
	CreatedAt   time.Time
}

// SnapshotRegistry pins a corpus+model hash pair so old decisions remain
// interpretable after the corpus evolves.
type SnapshotRegistry struct {
	CorpusHash string
	ModelHash  string
	CreatedAt  time.Time
	Note       string
}
