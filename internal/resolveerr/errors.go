// Package resolveerr defines the error kinds the resolver core
// recognizes. The resolve path never returns one of these to a caller as
// a Go error for a chemistry data problem: it downgrades the result band
// and records the cause in the decision log. Only storage failures
// propagate as errors: a failed decision-log write on the resolve path,
// or a failed write on the learning path.
package resolveerr

import "errors"

// Sentinel errors identifying each recognized error kind. Wrap with
// fmt.Errorf("...: %w", Err*) to attach context.
var (
	// ErrInputRejected marks an input that was empty or whitespace-only
	// after normalization. Resolve never returns this as an error; it
	// downgrades to UNKNOWN with empty candidates.
	ErrInputRejected = errors.New("resolveerr: input rejected (empty after normalization)")

	// ErrIndexUnavailable marks a missing semantic index. Logged once;
	// the resolver proceeds without the semantic signal.
	ErrIndexUnavailable = errors.New("resolveerr: semantic index unavailable")

	// ErrCorpusInconsistency marks a corpus that breaks a cross-row
	// invariant. The corpus loader returns it for a cycle in the analyte
	// parent forest or a CAS number shared by two analytes; synonyms that
	// reference a missing analyte are set aside in Corpus.Inconsistent
	// without an error. The resolve path neither returns nor records it.
	ErrCorpusInconsistency = errors.New("resolveerr: corpus inconsistency")

	// ErrConfigInvariantViolation marks a loaded config that breaks a
	// cross-field invariant. Startup must fail closed on this error.
	ErrConfigInvariantViolation = errors.New("resolveerr: config invariant violation")

	// ErrVendorCacheConflict marks a duplicated (vendor, text) row found
	// where at most one was expected. One row is kept, others
	// quarantined, and the event is logged.
	ErrVendorCacheConflict = errors.New("resolveerr: vendor cache conflict")

	// ErrLearningRateCapped marks a global promotion rejected by the
	// daily cap. Not an error to callers of ingest_validated; returned
	// as "no new synonym" and logged.
	ErrLearningRateCapped = errors.New("resolveerr: learning rate capped")
)
