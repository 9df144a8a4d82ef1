package config

import "errors"

// ErrConfigInvariantViolation is returned (wrapped) when a loaded config
// breaks a cross-field invariant. Startup must fail closed on this error.
var ErrConfigInvariantViolation = errors.New("config invariant violation")

// Validate checks the cross-field invariants that must hold for every
// Config, independent of where its values came from:
//
//	vendor_boost < margin_threshold < dual_gate_margin
//	decay_floor < auto_accept
//	ood_threshold < review < auto_accept
//	disagreement_cap < auto_accept
//
// plus basic range sanity on every threshold and count.
func Validate(c Config) error {
	var errs []error

	if !(c.VendorBoost < c.MarginThreshold && c.MarginThreshold < c.DualGateMargin) {
		errs = append(errs, errors.New("vendor_boost < margin_threshold < dual_gate_margin must hold"))
	}

	if !(c.DecayFloor < c.AutoAccept) {
		errs = append(errs, errors.New("decay_floor must be strictly below auto_accept"))
	}

	if !(c.OODThreshold < c.Review && c.Review < c.AutoAccept) {
		errs = append(errs, errors.New("ood_threshold < review < auto_accept must hold"))
	}
	if !(c.DisagreementCap < c.AutoAccept) {
		errs = append(errs, errors.New("disagreement_cap must be strictly below auto_accept"))
	}

	for _, f := range []struct {
		name string
		val  float64
	}{
		{"auto_accept", c.AutoAccept},
		{"review", c.Review},
		{"disagreement_cap", c.DisagreementCap},
		{"margin_threshold", c.MarginThreshold},
		{"ood_threshold", c.OODThreshold},
		{"vendor_boost", c.VendorBoost},
		{"decay_lambda", c.DecayLambda},
		{"decay_floor", c.DecayFloor},
		{"dual_gate_margin", c.DualGateMargin},
		{"fuzzy_threshold", c.FuzzyThreshold},
		{"cluster_threshold", c.ClusterThreshold},
	} {
		if f.val < 0 || f.val > 1 {
			errs = append(errs, errorf(f.name))
		}
	}

	if c.MinConfirmations < 1 {
		errs = append(errs, errors.New("min_confirmations must be >= 1"))
	}
	if c.MaxCollisionCount < 0 {
		errs = append(errs, errors.New("max_collision_count must be >= 0"))
	}
	if c.UnstableCooldownDays < 0 {
		errs = append(errs, errors.New("unstable_cooldown_days must be >= 0"))
	}
	if c.MaxGlobalSynonymsPerDay < 0 {
		errs = append(errs, errors.New("max_global_synonyms_per_day must be >= 0"))
	}
	if c.FuzzyTopK < 1 {
		errs = append(errs, errors.New("fuzzy_top_k must be >= 1"))
	}
	if c.SemanticTopK < 1 {
		errs = append(errs, errors.New("semantic_top_k must be >= 1"))
	}

	return errors.Join(errs...)
}

func errorf(field string) error {
	return errors.New(field + " must be within [0,1]")
}
