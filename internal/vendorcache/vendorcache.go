// Package vendorcache implements the per-vendor behavioral memory:
// a bounded, lossy, decay-prone prior over observed lab tokens, kept
// strictly separate from the high-inertia global synonym graph. Five
// invariants (uniqueness, consensus, collision bound, cooldown, temporal
// decay) govern every state transition.
package vendorcache

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

// State is the vendor cache's state machine position for a LabVariant.
type State string

const (
	StateNew         State = "NEW"
	StateProvisional State = "PROVISIONAL"
	StateStable      State = "STABLE"
	StateUnstable    State = "UNSTABLE"
)

// Params bundles the vendor-subsystem constants a Cache is constructed
// with (mirrors config.Config's vendor fields; kept separate so this
// package has no import-time dependency on internal/config).
type Params struct {
	VendorBoost          float64
	DecayWindowDays      int
	DecayLambda          float64
	DecayFloor           float64
	MinConfirmations     int
	MaxCollisionCount    int
	UnstableCooldownDays int
}

// Cache holds every vendor's observed LabVariants in memory. A persistent
// store (internal/store) is the system of record; Cache is the
// read/write view the resolver and learning loop operate on. All methods
// are safe for concurrent use: resolves probe and observe while the
// learning loop validates.
type Cache struct {
	params Params

	mu       sync.Mutex
	variants map[key]*model.LabVariant
	confirms map[int64][]model.LabVariantConfirmation
	nextID   int64
}

type key struct {
	vendor     string
	normalized string
}

// New creates an empty vendor cache.
func New(params Params) *Cache {
	return &Cache{
		params:   params,
		variants: make(map[key]*model.LabVariant),
		confirms: make(map[int64][]model.LabVariantConfirmation),
	}
}

// ProbeResult is what a cache probe returns to the cascade resolver.
type ProbeResult struct {
	Hit        bool
	AnalyteID  string
	Confidence float64
	Stale      bool // true when confidence < auto_accept; method vendor_cache_stale
}

// Probe looks up (vendor, normalizedText) and, if all five invariants
// pass, returns a hit with decayed confidence. autoAccept is passed in
// so the stale/fresh distinction can be made without this package
// importing internal/config.
func (c *Cache) Probe(vendor, normalizedText string, now time.Time, autoAccept float64) ProbeResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.variants[key{vendor, normalizedText}]
	if !ok || v.ValidatedAnalyteID == "" {
		return ProbeResult{}
	}

	if c.inCooldown(v, now) {
		return ProbeResult{}
	}

	if !c.hasConsensus(v) {
		return ProbeResult{}
	}

	conf := c.decayedConfidence(v, now)
	return ProbeResult{
		Hit:        true,
		AnalyteID:  v.ValidatedAnalyteID,
		Confidence: conf,
		Stale:      conf < autoAccept,
	}
}

// hasConsensus implements invariant 2: distinct valid confirmations minus
// collision count must be >= min_confirmations.
func (c *Cache) hasConsensus(v *model.LabVariant) bool {
	valid := 0
	for _, conf := range c.confirms[v.ID] {
		if conf.ValidForConsensus {
			valid++
		}
	}
	return valid-v.CollisionCount >= c.params.MinConfirmations
}

// inCooldown implements invariants 3 and 4: a variant past the collision
// bound is UNSTABLE and ineligible until unstable_cooldown_days have
// passed since its last collision.
func (c *Cache) inCooldown(v *model.LabVariant, now time.Time) bool {
	if v.CollisionCount <= c.params.MaxCollisionCount {
		return false
	}
	if v.LastCollisionDate.IsZero() {
		return false
	}
	cooldownEnd := v.LastCollisionDate.AddDate(0, 0, c.params.UnstableCooldownDays)
	return now.Before(cooldownEnd)
}

// decayedConfidence implements invariant 5: output confidence decays from
// 1.0 toward decay_floor as the variant ages past last_seen_date, and
// never drops below the floor.
func (c *Cache) decayedConfidence(v *model.LabVariant, now time.Time) float64 {
	ageDays := now.Sub(v.LastSeenDate).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	window := float64(c.params.DecayWindowDays)
	fraction := 1.0
	if window > 0 {
		fraction = math.Min(1.0, ageDays/window)
	}
	conf := 1.0 - c.params.DecayLambda*fraction
	if conf < c.params.DecayFloor {
		conf = c.params.DecayFloor
	}
	return conf
}

// Observe records a raw sighting of (vendor, normalizedText); invariant
// 1 (uniqueness) is enforced by the map key itself. Called on every
// resolve and every validation.
func (c *Cache) Observe(vendor, normalizedText string, now time.Time) model.LabVariant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.observeLocked(vendor, normalizedText, now)
}

func (c *Cache) observeLocked(vendor, normalizedText string, now time.Time) *model.LabVariant {
	k := key{vendor, normalizedText}
	v, ok := c.variants[k]
	if !ok {
		c.nextID++
		v = &model.LabVariant{
			ID:                   c.nextID,
			NormalizedText:       normalizedText,
			LabVendor:            vendor,
			FirstSeenDate:        now,
			LastSeenDate:         now,
			ValidationGrade:      model.GradeUnknown,
			NormalizationVersion: 1,
			CreatedAt:            now,
		}
		c.variants[k] = v
	}
	v.FrequencyCount++
	v.LastSeenDate = now
	return v
}

// ValidateResult reports everything a validation event changed, so the
// persistence layer can mirror the in-memory transition durably in one
// logical operation: a write spanning the variant and its confirmation
// children must land or fail as a unit.
type ValidateResult struct {
	Variant             model.LabVariant
	State               State
	Confirmation        model.LabVariantConfirmation
	Duplicate           bool   // submissionID already confirmed this variant; nothing changed beyond the observation
	Collision           bool   // this event disagreed with the prior validated mapping
	SupersededAnalyteID string // the mapping whose confirmations were invalidated, when Collision
}

// Validate applies a human validation event: inserts a confirmation
// child, drives the consensus/collision state machine, and returns the
// resulting state. submissionID must be unique per distinct submission;
// a duplicate submission for the same variant is a no-op confirmation
// write.
func (c *Cache) Validate(vendor, normalizedText, submissionID, confirmedAnalyteID string, now time.Time) ValidateResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.observeLocked(vendor, normalizedText, now)

	for _, conf := range c.confirms[v.ID] {
		if conf.SubmissionID == submissionID {
			return ValidateResult{Variant: *v, State: c.stateOf(v), Duplicate: true}
		}
	}

	collision := v.ValidatedAnalyteID != "" && v.ValidatedAnalyteID != confirmedAnalyteID
	superseded := ""

	if collision {
		superseded = v.ValidatedAnalyteID
		c.invalidateConfirmationsFor(v.ID, superseded)
		v.CollisionCount++
		v.LastCollisionDate = now
	}

	confirmation := model.LabVariantConfirmation{
		ID:                 int64(len(c.confirms[v.ID]) + 1),
		VariantID:          v.ID,
		SubmissionID:       submissionID,
		ConfirmedAnalyteID: confirmedAnalyteID,
		ConfirmedAt:        now,
		ValidForConsensus:  true,
	}
	c.confirms[v.ID] = append(c.confirms[v.ID], confirmation)

	// On collision the new mapping becomes the row's current candidate;
	// consensus must rebuild from fresh confirmations.
	v.ValidatedAnalyteID = confirmedAnalyteID

	state := c.stateOf(v)
	v.ValidationGrade = gradeFor(state)
	return ValidateResult{
		Variant:             *v,
		State:               state,
		Confirmation:        confirmation,
		Collision:           collision,
		SupersededAnalyteID: superseded,
	}
}

func (c *Cache) invalidateConfirmationsFor(variantID int64, supersededAnalyteID string) {
	confs := c.confirms[variantID]
	for i := range confs {
		if confs[i].ConfirmedAnalyteID == supersededAnalyteID {
			confs[i].ValidForConsensus = false
		}
	}
}

// stateOf computes the current state machine position:
// NEW -> PROVISIONAL (has confirmations but below min_confirmations) ->
// STABLE (eligible) <-> UNSTABLE (collision bound exceeded, cooldown).
func (c *Cache) stateOf(v *model.LabVariant) State {
	if v.CollisionCount > c.params.MaxCollisionCount {
		return StateUnstable
	}
	validCount := 0
	for _, conf := range c.confirms[v.ID] {
		if conf.ValidForConsensus {
			validCount++
		}
	}
	if validCount == 0 {
		return StateNew
	}
	if validCount-v.CollisionCount >= c.params.MinConfirmations {
		return StateStable
	}
	return StateProvisional
}

func gradeFor(state State) model.ValidationGrade {
	switch state {
	case StateStable:
		return model.GradeHigh
	case StateProvisional:
		return model.GradeMedium
	case StateUnstable:
		return model.GradeUnstable
	default:
		return model.GradeUnknown
	}
}

// Get returns the current LabVariant row for (vendor, normalizedText), if
// any, along with its confirmation children, for store persistence and
// diagnostics.
func (c *Cache) Get(vendor, normalizedText string) (model.LabVariant, []model.LabVariantConfirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.variants[key{vendor, normalizedText}]
	if !ok {
		return model.LabVariant{}, nil, false
	}
	return *v, append([]model.LabVariantConfirmation(nil), c.confirms[v.ID]...), true
}

// Load seeds the cache from persisted rows (internal/store), restoring
// state after a restart. variantID must be unique across v.
func (c *Cache) Load(v model.LabVariant, confirmations []model.LabVariantConfirmation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{v.LabVendor, v.NormalizedText}
	if _, exists := c.variants[k]; exists {
		return fmt.Errorf("vendorcache: duplicate (vendor, normalized) on load: %s/%s", v.LabVendor, v.NormalizedText)
	}
	vv := v
	c.variants[k] = &vv
	c.confirms[v.ID] = append([]model.LabVariantConfirmation(nil), confirmations...)
	if v.ID >= c.nextID {
		c.nextID = v.ID
	}
	return nil
}
