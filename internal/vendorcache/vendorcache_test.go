package vendorcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-kno3/analyte-resolver/internal/model"
)

const (
	benzene = "REG153_001"
	toluene = "REG153_002"
)

func testParams() Params {
	return Params{
		VendorBoost:          0.02,
		DecayWindowDays:      90,
		DecayLambda:          0.5,
		DecayFloor:           0.60,
		MinConfirmations:     3,
		MaxCollisionCount:    2,
		UnstableCooldownDays: 7,
	}
}

func TestObserve_ColdPath(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	v := c.Observe("LabA", "benzene x method", now)
	assert.Equal(t, 1, v.FrequencyCount)
	assert.Equal(t, 0, v.CollisionCount)
	assert.Equal(t, now, v.FirstSeenDate)

	_, confirmations, ok := c.Get("LabA", "benzene x method")
	require.True(t, ok)
	assert.Empty(t, confirmations, "a cold observation must not create confirmation children")

	probe := c.Probe("LabA", "benzene x method", now, 0.90)
	assert.False(t, probe.Hit, "an unvalidated variant must never short-circuit the cascade")
}

func TestObserve_IncrementsFrequency(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Observe("LabA", "toluene", now)
	v := c.Observe("LabA", "toluene", now.Add(time.Hour))
	assert.Equal(t, 2, v.FrequencyCount)
	assert.Equal(t, now, v.FirstSeenDate)
	assert.Equal(t, now.Add(time.Hour), v.LastSeenDate)
}

func TestValidate_ConsensusBuildUp(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two confirmations: PROVISIONAL, probe must still miss.
	for i := range 2 {
		res := c.Validate("LabA", "benzene x method", fmt.Sprintf("sub-%d", i), benzene, now)
		assert.Equal(t, StateProvisional, res.State)
		assert.Equal(t, model.GradeMedium, res.Variant.ValidationGrade)
	}
	assert.False(t, c.Probe("LabA", "benzene x method", now, 0.90).Hit,
		"below min_confirmations the cache must miss")

	// Third distinct submission reaches consensus.
	res := c.Validate("LabA", "benzene x method", "sub-2", benzene, now)
	assert.Equal(t, StateStable, res.State)
	assert.Equal(t, model.GradeHigh, res.Variant.ValidationGrade)

	probe := c.Probe("LabA", "benzene x method", now, 0.90)
	require.True(t, probe.Hit)
	assert.Equal(t, benzene, probe.AnalyteID)
	assert.False(t, probe.Stale)
	assert.GreaterOrEqual(t, probe.Confidence, testParams().DecayFloor)
}

func TestValidate_DuplicateSubmissionIsNoOp(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Validate("LabA", "benzene", "sub-0", benzene, now)
	res := c.Validate("LabA", "benzene", "sub-0", benzene, now)
	assert.True(t, res.Duplicate)

	_, confirmations, ok := c.Get("LabA", "benzene")
	require.True(t, ok)
	assert.Len(t, confirmations, 1, "a repeated submission ID must not add a confirmation")
}

func TestValidate_CollisionInvalidatesOlderConfirmations(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		c.Validate("LabA", "benzene x method", fmt.Sprintf("sub-%d", i), benzene, now)
	}
	require.True(t, c.Probe("LabA", "benzene x method", now, 0.90).Hit)

	// A disagreeing validation collides.
	res := c.Validate("LabA", "benzene x method", "sub-3", toluene, now)
	assert.True(t, res.Collision)
	assert.Equal(t, benzene, res.SupersededAnalyteID)
	assert.Equal(t, 1, res.Variant.CollisionCount)
	assert.Equal(t, toluene, res.Variant.ValidatedAnalyteID)

	_, confirmations, ok := c.Get("LabA", "benzene x method")
	require.True(t, ok)
	valid := 0
	for _, conf := range confirmations {
		if conf.ValidForConsensus {
			valid++
			assert.Equal(t, toluene, conf.ConfirmedAnalyteID,
				"only confirmations of the new mapping may stay valid")
		}
	}
	assert.Equal(t, 1, valid)

	// Consensus is gone (1 valid - 1 collision < 3): probe misses.
	assert.False(t, c.Probe("LabA", "benzene x method", now, 0.90).Hit)
}

func TestValidate_CollisionBoundArmsUnstableCooldown(t *testing.T) {
	params := testParams()
	params.MaxCollisionCount = 1
	c := New(params)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		c.Validate("LabA", "xylene mix", fmt.Sprintf("sub-%d", i), benzene, now)
	}

	// Two collisions push past max_collision_count.
	c.Validate("LabA", "xylene mix", "sub-3", toluene, now)
	res := c.Validate("LabA", "xylene mix", "sub-4", benzene, now)
	assert.Equal(t, StateUnstable, res.State)
	assert.Equal(t, model.GradeUnstable, res.Variant.ValidationGrade)
	assert.Equal(t, 2, res.Variant.CollisionCount)

	// In cooldown: probes miss even with fresh confirmations piling up.
	assert.False(t, c.Probe("LabA", "xylene mix", now, 0.90).Hit)
	assert.False(t, c.Probe("LabA", "xylene mix", now.AddDate(0, 0, 6), 0.90).Hit)

	// After cooldown expiry the row is eligible again once fresh
	// confirmations rebuild consensus past the collision count.
	after := now.AddDate(0, 0, 8)
	for i := 5; i < 10; i++ {
		c.Validate("LabA", "xylene mix", fmt.Sprintf("sub-%d", i), benzene, after)
	}
	probe := c.Probe("LabA", "xylene mix", after, 0.90)
	assert.True(t, probe.Hit)
	assert.Equal(t, benzene, probe.AnalyteID)
}

func TestProbe_TemporalDecay(t *testing.T) {
	params := testParams()
	c := New(params)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		c.Validate("LabA", "benzene", fmt.Sprintf("sub-%d", i), benzene, now)
	}

	tests := []struct {
		name      string
		ageDays   int
		wantMin   float64
		wantMax   float64
		wantStale bool
	}{
		{"fresh", 0, 1.0, 1.0, false},
		{"mid-window", 45, 0.75, 0.75, true},
		{"past window clamps at floor", 365, params.DecayFloor, params.DecayFloor, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := c.Probe("LabA", "benzene", now.AddDate(0, 0, tt.ageDays), 0.90)
			require.True(t, probe.Hit)
			assert.GreaterOrEqual(t, probe.Confidence, tt.wantMin-1e-9)
			assert.LessOrEqual(t, probe.Confidence, tt.wantMax+1e-9)
			assert.LessOrEqual(t, probe.Confidence, 1.0)
			assert.GreaterOrEqual(t, probe.Confidence, params.DecayFloor)
			assert.Equal(t, tt.wantStale, probe.Stale)
		})
	}
}

func TestProbe_StaleHitCannotAutoAccept(t *testing.T) {
	// Invariant B: the decay floor sits strictly below auto_accept, so a
	// maximally stale hit is always reported stale.
	params := testParams()
	c := New(params)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		c.Validate("LabA", "benzene", fmt.Sprintf("sub-%d", i), benzene, now)
	}
	probe := c.Probe("LabA", "benzene", now.AddDate(2, 0, 0), 0.90)
	require.True(t, probe.Hit)
	assert.Equal(t, params.DecayFloor, probe.Confidence)
	assert.True(t, probe.Stale)
}

func TestLoad_RestoresStateAndRejectsDuplicates(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	v := model.LabVariant{
		ID: 7, NormalizedText: "benzene", LabVendor: "LabA",
		FrequencyCount: 4, FirstSeenDate: now, LastSeenDate: now,
		ValidatedAnalyteID: benzene, ValidationGrade: model.GradeHigh,
		NormalizationVersion: 1,
	}
	confs := make([]model.LabVariantConfirmation, 3)
	for i := range confs {
		confs[i] = model.LabVariantConfirmation{
			ID: int64(i + 1), VariantID: 7, SubmissionID: fmt.Sprintf("sub-%d", i),
			ConfirmedAnalyteID: benzene, ConfirmedAt: now, ValidForConsensus: true,
		}
	}
	require.NoError(t, c.Load(v, confs))

	probe := c.Probe("LabA", "benzene", now, 0.90)
	assert.True(t, probe.Hit, "a warm-started variant with consensus must hit")

	err := c.Load(v, confs)
	assert.Error(t, err, "loading the same (vendor, normalized) twice violates uniqueness")
}

func TestStateMachine_NewToProvisionalToStable(t *testing.T) {
	c := New(testParams())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Observe("LabA", "cumene", now)
	v, _, ok := c.Get("LabA", "cumene")
	require.True(t, ok)
	assert.Equal(t, model.GradeUnknown, v.ValidationGrade)

	res := c.Validate("LabA", "cumene", "sub-0", benzene, now)
	assert.Equal(t, StateProvisional, res.State)

	c.Validate("LabA", "cumene", "sub-1", benzene, now)
	res = c.Validate("LabA", "cumene", "sub-2", benzene, now)
	assert.Equal(t, StateStable, res.State)
}
