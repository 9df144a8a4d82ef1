package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidateRejectsVendorBoostAtMarginThreshold(t *testing.T) {
	cfg := Default()
	cfg.VendorBoost = cfg.MarginThreshold // no longer strictly less
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor_boost")
}

func TestValidateRejectsDecayFloorAtAutoAccept(t *testing.T) {
	cfg := Default()
	cfg.DecayFloor = cfg.AutoAccept
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decay_floor")
}

func TestValidateRejectsBrokenThresholdOrdering(t *testing.T) {
	cfg := Default()
	cfg.Review = cfg.AutoAccept + 0.1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ood_threshold")
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsInvariantViolation(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/resolvectl.yaml"
	require.NoError(t, WriteYAML(Config{AutoAccept: 0.1, Review: 0.9}, path))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvariantViolation)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/resolvectl.yaml"
	cfg := Default()
	require.NoError(t, WriteYAML(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
