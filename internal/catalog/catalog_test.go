package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

func TestLoadYAML(t *testing.T) {
	res, err := Load(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Catalog.Len())

	gold, ok := res.Catalog.Lookup("gold-10")
	require.True(t, ok)
	assert.Equal(t, pricing.CategoryLoyalty, gold.Category)
	assert.Equal(t, "Gold members", gold.Name)
	require.NotNil(t, gold.Cap)
	assert.Equal(t, money.Amount(2000), *gold.Cap)
	assert.True(t, gold.Enabled)

	happy, ok := res.Catalog.Lookup("happy-hour")
	require.True(t, ok)
	require.NotNil(t, happy.Threshold.Window)
	assert.Equal(t, "17:00", happy.Threshold.Window.Start.String())
	assert.Equal(t, "7.5", happy.Value.Percent.String())

	off, ok := res.Catalog.Lookup("no-threshold")
	require.True(t, ok)
	assert.False(t, off.Enabled)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "fractional", res.Diagnostics[0].RuleID)
	assert.Equal(t, pricing.DiagInvalidValue, res.Diagnostics[0].Code)
	assert.Equal(t, "typo", res.Diagnostics[1].RuleID)
	assert.Equal(t, pricing.DiagInvalidDocument, res.Diagnostics[1].Code)
	assert.Contains(t, res.Diagnostics[1].Message, "treshold")

	all := res.AllDiagnostics()
	require.Len(t, all, 3)
	assert.Equal(t, "no-threshold", all[2].RuleID)
	assert.Equal(t, pricing.DiagMissingThreshold, all[2].Code)
}

func TestParseYAML_Errors(t *testing.T) {
	_, err := ParseYAML([]byte("rules: [\n"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeParseFailed, le.Code)

	_, err = ParseYAML([]byte("rulez: []\n"))
	require.ErrorAs(t, err, &le)

	res, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Catalog.Len())
}

func TestParseYAML_RuleWithoutID(t *testing.T) {
	res, err := ParseYAML([]byte("rules:\n  - category: bulk\n    type: fixed\n    value: [1]\n"))
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "rules[0]", res.Diagnostics[0].RuleID)
	assert.Contains(t, res.Diagnostics[0].Message, "line 2")
}

func TestLoadCUE(t *testing.T) {
	res, err := Load(filepath.Join("testdata", "cue"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 3, res.Catalog.Len())

	vip, ok := res.Catalog.Lookup("vip")
	require.True(t, ok)
	assert.Equal(t, []string{"gold", "platinum"}, vip.Threshold.Tiers)
	assert.Equal(t, money.Amount(300), vip.Value.Amount)

	late, ok := res.Catalog.Lookup("late")
	require.True(t, ok)
	assert.False(t, late.Enabled)
	assert.Equal(t, pricing.ClockTime(2*60), late.Threshold.Window.End)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "flash", res.Diagnostics[0].RuleID)
	assert.Equal(t, pricing.DiagInvalidDocument, res.Diagnostics[0].Code)
}

func TestLoadCUE_SingleFile(t *testing.T) {
	res, err := Load(filepath.Join("testdata", "cue", "rules.cue"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Catalog.Len())
}

func TestLoad_Errors(t *testing.T) {
	var le *LoadError

	_, err := Load(filepath.Join("testdata", "missing"))
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)

	_, err = Load(t.TempDir())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)

	_, err = Load(filepath.Join("testdata", "badcue"))
	require.ErrorAs(t, err, &le)
	assert.Contains(t, []string{ErrCodeLoadFailed, ErrCodeBuildFailed}, le.Code)

	txt := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = Load(txt)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeFormat, le.Code)
}
