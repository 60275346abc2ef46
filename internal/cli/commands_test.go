package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/till/internal/config"
	"github.com/roach88/till/internal/inventory"
	"github.com/roach88/till/internal/pricing"
	"github.com/roach88/till/internal/store"
)

// newConfig writes a till.yaml using a fresh SQLite database and the test rules.
func newConfig(t *testing.T) (path, dbPath string) {
	t.Helper()
	for _, key := range []string{config.EnvStoreDriver, config.EnvStoreDSN, config.EnvTaxRate, config.EnvServerAddr} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "till.db")
	rules, err := filepath.Abs(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)

	path = filepath.Join(dir, "till.yaml")
	content := "tax_rate: \"0.10\"\nrules: " + rules + "\nstore:\n  driver: sqlite\n  dsn: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, dbPath
}

// execute runs the root command with args, using cfgPath as --config when set.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{Logger: zap.NewNop()})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestQuote_Text(t *testing.T) {
	cfg, _ := newConfig(t)

	out, err := execute(t, cfg, "quote", "testdata/cart.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:              ready")
	assert.Contains(t, out, "(bulk-2, loyal-10)")
	assert.Contains(t, out, "USD")
	assert.Contains(t, out, "MISSING_THRESHOLD")
}

func TestQuote_JSON(t *testing.T) {
	cfg, _ := newConfig(t)

	out, err := execute(t, cfg, "quote", "testdata/cart.yaml", "--format", "json")
	require.NoError(t, err)

	var result QuoteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.EqualValues(t, 20000, result.Totals.Subtotal)
	assert.EqualValues(t, 1700, result.Totals.AutomaticDiscount)
	assert.EqualValues(t, 1000, result.Totals.ManualDiscount)
	assert.EqualValues(t, 1730, result.Totals.Tax)
	assert.EqualValues(t, 19030, result.Totals.Total)
	assert.Equal(t, []string{"bulk-2", "loyal-10"}, result.AppliedRuleIDs)
	assert.Len(t, result.Fingerprint, 64)
	assert.Contains(t, result.Display["total"], "USD")
}

func TestQuote_FlagsOverrideConfig(t *testing.T) {
	cfg, _ := newConfig(t)

	out, err := execute(t, cfg, "quote", "testdata/cart.yaml", "--format", "json",
		"--tax-rate", "0", "--delivery-fee", "300")
	require.NoError(t, err)

	var result QuoteResult
	decodeResponse(t, out, &result)
	assert.EqualValues(t, 0, result.Totals.Tax)
	assert.EqualValues(t, 300, result.Totals.DeliveryFee)
	assert.EqualValues(t, 20000-2700+300, result.Totals.Total)
}

func TestQuote_InvalidTaxRate(t *testing.T) {
	cfg, _ := newConfig(t)

	for _, rate := range []string{"abc", "-0.05"} {
		t.Run(rate, func(t *testing.T) {
			out, err := execute(t, cfg, "quote", "testdata/cart.yaml", "--tax-rate="+rate, "--format", "json")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "E_CONFIG", resp.Error.Code)
		})
	}
}

func TestQuote_CustomerFromStore(t *testing.T) {
	cfg, dbPath := newConfig(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.PutCustomer(context.Background(), pricing.Customer{ID: "c-9", PointsBalance: 50}))
	require.NoError(t, st.Close())

	cart := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(cart, []byte(`
customer_id: c-9
items:
  - {product_id: phone, unit_price: 10000, quantity: 1, available: 1}
`), 0644))

	out, err := execute(t, cfg, "quote", cart, "--format", "json")
	require.NoError(t, err)
	var result QuoteResult
	decodeResponse(t, out, &result)
	assert.Empty(t, result.AppliedRuleIDs, "50 points is below the loyalty threshold")

	require.NoError(t, os.WriteFile(cart, []byte(`
customer_id: nobody
items:
  - {product_id: phone, unit_price: 10000, quantity: 1, available: 1}
`), 0644))
	_, err = execute(t, cfg, "quote", cart)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQuote_BadCartFile(t *testing.T) {
	cfg, _ := newConfig(t)
	cart := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(cart, []byte("itemz: []\n"), 0644))

	out, err := execute(t, cfg, "quote", cart)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E_CART")
}

func TestRulesValidate_ReportsDiagnostics(t *testing.T) {
	out, err := execute(t, "", "rules", "validate", "testdata/rules.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "broken: MISSING_THRESHOLD")
}

func TestRulesValidate_JSON(t *testing.T) {
	out, err := execute(t, "", "rules", "validate", "testdata/rules.yaml", "--format", "json")
	require.Error(t, err)

	var result RulesResult
	decodeResponse(t, out, &result)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.Rules)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, pricing.DiagMissingThreshold, result.Diagnostics[0].Code)
}

func TestRulesValidate_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: bulk-2
    category: bulk
    type: fixed
    value: 500
    threshold: {minUnits: 2}
`), 0644))

	out, err := execute(t, "", "rules", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 1 rule(s) valid")
}

func TestRulesValidate_UsesConfiguredPath(t *testing.T) {
	cfg, _ := newConfig(t)
	out, err := execute(t, cfg, "rules", "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "broken")
}

func TestRulesValidate_NotFound(t *testing.T) {
	out, err := execute(t, "", "rules", "validate", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
}

func TestUnits_ImportAndList(t *testing.T) {
	cfg, _ := newConfig(t)

	out, err := execute(t, cfg, "units", "import", "testdata/units.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 unit(s)")

	out, err = execute(t, cfg, "units", "list", "--product", "phone", "--status", "available", "--format", "json")
	require.NoError(t, err)
	var units []inventory.Unit
	decodeResponse(t, out, &units)
	require.Len(t, units, 2)
	assert.Equal(t, inventory.KindSerial, units[0].Kind)

	out, err = execute(t, cfg, "units", "list", "--status", "damaged")
	require.NoError(t, err)
	assert.Contains(t, out, "356938035643809")
	assert.Contains(t, out, "imei")

	_, err = execute(t, cfg, "units", "list", "--status", "lost")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnits_ImportRejectsBadFile(t *testing.T) {
	cfg, _ := newConfig(t)
	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(path, []byte("units:\n  - {id: x, product_id: p, kind: rfid}\n"), 0644))

	out, err := execute(t, cfg, "units", "import", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "unknown identifier kind")
}

func TestAllocate_Lifecycle(t *testing.T) {
	cfg, dbPath := newConfig(t)
	_, err := execute(t, cfg, "units", "import", "testdata/units.yaml")
	require.NoError(t, err)

	out, err := execute(t, cfg, "allocate", "phone", "--variant", "black", "--quantity", "1", "--pick", "sn-0002", "--format", "json")
	require.NoError(t, err)
	var alloc inventory.Allocation
	decodeResponse(t, out, &alloc)
	assert.Equal(t, inventory.StageReserve, alloc.Stage)
	assert.Equal(t, []string{"SN-0002"}, alloc.UnitIDs())

	_, err = execute(t, cfg, "finalize", "phone", "--variant", "black", "--unit", "SN-0002")
	require.NoError(t, err)

	out, err = execute(t, cfg, "finalize", "phone", "--variant", "black", "--unit", "SN-0002")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "STALE_UNIT")

	out, err = execute(t, cfg, "allocate", "phone", "--variant", "black", "--quantity", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ reserve phone/black: SN-0001")

	_, err = execute(t, cfg, "release", "phone", "--variant", "black", "--unit", "SN-0001")
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	u1, err := st.Unit(context.Background(), "SN-0001")
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusAvailable, u1.Status)
	u2, err := st.Unit(context.Background(), "SN-0002")
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusSold, u2.Status)
}

func TestAllocate_Failures(t *testing.T) {
	cfg, _ := newConfig(t)
	_, err := execute(t, cfg, "units", "import", "testdata/units.yaml")
	require.NoError(t, err)

	out, err := execute(t, cfg, "allocate", "phone", "--variant", "black", "--quantity", "3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INSUFFICIENT_CANDIDATES")

	out, err = execute(t, cfg, "allocate", "phone", "--variant", "black", "--pick", "SN-9999")
	require.Error(t, err)
	assert.Contains(t, out, "UNKNOWN_UNIT")

	_, err = execute(t, cfg, "allocate", "phone", "--stage", "finalize")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheck_Scenarios(t *testing.T) {
	out, err := execute(t, "", "check", filepath.Join("..", "scenario", "testdata"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ gold_member_stack")
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}

func TestCheck_JSONFilter(t *testing.T) {
	out, err := execute(t, "", "check", filepath.Join("..", "scenario", "testdata"), "--filter", "insufficient_*", "--format", "json")
	require.NoError(t, err)

	var result CheckResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
}

func TestCheck_FailureAndUpdate(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "plain.yaml")
	require.NoError(t, os.WriteFile(scenarioPath, []byte(`
name: plain
description: "one item, no rules"
items:
  - {product_id: a, unit_price: 1000, quantity: 1, available: 1}
expect:
  total: 1000
`), 0644))

	golden := filepath.Join(dir, "golden", "plain.golden")
	require.NoError(t, os.MkdirAll(filepath.Dir(golden), 0755))
	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0644))

	out, err := execute(t, "", "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden file mismatch")

	_, err = execute(t, "", "check", dir, "--update")
	require.NoError(t, err)
	_, err = execute(t, "", "check", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"plain"`)
}

func TestCheck_MissingDirectory(t *testing.T) {
	_, err := execute(t, "", "check", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
