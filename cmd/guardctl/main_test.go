package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func testConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
database:
  driver: sqlite
  dsn: `+filepath.Join(dir, "guard.db")+`
settings:
  path: `+filepath.Join(dir, "absent.yaml")+`
log:
  level: error
`)
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	validateOpts.answer, validateOpts.answerFile, validateOpts.query, validateOpts.settings = "", "", "", ""
	validateOpts.mode = string(validation.EnforcementStrict)
	validateOpts.constrained, validateOpts.strict = false, false
	statsDays, statsDaily = 7, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const akeenSnapshot = `{"kind":"advisor","id":"u-1","month":8,"year":2025,
 "fields":{"advisorName":"Akeen Jackson","sales":5385,"gpSales":2600.5,"invoices":27,"rawSales":99999}}`

func TestValidate_CorrectsWrongFigure(t *testing.T) {
	dir, cfgPath := testConfig(t)
	snap := writeFile(t, dir, "u-1.json", akeenSnapshot)

	out, err := run(t, "--config", cfgPath, "validate", "--metrics", snap,
		"--answer", "Akeen Jackson had $23,450 in sales in August.")
	require.NoError(t, err)

	var got struct {
		Result     validation.Result     `json:"result"`
		Correction validation.Correction `json:"correction"`
		Metrics    struct {
			Dropped []string `json:"dropped"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.False(t, got.Result.IsValid)
	require.NotEmpty(t, got.Result.Mismatches)
	assert.Equal(t, "sales", got.Result.Mismatches[0].Field)
	assert.Contains(t, got.Correction.Text, "5385 (corrected from 23450)")
	assert.Contains(t, got.Metrics.Dropped, "rawSales")
}

func TestValidate_FailOnMismatch(t *testing.T) {
	dir, cfgPath := testConfig(t)
	snap := writeFile(t, dir, "u-1.json", akeenSnapshot)

	_, err := run(t, "--config", cfgPath, "validate", "--metrics", snap, "--fail-on-mismatch",
		"--answer", "Akeen Jackson had $23,450 in sales in August.")
	assert.ErrorIs(t, err, errMismatch)

	_, err = run(t, "--config", cfgPath, "validate", "--metrics", snap, "--fail-on-mismatch",
		"--answer", "Akeen Jackson had $5,385 in sales in August.")
	assert.NoError(t, err)
}

func TestValidate_RequiresAnswer(t *testing.T) {
	dir, cfgPath := testConfig(t)
	snap := writeFile(t, dir, "u-1.json", akeenSnapshot)

	_, err := run(t, "--config", cfgPath, "validate", "--metrics", snap)
	assert.Error(t, err)
}

func TestSeedThenStats(t *testing.T) {
	dir, cfgPath := testConfig(t)
	seed := writeFile(t, dir, "seed.yaml", `
units:
  - {id: m-atl, kind: market, name: Atlanta}
  - {id: s-12, kind: store, name: Midtown, parent_id: m-atl}
users:
  - {id: u-1, first_name: Akeen, last_name: Jackson, store_id: s-12, market_id: m-atl}
  - {id: u-admin, first_name: Sam, last_name: Ortiz, role: admin}
metrics:
  - kind: advisor
    id: u-1
    month: 8
    year: 2025
    fields: {sales: "5385", invoices: "27"}
`)

	out, err := run(t, "--config", cfgPath, "seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 users, 2 units, 1 metric sets")

	out, err = run(t, "--config", cfgPath, "stats", "--days", "30")
	require.NoError(t, err)
	var st struct {
		Days  int `json:"days"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st), out)
	assert.Equal(t, 30, st.Days)
	assert.Zero(t, st.Total)
}

func TestSeed_RejectsUnknownKeys(t *testing.T) {
	dir, cfgPath := testConfig(t)
	seed := writeFile(t, dir, "seed.yaml", "people: []\n")

	_, err := run(t, "--config", cfgPath, "seed", seed)
	assert.Error(t, err)
}
