package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func runTestCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

// writeScenario writes a scenario that adds one service, pointing at the
// shared harness catalog by absolute path.
func writeScenario(t *testing.T, dir, name string, quantity int) {
	t.Helper()
	catalogPath, err := filepath.Abs("../harness/testdata/catalog.cue")
	require.NoError(t, err)
	body := fmt.Sprintf(`name: %s
description: "Adds service 10"
catalog: %q
steps:
  - action: add
    service: "10"
    quantity: %d
assertions:
  - type: quantity
    service: "10"
    count: %d
`, name, catalogPath, quantity, quantity)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	buf, err := runTestCommand(t, "text", harnessScenarios)
	require.NoError(t, err, buf.String())

	out := buf.String()
	assert.Contains(t, out, "✓ resize_keeps_answers")
	assert.Contains(t, out, "✓ import_respects_removals")
	assert.Contains(t, out, "✓ reload_restores_state")
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}

func TestTestCommandFilter(t *testing.T) {
	buf, err := runTestCommand(t, "json", harnessScenarios, "--filter", "re*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	for _, s := range resp.Data.Scenarios {
		assert.NotEqual(t, "import_respects_removals", s.Name)
	}
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := runTestCommand(t, "text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	writeScenario(t, scenarios, "add_ten", 2)

	buf, err := runTestCommand(t, "text", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "golden updated")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "add_ten.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario": "add_ten"`)

	_, err = runTestCommand(t, "text", scenarios)
	require.NoError(t, err)

	// Same name, different outcome: the snapshot no longer matches.
	writeScenario(t, scenarios, "add_ten", 3)
	buf, err = runTestCommand(t, "text", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Golden file mismatch")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_ten", 1)
	body, err := os.ReadFile(filepath.Join(dir, "add_ten.yaml"))
	require.NoError(t, err)
	body = bytes.Replace(body, []byte("count: 1"), []byte("count: 5"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "add_ten.yaml"), body, 0o644))

	buf, err := runTestCommand(t, "json", dir, "--golden-dir", filepath.Join(dir, "none"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\nsteps: []\n"), 0o644))

	buf, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ bad.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}
