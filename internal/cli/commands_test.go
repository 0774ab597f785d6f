package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/config"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

// cliEnv is a config file, a local store and a fake API shared by
// consecutive command invocations, each of which is a fresh process in
// real use.
type cliEnv struct {
	dir        string
	configPath string
	received   atomic.Int32
	lastBody   atomic.Value
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	for _, k := range []string{config.EnvAPIURL, config.EnvDB, config.EnvBackend, config.EnvStrategy, config.EnvOffline} {
		t.Setenv(k, "")
	}

	env := &cliEnv{dir: t.TempDir()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/service-requests" {
			body, _ := io.ReadAll(r.Body)
			env.lastBody.Store(body)
			n := env.received.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"success":true,"request_id":"%d"}`, 100+n)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	catalogPath, err := filepath.Abs("../catalog/testdata/catalog.cue")
	require.NoError(t, err)

	cfg := fmt.Sprintf(`api_url: %q
db: %q
catalog: %q
debounce: 10ms
drain_rate: 100
`, srv.URL+"/api", filepath.Join(env.dir, "compose.db"), catalogPath)
	env.configPath = filepath.Join(env.dir, "compose.yaml")
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))
	return env
}

// run executes one command with JSON output and returns the data payload.
func (env *cliEnv) run(t *testing.T, args ...string) (json.RawMessage, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", env.configPath, "--format", "json"}, args...))
	err := cmd.Execute()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp), out.String())
	}
	return resp.Data, err
}

func (env *cliEnv) mustRun(t *testing.T, args ...string) json.RawMessage {
	t.Helper()
	data, err := env.run(t, args...)
	require.NoError(t, err, "%v", args)
	return data
}

func decodeState(t *testing.T, data json.RawMessage) StateView {
	t.Helper()
	var v StateView
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestSelectCommandsPersistAcrossRuns(t *testing.T) {
	env := newCLIEnv(t)

	v := decodeState(t, env.mustRun(t, "select", "add", "11", "-q", "2"))
	require.Len(t, v.State.Selections, 1)
	assert.Equal(t, 2, v.State.Selections[0].Quantity)
	require.Len(t, v.State.Selections[0].Instances, 2)

	v = decodeState(t, env.mustRun(t, "select", "info", "11", "1", "method=lavado", "sieve=#200"))
	info := v.State.Selections[0].Instances[0].AdditionalInfo
	assert.Equal(t, model.Text("lavado"), info["method"])
	assert.Equal(t, model.Text("#200"), info["sieve"])

	// Shrinking keeps the first instance and its answers.
	v = decodeState(t, env.mustRun(t, "select", "quantity", "11", "1"))
	require.Len(t, v.State.Selections[0].Instances, 1)
	assert.Equal(t, model.Text("lavado"), v.State.Selections[0].Instances[0].AdditionalInfo["method"])

	// Clearing a key removes it instead of storing null.
	v = decodeState(t, env.mustRun(t, "select", "info", "11", "1", "sieve="))
	_, present := v.State.Selections[0].Instances[0].AdditionalInfo["sieve"]
	assert.False(t, present)

	v = decodeState(t, env.mustRun(t, "session", "show"))
	require.Len(t, v.State.Selections, 1)
	assert.Equal(t, model.ID("11"), v.State.Selections[0].ID)

	var check CheckView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "session", "check"), &check))
	assert.Equal(t, "ok", check.Invariants)

	v = decodeState(t, env.mustRun(t, "select", "remove", "11"))
	assert.Empty(t, v.State.Selections)
}

func TestSelectAddUnknownService(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "select", "add", "999")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSelectInfoRejectsUndeclaredField(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "select", "add", "C-1")

	_, err := env.run(t, "select", "info", "C-1", "1", "depth=2", "bogus=zzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	v := decodeState(t, env.mustRun(t, "session", "show"))
	require.Len(t, v.State.Selections, 1)
	assert.Empty(t, v.State.Selections[0].Instances[0].AdditionalInfo)
}

func TestSessionProfile(t *testing.T) {
	env := newCLIEnv(t)

	v := decodeState(t, env.mustRun(t, "session", "profile", "--name", "Ana", "--email", "ana@example.com"))
	assert.Equal(t, "Ana", v.State.ClientProfile.Name)
	assert.Equal(t, "ana@example.com", v.State.ClientProfile.Email)

	// Unset flags leave other fields alone.
	v = decodeState(t, env.mustRun(t, "session", "profile", "--project", "Puente"))
	assert.Equal(t, "Ana", v.State.ClientProfile.Name)
	assert.Equal(t, "Puente", v.State.ClientProfile.NameProject)
}

const storedRequest = `{
  "source": "request-42",
  "selections": [
    {"id": "11", "item": {"id": 11, "code": "SR-02", "name": "Granulometría"}, "quantity": 1,
     "instances": [{"id": "a", "additionalInfo": {"method": "seco"}}]},
    {"id": "C-1", "item": {"id": "C-1", "code": "CO-01", "name": "Cilindros"}, "quantity": 1,
     "instances": [{"id": "b", "additionalInfo": {"depth": 3}}]}
  ]
}`

func TestImportSkipsRemovalsAcrossRuns(t *testing.T) {
	env := newCLIEnv(t)
	record := filepath.Join(env.dir, "request-42.json")
	require.NoError(t, os.WriteFile(record, []byte(storedRequest), 0o644))

	var iv ImportView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "import", record, "--replace"), &iv))
	assert.Equal(t, "request-42", iv.Source)
	assert.Equal(t, 2, iv.Added)
	assert.True(t, iv.SourceChanged)

	v := decodeState(t, env.mustRun(t, "select", "remove", "C-1"))
	assert.Contains(t, v.Removed, model.ID("C-1"))
	assert.Equal(t, "request-42", v.Source)

	// A later process still knows C-1 was removed.
	require.NoError(t, json.Unmarshal(env.mustRun(t, "import", record), &iv))
	assert.Equal(t, 0, iv.Added)
	assert.Equal(t, 2, iv.Skipped)
	assert.False(t, iv.SourceChanged)
	require.Len(t, iv.Composition.State.Selections, 1)
	assert.Equal(t, model.ID("11"), iv.Composition.State.Selections[0].ID)

	// A different source forgets the removal.
	require.NoError(t, json.Unmarshal(env.mustRun(t, "import", record, "--source", "request-43"), &iv))
	assert.True(t, iv.SourceChanged)
	assert.Equal(t, 1, iv.Added)
	assert.Len(t, iv.Composition.State.Selections, 2)
}

func TestImportWithoutSource(t *testing.T) {
	env := newCLIEnv(t)
	record := filepath.Join(env.dir, "bare.json")
	require.NoError(t, os.WriteFile(record, []byte(`[{"id": "10", "item": {"id": 10, "name": "Humedad natural"}, "quantity": 1}]`), 0o644))

	_, err := env.run(t, "import", record)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var iv ImportView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "import", record, "--source", "bare"), &iv))
	assert.Equal(t, 1, iv.Added)
}

func TestSessionReset(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "select", "add", "10")

	v := decodeState(t, env.mustRun(t, "session", "reset"))
	assert.Empty(t, v.State.Selections)

	v = decodeState(t, env.mustRun(t, "session", "show"))
	assert.Empty(t, v.State.Selections)
}

func TestSubmitOfflineThenDrain(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "select", "add", "10", "-q", "2")

	var sv SubmitView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "submit", "--offline"), &sv))
	assert.Equal(t, "queued_offline", sv.Outcome)
	assert.True(t, sv.Success)
	assert.False(t, sv.Delivered)
	assert.NotEmpty(t, sv.QueueID)
	assert.Equal(t, int32(0), env.received.Load())

	// The composition was handed off.
	v := decodeState(t, env.mustRun(t, "session", "show"))
	assert.Empty(t, v.State.Selections)

	var list QueueListView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "queue", "list"), &list))
	require.Len(t, list.Entries, 1)
	assert.Equal(t, sv.QueueID, list.Entries[0].ID)
	assert.Equal(t, http.MethodPost, list.Entries[0].Method)

	var drain DrainView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "queue", "drain"), &drain))
	assert.Equal(t, []string{sv.QueueID}, drain.Delivered)
	assert.Equal(t, 0, drain.Remaining)
	assert.Equal(t, int32(1), env.received.Load())

	require.NoError(t, json.Unmarshal(env.mustRun(t, "queue", "list"), &list))
	assert.Empty(t, list.Entries)
}

func TestSubmitOnline(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "session", "profile", "--name", "Ana", "--email", "ana@example.com")
	env.mustRun(t, "select", "add", "10")

	var sv SubmitView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "submit"), &sv))
	assert.Equal(t, "succeeded", sv.Outcome)
	assert.True(t, sv.Delivered)
	assert.Equal(t, model.ID("101"), sv.RequestID)
	assert.Equal(t, int32(1), env.received.Load())

	body, _ := env.lastBody.Load().([]byte)
	assert.Contains(t, string(body), "ana@example.com")
}

func TestCatalogList(t *testing.T) {
	env := newCLIEnv(t)

	var cv CatalogView
	require.NoError(t, json.Unmarshal(env.mustRun(t, "catalog", "list"), &cv))
	require.Len(t, cv.Categories, 2)
	assert.Equal(t, "Ensayos de suelos", cv.Categories[0].Name)
}

func TestMissingConfig(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "session", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
