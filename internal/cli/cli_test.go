package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/engine"
)

var envKeys = []string{
	"LOG_LEVEL", "LOG_FORMAT", "GENFLOW_WORKERS", "DB_URL", "SQLITE_PATH",
	"REDIS_URL", "GENFLOW_EXECUTOR_PREFIX", "RABBITMQ_URL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "PUSHGATEWAY_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd("test", &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// doubler — исполнитель, возвращающий {y: x*2}.
func doubler(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&params)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		x, _ := params["x"].(float64)
		_ = json.NewEncoder(w).Encode(map[string]any{"y": x * 2})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func flowDoc(executorURL string) string {
	return fmt.Sprintf(`
name: demo
steps:
  - name: seed
    type: set_variable
    variable_name: n
    params:
      value: 21
  - name: read
    type: get_variable
    variable_name: n
  - name: double
    type: function_call
    function: %s
    params:
      x: "{{ read.value }}"
    outputs: [y]
`, executorURL)
}

const parentDoc = `
name: parent
steps:
  - name: child
    type: sub_flow
    sub_flow_file: child.yaml
    params:
      input: 1
    outputs: [result]
`

const nestedDoc = `
steps:
  - name: read
    type: get_variable
    variable_name: input
  - name: store
    type: set_variable
    variable_name: result
    params:
      value: "{{ read.value }}"
`

func TestCompose(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	parent := writeFile(t, dir, "main.yaml", parentDoc)
	writeFile(t, dir, "child.yaml", nestedDoc)

	t.Run("stdout", func(t *testing.T) {
		stdout, _, err := execute(t, "compose", parent)
		require.NoError(t, err)

		flow, err := engine.ParseFlow([]byte(stdout))
		require.NoError(t, err)
		assert.Equal(t, "parent", flow.Name)
		for _, step := range flow.Steps {
			assert.NotEqual(t, domain.StepTypeSubFlow, step.Type, step.Name)
		}
		assert.Contains(t, stdout, "child__read")
	})

	t.Run("output file", func(t *testing.T) {
		out := filepath.Join(dir, "flat.yaml")
		_, stderr, err := execute(t, "compose", parent, "-o", out)
		require.NoError(t, err)
		assert.Contains(t, stderr, "Composed flow written")

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), "child__store")
	})

	t.Run("missing sub-flow", func(t *testing.T) {
		broken := writeFile(t, t.TempDir(), "main.yaml", parentDoc)
		_, _, err := execute(t, "compose", broken)
		assert.ErrorIs(t, err, engine.ErrSubFlowNotFound)
	})
}

func TestGraph(t *testing.T) {
	clearEnv(t)
	file := writeFile(t, t.TempDir(), "flow.yaml", flowDoc("http://localhost/double"))

	stdout, _, err := execute(t, "--json", "graph", file)
	require.NoError(t, err)

	var nodes []struct {
		Step      string   `json:"step"`
		Type      string   `json:"type"`
		DependsOn []string `json:"depends_on"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &nodes))
	require.Len(t, nodes, 3)

	assert.Equal(t, "seed", nodes[0].Step)
	assert.Equal(t, "read", nodes[1].Step)
	assert.Equal(t, []string{"seed"}, nodes[1].DependsOn)
	assert.Equal(t, "double", nodes[2].Step)
	assert.Equal(t, []string{"read"}, nodes[2].DependsOn)

	t.Run("table", func(t *testing.T) {
		stdout, _, err := execute(t, "graph", file)
		require.NoError(t, err)
		assert.Contains(t, stdout, "DEPENDS ON")
		assert.Contains(t, stdout, "function_call")
	})
}

func TestRun(t *testing.T) {
	clearEnv(t)
	srv := doubler(t)
	file := writeFile(t, t.TempDir(), "flow.yaml", flowDoc(srv.URL))

	stdout, _, err := execute(t, "--json", "run", file, "--workers", "2")
	require.NoError(t, err)

	var report domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "demo", report.Flow)
	assert.Equal(t, domain.RunStatusCompleted, report.Status)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 42.0, report.Outputs["double"]["y"])
}

func TestRun_FailedStep(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	file := writeFile(t, t.TempDir(), "flow.yaml", flowDoc(srv.URL))

	stdout, stderr, err := execute(t, "run", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 step(s) failed")
	assert.Contains(t, stdout, "EXECUTION_FAILED")
	assert.Contains(t, stderr, "1 failed")
}

func TestRun_Aborted(t *testing.T) {
	clearEnv(t)
	file := writeFile(t, t.TempDir(), "main.yaml", parentDoc)

	_, stderr, err := execute(t, "run", file)
	assert.ErrorIs(t, err, engine.ErrSubFlowNotFound)
	assert.Contains(t, stderr, "aborted")
}

func TestRun_SaveAndReport(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "reports.db"))
	srv := doubler(t)
	file := writeFile(t, dir, "flow.yaml", flowDoc(srv.URL))

	_, stderr, err := execute(t, "run", file, "--save")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Report saved")

	stdout, _, err := execute(t, "--json", "report", "list", "--flow", "demo")
	require.NoError(t, err)

	var reports []domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, domain.RunStatusCompleted, reports[0].Status)

	stdout, _, err = execute(t, "report", "show", reports[0].ID.String())
	require.NoError(t, err)
	assert.Contains(t, stdout, "double")
	assert.Contains(t, stdout, "EXECUTED")

	_, _, err = execute(t, "report", "show", "not-a-uuid")
	assert.Error(t, err)
}

func TestReport_NoStore(t *testing.T) {
	clearEnv(t)
	_, _, err := execute(t, "report", "list")
	assert.ErrorIs(t, err, ErrNoReportStore)
}

func TestExecutorCommands(t *testing.T) {
	clearEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	_, stderr, err := execute(t, "executor", "set", "double", "http://localhost:9000/double")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Executor registered")

	stdout, _, err := execute(t, "--json", "executor", "list")
	require.NoError(t, err)

	var executors map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &executors))
	assert.Equal(t, map[string]string{"double": "http://localhost:9000/double"}, executors)

	_, _, err = execute(t, "executor", "rm", "double")
	require.NoError(t, err)

	stdout, _, err = execute(t, "--json", "executor", "list")
	require.NoError(t, err)
	assert.JSONEq(t, "{}", stdout)
}

func TestRun_RegisteredExecutor(t *testing.T) {
	clearEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	srv := doubler(t)

	_, _, err := execute(t, "executor", "set", "double", srv.URL)
	require.NoError(t, err)

	file := writeFile(t, t.TempDir(), "flow.yaml", flowDoc("double"))
	stdout, _, err := execute(t, "--json", "run", file)
	require.NoError(t, err)

	var report domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 42.0, report.Outputs["double"]["y"])
}

func TestEvents_RequiresBroker(t *testing.T) {
	clearEnv(t)
	_, _, err := execute(t, "events")
	assert.ErrorContains(t, err, "RABBITMQ_URL")
}

func TestLoadToolSchemas(t *testing.T) {
	dir := t.TempDir()

	schemas, err := LoadToolSchemas("")
	require.NoError(t, err)
	assert.Nil(t, schemas)

	file := writeFile(t, dir, "tools.yaml", `
classify:
  type: object
  properties:
    label:
      type: string
`)
	schemas, err = LoadToolSchemas(file)
	require.NoError(t, err)
	assert.Equal(t, "object", schemas["classify"]["type"])

	_, err = LoadToolSchemas(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer

	out := NewOutput(&stdout, &stderr, false)
	require.NoError(t, out.Print([]string{"NAME", "STATUS"}, [][]string{{"seed", "EXECUTED"}}, nil))
	assert.Contains(t, stdout.String(), "NAME")
	assert.Contains(t, stdout.String(), "seed")

	out.Error("bad")
	assert.Contains(t, stderr.String(), "Error: bad")

	stdout.Reset()
	jsonOut := NewOutput(&stdout, &stderr, true)
	require.NoError(t, jsonOut.Print([]string{"NAME"}, nil, map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n": 1}`, stdout.String())
}
