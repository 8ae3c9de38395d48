package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimoJanra/DriftWatch/internal/models"
	"github.com/MimoJanra/DriftWatch/internal/runner"
	"github.com/MimoJanra/DriftWatch/internal/validation"
)

func sampleRun() runner.RunResult {
	return runner.RunResult{
		RunID: "run-1",
		APIs: []runner.APISummary{
			{Name: "users", Endpoints: 2, Passed: 1, Failed: 1, SuccessRate: 50},
			{Name: "billing", Error: "register api billing: database is locked"},
		},
		Summary: runner.Summary{APIs: 2, SkippedAPIs: 1, Endpoints: 2, Passed: 1, Failed: 1, SuccessRate: 50},
		Results: []validation.Result{
			{
				API: "users", Method: "GET", Path: "/users", ResolvedPath: "/users",
				Passed: true, StatusCode: 200, Latency: models.LatencyFast, LatencyMS: 12, BaselineCreated: true,
				Expectation: &validation.ExpectationCheck{ExpectedStatus: 200, ActualStatus: 200, StatusMatch: true, Passed: true},
			},
			{
				API: "users", Method: "GET", Path: "/users/{{id}}", ResolvedPath: "/users/7",
				StatusCode: 200, ContentType: "text/html", Latency: models.LatencySlow, LatencyMS: 300,
				ErrorMessage: "not json",
				Expectation: &validation.ExpectationCheck{
					ExpectedStatus: 200, ActualStatus: 200, StatusMatch: true,
					NewFields: []string{"email"}, RemovedFields: []string{"name"},
				},
				Baseline: &validation.BaselineCheck{
					Exists: true, StatusMatch: true, ExpectedContentType: "application/json",
					ActualContentType: "text/html", ExpectedLatency: models.LatencyFast, ActualLatency: models.LatencySlow,
				},
			},
		},
	}
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, sampleRun(), false))
	out := buf.String()

	assert.Contains(t, out, "DriftWatch run run-1")
	assert.Contains(t, out, "users  2 endpoints, 1 passed, 1 failed (50.00%)")
	assert.Contains(t, out, "GET /users/7")
	assert.Contains(t, out, "baseline created")
	assert.Contains(t, out, "not json")
	assert.Contains(t, out, "new fields: email")
	assert.Contains(t, out, "removed fields: name")
	assert.Contains(t, out, `baseline content type: expected "application/json", got "text/html"`)
	assert.Contains(t, out, "skipped: register api billing")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "1 APIs skipped")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sampleRun(), false))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	results := decoded["results"].([]any)
	assert.Len(t, results, 2)
	second := results[1].(map[string]any)
	assert.Equal(t, []any{"email"}, second["expectation"].(map[string]any)["new_fields"])
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", sampleRun(), false))
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")
	path, err := Save(dir, sampleRun())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "driftwatch-run-1.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded runner.RunResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 2, decoded.Summary.Endpoints)
}
