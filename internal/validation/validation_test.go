package validation

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimoJanra/DriftWatch/internal/checker"
	"github.com/MimoJanra/DriftWatch/internal/models"
)

func response(status int, contentType string, fields ...string) checker.Outcome {
	return checker.Outcome{
		Kind:        checker.KindResponse,
		StatusCode:  status,
		ContentType: contentType,
		Latency:     models.LatencyFast,
		Fields:      fields,
	}
}

func baselineFor(status int, contentType string, latency models.LatencyBucket) *models.Baseline {
	return &models.Baseline{
		ID: 1, ProbeID: 9,
		Probe: &models.Probe{ID: 9, StatusCode: status, ContentType: contentType, Latency: latency, Passed: true},
	}
}

func TestValidate_NewField(t *testing.T) {
	res := Validate(response(200, "application/json", "id", "name", "email"), Expectation{Status: 200, Fields: []string{"id", "name"}}, nil)

	require.NotNil(t, res.Expectation)
	assert.False(t, res.Passed)
	assert.False(t, res.Expectation.Passed)
	assert.True(t, res.Expectation.StatusMatch)
	assert.Equal(t, []string{"email"}, res.Expectation.NewFields)
	assert.Empty(t, res.Expectation.RemovedFields)
	assert.Nil(t, res.Baseline)
}

func TestValidate_RemovedField(t *testing.T) {
	res := Validate(response(200, "application/json", "id"), Expectation{Status: 200, Fields: []string{"id", "name"}}, nil)
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"name"}, res.Expectation.RemovedFields)
	assert.Empty(t, res.Expectation.NewFields)
}

func TestValidate_StatusMismatchAlwaysFails(t *testing.T) {
	for _, status := range []int{201, 404, 500} {
		res := Validate(response(status, "application/json"), Expectation{Status: 200}, baselineFor(status, "application/json", models.LatencyFast))
		assert.False(t, res.Expectation.Passed)
		assert.False(t, res.Passed, "status %d", status)
		assert.Nil(t, res.Baseline, "baseline is not consulted when the expectation fails")
	}
}

func TestValidate_ConnectionErrorShortCircuits(t *testing.T) {
	out := checker.Outcome{Kind: checker.KindConnectionError, Latency: models.LatencyError, Error: "service unavailable"}
	res := Validate(out, Expectation{Status: 200}, baselineFor(200, "application/json", models.LatencyFast))

	assert.True(t, res.IsConnectionError)
	assert.False(t, res.Passed)
	assert.Nil(t, res.Expectation)
	assert.Nil(t, res.Baseline)
	assert.Equal(t, "service unavailable", res.ErrorMessage)
}

func TestValidate_TimeoutRunsExpectation(t *testing.T) {
	out := checker.Outcome{Kind: checker.KindTimeout, Latency: models.LatencyTimeout, Error: "request timed out after 1s"}
	res := Validate(out, Expectation{Status: 200}, nil)

	assert.True(t, res.IsTimeout)
	assert.False(t, res.Passed)
	require.NotNil(t, res.Expectation)
	assert.Zero(t, res.Expectation.ActualStatus)
	assert.Equal(t, "request timed out after 1s", res.ErrorMessage)
}

func TestValidate_BaselineContentTypeOverrides(t *testing.T) {
	res := Validate(response(200, "text/html"), Expectation{Status: 200}, baselineFor(200, "application/json", models.LatencyFast))

	assert.True(t, res.Expectation.Passed)
	require.NotNil(t, res.Baseline)
	assert.True(t, res.Baseline.Exists)
	assert.True(t, res.Baseline.StatusMatch)
	assert.False(t, res.Baseline.ContentTypeMatch)
	assert.False(t, res.Baseline.Passed)
	assert.False(t, res.Passed)
}

func TestValidate_LatencyIsInformational(t *testing.T) {
	out := response(200, "application/json")
	out.Latency = models.LatencySlow
	res := Validate(out, Expectation{Status: 200}, baselineFor(200, "application/json", models.LatencyFast))

	assert.False(t, res.Baseline.LatencyMatch)
	assert.True(t, res.Baseline.Passed)
	assert.True(t, res.Passed)
}

func TestValidate_NoBaselineUsesExpectation(t *testing.T) {
	res := Validate(response(200, "application/json", "id"), Expectation{Status: 200, Fields: []string{"id"}}, nil)
	assert.True(t, res.Passed)
	require.NotNil(t, res.Baseline)
	assert.False(t, res.Baseline.Exists)
}

func TestValidate_FinalFollowsBaselineWhenEvaluated(t *testing.T) {
	cases := []struct {
		name     string
		out      checker.Outcome
		baseline *models.Baseline
	}{
		{"match", response(200, "application/json"), baselineFor(200, "application/json", models.LatencyFast)},
		{"content type", response(200, "text/plain"), baselineFor(200, "application/json", models.LatencyFast)},
		{"status", response(200, "application/json"), baselineFor(201, "application/json", models.LatencyFast)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.out, Expectation{Status: 200}, tc.baseline)
			require.True(t, res.Expectation.Passed)
			assert.Equal(t, res.Baseline.Passed, res.Passed)
		})
	}
}

func TestValidate_DiffsAreSetDifferences(t *testing.T) {
	res := Validate(response(200, "application/json", "a", "b", "c"), Expectation{Status: 200, Fields: []string{"b", "c", "d", "d"}}, nil)
	assert.Equal(t, []string{"a"}, res.Expectation.NewFields)
	assert.Equal(t, []string{"d"}, res.Expectation.RemovedFields)
	assert.Equal(t, []string{"b", "c", "d"}, res.Expectation.ExpectedFields)
}

func TestValidate_ErrorMessageFromBody(t *testing.T) {
	out := response(http.StatusBadRequest, "application/json", "message")
	out.Data = map[string]any{"message": "bad input"}
	res := Validate(out, Expectation{Status: 200}, nil)
	assert.Equal(t, "bad input", res.ErrorMessage)

	out.Data = map[string]any{"error": map[string]any{"code": 7}}
	res = Validate(out, Expectation{Status: 200}, nil)
	assert.Equal(t, `{"code":7}`, res.ErrorMessage)

	passing := response(200, "application/json", "message")
	passing.Data = map[string]any{"message": "ok"}
	res = Validate(passing, Expectation{Status: 200, Fields: []string{"message"}}, nil)
	assert.True(t, res.Passed)
	assert.Empty(t, res.ErrorMessage)
}
