// Package validation decides whether a probe passed.
//
// A probe is checked against the endpoint's declared expectation and, once
// the expectation holds and a baseline is established, against the pinned
// baseline probe. The baseline verdict wins when it was evaluated.
package validation

import (
	"encoding/json"
	"sort"

	"github.com/MimoJanra/DriftWatch/internal/checker"
	"github.com/MimoJanra/DriftWatch/internal/models"
)

// Expectation is the declared contract of an endpoint.
type Expectation struct {
	Status int
	Fields []string
}

type ExpectationCheck struct {
	ExpectedStatus int      `json:"expected_status" example:"200"`
	ActualStatus   int      `json:"actual_status" example:"200"`
	StatusMatch    bool     `json:"status_match"`
	ExpectedFields []string `json:"expected_fields"`
	ActualFields   []string `json:"actual_fields"`
	NewFields      []string `json:"new_fields"`
	RemovedFields  []string `json:"removed_fields"`
	Passed         bool     `json:"passed"`
}

// BaselineCheck compares a probe to the pinned baseline probe. The latency
// comparison is informational.
type BaselineCheck struct {
	Exists              bool                 `json:"exists"`
	BaselineID          int                  `json:"baseline_id,omitempty"`
	ProbeID             int                  `json:"probe_id,omitempty"`
	ExpectedStatus      int                  `json:"expected_status,omitempty"`
	StatusMatch         bool                 `json:"status_match"`
	ExpectedContentType string               `json:"expected_content_type,omitempty"`
	ActualContentType   string               `json:"actual_content_type,omitempty"`
	ContentTypeMatch    bool                 `json:"content_type_match"`
	ExpectedLatency     models.LatencyBucket `json:"expected_latency,omitempty"`
	ActualLatency       models.LatencyBucket `json:"actual_latency,omitempty"`
	LatencyMatch        bool                 `json:"latency_match"`
	Passed              bool                 `json:"passed"`
}

// Result is the verdict for one endpoint in a run. Validate fills the check
// fields; the runner fills identity and persistence fields.
type Result struct {
	API          string `json:"api" example:"users"`
	Method       string `json:"method" example:"GET"`
	Path         string `json:"path" example:"/users/{{userId}}"`
	ResolvedPath string `json:"resolved_path" example:"/users/42"`
	URL          string `json:"url,omitempty"`
	APIID        int    `json:"api_id,omitempty"`
	EndpointID   int    `json:"endpoint_id,omitempty"`
	ProbeID      int    `json:"probe_id,omitempty"`

	Passed            bool   `json:"passed"`
	IsConnectionError bool   `json:"is_connection_error,omitempty"`
	IsTimeout         bool   `json:"is_timeout,omitempty"`
	InternalError     bool   `json:"internal_error,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`

	StatusCode  int                  `json:"status_code"`
	ContentType string               `json:"content_type,omitempty"`
	Latency     models.LatencyBucket `json:"latency"`
	LatencyMS   int64                `json:"latency_ms"`

	Expectation     *ExpectationCheck `json:"expectation,omitempty"`
	Baseline        *BaselineCheck    `json:"baseline,omitempty"`
	BaselineCreated bool              `json:"baseline_created,omitempty"`

	// Data is the decoded response body, used for stashing.
	Data any `json:"-"`
}

// Validate computes the verdict for out. baseline may be nil.
func Validate(out checker.Outcome, exp Expectation, baseline *models.Baseline) Result {
	res := Result{
		StatusCode:   out.StatusCode,
		ContentType:  out.ContentType,
		Latency:      out.Latency,
		LatencyMS:    out.LatencyMS,
		URL:          out.URL,
		ErrorMessage: out.Error,
		Data:         out.Data,
	}

	if out.Kind == checker.KindConnectionError {
		res.IsConnectionError = true
		res.Passed = false
		return res
	}
	res.IsTimeout = out.Kind == checker.KindTimeout

	ec := CheckExpectation(out, exp)
	res.Expectation = &ec
	res.Passed = ec.Passed

	if ec.Passed {
		bc := CheckBaseline(out, baseline)
		res.Baseline = &bc
		if bc.Exists {
			res.Passed = bc.Passed
		}
	}

	if !res.Passed && res.ErrorMessage == "" {
		res.ErrorMessage = MessageFromBody(out.Data)
	}
	return res
}

func CheckExpectation(out checker.Outcome, exp Expectation) ExpectationCheck {
	expected := normalize(exp.Fields)
	actual := normalize(out.Fields)

	ec := ExpectationCheck{
		ExpectedStatus: exp.Status,
		ActualStatus:   out.StatusCode,
		StatusMatch:    out.StatusCode == exp.Status,
		ExpectedFields: expected,
		ActualFields:   actual,
		NewFields:      difference(actual, expected),
		RemovedFields:  difference(expected, actual),
	}
	ec.Passed = ec.StatusMatch && len(ec.NewFields) == 0 && len(ec.RemovedFields) == 0
	return ec
}

// CheckBaseline compares out against the baseline's pinned probe. A nil
// baseline, or one without its probe loaded, yields Exists=false.
func CheckBaseline(out checker.Outcome, baseline *models.Baseline) BaselineCheck {
	if baseline == nil || baseline.Probe == nil {
		return BaselineCheck{}
	}
	ref := baseline.Probe
	bc := BaselineCheck{
		Exists:              true,
		BaselineID:          baseline.ID,
		ProbeID:             baseline.ProbeID,
		ExpectedStatus:      ref.StatusCode,
		StatusMatch:         out.StatusCode == ref.StatusCode,
		ExpectedContentType: ref.ContentType,
		ActualContentType:   out.ContentType,
		ContentTypeMatch:    out.ContentType == ref.ContentType,
		ExpectedLatency:     ref.Latency,
		ActualLatency:       out.Latency,
		LatencyMatch:        out.Latency == ref.Latency,
	}
	bc.Passed = bc.StatusMatch && bc.ContentTypeMatch
	return bc
}

// MessageFromBody extracts a "message" or "error" field from an object body.
// Strings are returned as-is and other values are JSON encoded.
func MessageFromBody(data any) string {
	obj, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "error"} {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		return string(b)
	}
	return ""
}

func normalize(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// difference returns the elements of a not in b, keeping a's order.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	out := make([]string, 0)
	for _, s := range a {
		if _, ok := in[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
