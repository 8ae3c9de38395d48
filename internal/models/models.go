package models

import "time"

type LatencyBucket string

const (
	LatencyFast    LatencyBucket = "fast"
	LatencySlow    LatencyBucket = "slow"
	LatencyTimeout LatencyBucket = "timeout"
	LatencyError   LatencyBucket = "error"
)

type API struct {
	ID      int    `json:"id" example:"1"`
	Name    string `json:"name" example:"users"`
	BaseURL string `json:"base_url" example:"https://api.example.com"`
}

type Endpoint struct {
	ID             int      `json:"id" example:"1"`
	APIID          int      `json:"api_id" example:"1"`
	Path           string   `json:"path" example:"/users/{{userId}}"`
	Method         string   `json:"method" example:"GET"`
	ExpectedStatus int      `json:"expected_status" example:"200"`
	ExpectedFields []string `json:"expected_fields"`
	ParamKeys      []string `json:"param_keys"`
}

// Probe is one executed check. Rows are append-only.
type Probe struct {
	ID           int           `json:"id" example:"1"`
	APIID        int           `json:"api_id" example:"1"`
	EndpointID   int           `json:"endpoint_id" example:"1"`
	RunID        string        `json:"run_id,omitempty" example:"8d0f5b4e-3c1a-4a55-9d7a-0e6f2b1c9a10"`
	Passed       bool          `json:"passed" example:"true"`
	StatusCode   int           `json:"status_code" example:"200"`
	ContentType  string        `json:"content_type,omitempty" example:"application/json"`
	Latency      LatencyBucket `json:"latency" example:"fast"`
	LatencyMS    int64         `json:"latency_ms" example:"120"`
	ErrorMessage string        `json:"error_message,omitempty" example:""`
	CreatedAt    time.Time     `json:"created_at" example:"2024-01-01T12:00:00Z"`
}

// Baseline pins the probe that future probes of the same endpoint are compared against.
type Baseline struct {
	ID         int       `json:"id" example:"1"`
	APIID      int       `json:"api_id" example:"1"`
	EndpointID int       `json:"endpoint_id" example:"1"`
	ProbeID    int       `json:"probe_id" example:"42"`
	CreatedAt  time.Time `json:"created_at" example:"2024-01-01T12:00:00Z"`
	Probe      *Probe    `json:"probe,omitempty"`
}
