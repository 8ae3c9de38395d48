package config

import (
	"sort"
	"time"
)

const (
	OutputConsole = "console"
	OutputJSON    = "json"
)

// Settings controls a run. Loaded from the settings document.
type Settings struct {
	// Timeout is the per-probe deadline in seconds.
	Timeout                  int    `yaml:"timeout" json:"timeout" validate:"gte=1"`
	RequiredSuccessfulProbes int    `yaml:"required_successful_probes" json:"required_successful_probes" validate:"gte=1"`
	OutputFormat             string `yaml:"output_format" json:"output_format" validate:"oneof=console json"`
	SaveToFile               bool   `yaml:"save_to_file" json:"save_to_file"`
	Verbose                  bool   `yaml:"verbose" json:"verbose"`

	Database          string               `yaml:"database" json:"database" validate:"required"`
	ResultsDir        string               `yaml:"results_dir" json:"results_dir"`
	RequestsPerMinute int                  `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
	WatchInterval     time.Duration        `yaml:"watch_interval" json:"watch_interval"`
	ListenAddr        string               `yaml:"listen_addr" json:"listen_addr"`
	Notifications     []NotificationConfig `yaml:"notifications" json:"notifications" validate:"dive"`
}

// ProbeTimeout returns Timeout as a duration.
func (s Settings) ProbeTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

type NotificationConfig struct {
	Type            string `yaml:"type" json:"type" validate:"oneof=telegram slack"`
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Token           string `yaml:"token" json:"-" validate:"required_if=Type telegram"`
	ChatID          string `yaml:"chat_id" json:"chat_id,omitempty" validate:"required_if=Type telegram"`
	WebhookURL      string `yaml:"webhook_url" json:"-" validate:"required_if=Type slack"`
	NotifyOnSuccess bool   `yaml:"notify_on_success" json:"notify_on_success"`
}

// Resources is the ordered list of monitored APIs.
type Resources struct {
	APIs []APIConfig `yaml:"apis" json:"apis" validate:"dive"`
}

type APIConfig struct {
	Name      string           `yaml:"name" json:"name" validate:"required"`
	BaseURL   string           `yaml:"base_url" json:"base_url" validate:"required,url"`
	Disabled  bool             `yaml:"disabled" json:"disabled"`
	Endpoints []EndpointConfig `yaml:"endpoints" json:"endpoints" validate:"dive"`
}

type EndpointConfig struct {
	Path           string   `yaml:"path" json:"path" validate:"required"`
	Method         string   `yaml:"method" json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	ExpectedStatus int      `yaml:"expected_status" json:"expected_status" validate:"gte=100,lte=599"`
	ExpectedFields []string `yaml:"expected_fields" json:"expected_fields"`
	// Params is the request fixture: query values and a JSON body.
	Params *Params `yaml:"params" json:"params,omitempty"`
	// Stash maps a run variable name to a top-level response field.
	Stash map[string]string `yaml:"stash" json:"stash,omitempty"`
}

type Params struct {
	Query map[string]any `yaml:"query" json:"query,omitempty"`
	Body  any            `yaml:"body" json:"body,omitempty"`
}

// BodyKeys returns the sorted top-level keys of the body fixture, or nil
// when the body is absent or not an object.
func (e EndpointConfig) BodyKeys() []string {
	if e.Params == nil {
		return nil
	}
	obj, ok := e.Params.Body.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key identifies an endpoint inside its API.
func (e EndpointConfig) Key() string {
	return e.Method + " " + e.Path
}
