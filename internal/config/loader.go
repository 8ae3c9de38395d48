package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	EnvDatabase   = "DRIFTWATCH_DATABASE"
	EnvTimeout    = "DRIFTWATCH_TIMEOUT"
	EnvListenAddr = "DRIFTWATCH_LISTEN_ADDR"
)

var validate = validator.New()

// DefaultSettings returns the settings used when no settings file exists.
func DefaultSettings() Settings {
	return Settings{
		Timeout:                  10,
		RequiredSuccessfulProbes: 3,
		OutputFormat:             OutputConsole,
		Database:                 "driftwatch.db",
		ResultsDir:               "results",
		ListenAddr:               ":8080",
	}
}

// Load reads the env file (if any), the settings file and the resources file.
// A missing settings file falls back to DefaultSettings; a missing resources
// file is an error.
func Load(settingsPath, resourcesPath, envFile string) (*Settings, *Resources, error) {
	if err := LoadEnv(envFile); err != nil {
		return nil, nil, err
	}

	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, nil, err
	}

	resources, err := LoadResources(resourcesPath)
	if err != nil {
		return nil, nil, err
	}
	return settings, resources, nil
}

// LoadEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s := DefaultSettings()
			if err := applyEnv(&s); err != nil {
				return nil, err
			}
			return &s, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes a settings document over the defaults, applies
// environment overrides and validates the result.
func ParseSettings(data []byte) (*Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := applyEnv(&s); err != nil {
		return nil, err
	}
	s.OutputFormat = strings.ToLower(s.OutputFormat)
	if err := validate.Struct(s); err != nil {
		return nil, describe("settings", err)
	}
	return &s, nil
}

func LoadResources(path string) (*Resources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resources %s: %w", path, err)
	}
	return ParseResources(data)
}

// ParseResources decodes and validates a resources document. Methods are
// upper-cased before validation.
func ParseResources(data []byte) (*Resources, error) {
	var r Resources
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse resources: %w", err)
	}

	for i := range r.APIs {
		for j := range r.APIs[i].Endpoints {
			ep := &r.APIs[i].Endpoints[j]
			ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
		}
	}

	if err := validate.Struct(r); err != nil {
		return nil, describe("resources", err)
	}
	if err := checkUnique(r); err != nil {
		return nil, err
	}
	return &r, nil
}

func checkUnique(r Resources) error {
	names := make(map[string]bool, len(r.APIs))
	for _, api := range r.APIs {
		if names[api.Name] {
			return fmt.Errorf("%w: duplicate api name %q", ErrInvalid, api.Name)
		}
		names[api.Name] = true

		keys := make(map[string]bool, len(api.Endpoints))
		for _, ep := range api.Endpoints {
			if keys[ep.Key()] {
				return fmt.Errorf("%w: api %q declares %s twice", ErrInvalid, api.Name, ep.Key())
			}
			keys[ep.Key()] = true
		}
	}
	return nil
}

func applyEnv(s *Settings) error {
	if v := os.Getenv(EnvDatabase); v != "" {
		s.Database = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		s.ListenAddr = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer number of seconds: %v", ErrInvalid, EnvTimeout, err)
		}
		s.Timeout = n
	}
	return nil
}

func describe(doc string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, doc, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalid, doc, strings.Join(msgs, "; "))
}
