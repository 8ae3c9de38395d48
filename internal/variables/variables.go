// Package variables threads values between the probes of a single run.
//
// A Table is created per run and passed by reference through the runner.
// Resolve expands {{name}} placeholders from it and Stash fills it from
// response bodies of passed probes.
package variables

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/MimoJanra/DriftWatch/internal/checker"
	"github.com/MimoJanra/DriftWatch/internal/config"
)

var placeholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Table is a run-scoped variable store. It is safe for concurrent use so
// that observers can snapshot it while a run is in progress.
type Table struct {
	mu   sync.RWMutex
	vars map[string]any
}

func NewTable() *Table {
	return &Table{vars: make(map[string]any)}
}

func (t *Table) Get(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.vars[name]
	return v, ok
}

func (t *Table) Set(name string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vars[name] = value
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vars)
}

// Names returns the stored variable names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.vars))
	for k := range t.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a shallow copy of the table contents.
func (t *Table) Snapshot() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]any, len(t.vars))
	for k, v := range t.vars {
		out[k] = v
	}
	return out
}

// Expand replaces every {{name}} in s with the string form of the stored
// value. Unknown names are left as they are.
func (t *Table) Expand(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		v, ok := t.Get(name)
		if !ok {
			return m
		}
		return checker.FormatValue(v)
	})
}

// Resolve returns a copy of ep with placeholders in the path and in every
// string nested in the query and body fixtures expanded. Neither ep nor the
// table is modified.
func Resolve(ep config.EndpointConfig, t *Table) config.EndpointConfig {
	out := ep
	out.Path = t.Expand(ep.Path)
	out.ExpectedFields = append([]string(nil), ep.ExpectedFields...)

	if ep.Stash != nil {
		out.Stash = make(map[string]string, len(ep.Stash))
		for k, v := range ep.Stash {
			out.Stash[k] = v
		}
	}

	if ep.Params != nil {
		params := &config.Params{Body: expandValue(ep.Params.Body, t)}
		if ep.Params.Query != nil {
			params.Query = make(map[string]any, len(ep.Params.Query))
			for k, v := range ep.Params.Query {
				params.Query[k] = expandValue(v, t)
			}
		}
		out.Params = params
	}
	return out
}

func expandValue(v any, t *Table) any {
	switch val := v.(type) {
	case string:
		return t.Expand(val)
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = expandValue(item, t)
		}
		return m
	case map[any]any:
		m := make(map[any]any, len(val))
		for k, item := range val {
			m[k] = expandValue(item, t)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = expandValue(item, t)
		}
		return s
	default:
		return v
	}
}

// Stash copies top-level fields of an object response into the table. mapping
// maps variable names to field names. Absent and null fields are skipped so
// earlier values survive. It returns the names that were set.
func Stash(t *Table, data any, mapping map[string]string) []string {
	obj, ok := data.(map[string]any)
	if !ok || len(mapping) == 0 {
		return nil
	}

	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	set := make([]string, 0, len(names))
	for _, name := range names {
		v, ok := obj[mapping[name]]
		if !ok || v == nil {
			continue
		}
		t.Set(name, v)
		set = append(set, name)
	}
	return set
}
