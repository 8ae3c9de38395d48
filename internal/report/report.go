// Package report renders run results for people (console) and machines
// (JSON), and exports them to the results directory.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MimoJanra/DriftWatch/internal/config"
	"github.com/MimoJanra/DriftWatch/internal/runner"
	"github.com/MimoJanra/DriftWatch/internal/validation"
)

var (
	colorOK    = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorError = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#5C7A84")
)

var styles = struct {
	Title   lipgloss.Style
	API     lipgloss.Style
	Muted   lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Summary lipgloss.Style
}{
	Title: lipgloss.NewStyle().Bold(true).Foreground(colorOK),
	API:   lipgloss.NewStyle().Bold(true),
	Muted: lipgloss.NewStyle().Foreground(colorMuted),
	Pass:  lipgloss.NewStyle().Foreground(colorOK),
	Fail:  lipgloss.NewStyle().Foreground(colorError),
	Warn:  lipgloss.NewStyle().Foreground(colorWarn),
	Summary: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1),
}

const (
	iconPass = "✓"
	iconFail = "✗"
)

// Write renders run in the given output format.
func Write(w io.Writer, format string, run runner.RunResult, verbose bool) error {
	switch strings.ToLower(format) {
	case config.OutputJSON:
		return WriteJSON(w, run)
	case "", config.OutputConsole:
		return WriteConsole(w, run, verbose)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func WriteJSON(w io.Writer, run runner.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// WriteConsole prints a per-API listing followed by a summary box. Verbose
// output adds check details for passing endpoints too.
func WriteConsole(w io.Writer, run runner.RunResult, verbose bool) error {
	var b strings.Builder

	b.WriteString(styles.Title.Render("DriftWatch run " + run.RunID))
	b.WriteString("\n")

	byAPI := make(map[string][]validation.Result)
	for _, res := range run.Results {
		byAPI[res.API] = append(byAPI[res.API], res)
	}

	for _, api := range run.APIs {
		b.WriteString("\n")
		header := fmt.Sprintf("%s  %d endpoints, %d passed, %d failed (%.2f%%)",
			api.Name, api.Endpoints, api.Passed, api.Failed, api.SuccessRate)
		b.WriteString(styles.API.Render(header))
		b.WriteString("\n")
		if api.Error != "" {
			b.WriteString("  " + styles.Fail.Render("skipped: "+api.Error) + "\n")
			continue
		}
		for _, res := range byAPI[api.Name] {
			writeResult(&b, res, verbose)
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.Summary.Render(summaryText(run)))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeResult(b *strings.Builder, res validation.Result, verbose bool) {
	icon := styles.Pass.Render(iconPass)
	if !res.Passed {
		icon = styles.Fail.Render(iconFail)
	}

	line := fmt.Sprintf("  %s %s %s", icon, res.Method, res.ResolvedPath)
	switch {
	case res.InternalError:
		line += "  " + styles.Fail.Render("internal error")
	case res.IsConnectionError:
		line += "  " + styles.Fail.Render("connection error")
	case res.IsTimeout:
		line += "  " + styles.Warn.Render("timeout")
	default:
		line += "  " + styles.Muted.Render(fmt.Sprintf("%d %s %dms", res.StatusCode, res.Latency, res.LatencyMS))
	}
	if res.BaselineCreated {
		line += "  " + styles.Pass.Render("baseline created")
	}
	b.WriteString(line + "\n")

	if res.ErrorMessage != "" && !res.Passed {
		b.WriteString("      " + styles.Fail.Render(res.ErrorMessage) + "\n")
	}
	if res.Passed && !verbose {
		return
	}

	for _, d := range details(res) {
		b.WriteString("      " + styles.Muted.Render(d) + "\n")
	}
}

func details(res validation.Result) []string {
	var out []string
	if ec := res.Expectation; ec != nil {
		if !ec.StatusMatch {
			out = append(out, fmt.Sprintf("status: expected %d, got %d", ec.ExpectedStatus, ec.ActualStatus))
		}
		if len(ec.NewFields) > 0 {
			out = append(out, "new fields: "+strings.Join(ec.NewFields, ", "))
		}
		if len(ec.RemovedFields) > 0 {
			out = append(out, "removed fields: "+strings.Join(ec.RemovedFields, ", "))
		}
	}
	if bc := res.Baseline; bc != nil && bc.Exists {
		if !bc.StatusMatch {
			out = append(out, fmt.Sprintf("baseline status: expected %d, got %d", bc.ExpectedStatus, res.StatusCode))
		}
		if !bc.ContentTypeMatch {
			out = append(out, fmt.Sprintf("baseline content type: expected %q, got %q", bc.ExpectedContentType, bc.ActualContentType))
		}
		if !bc.LatencyMatch {
			out = append(out, fmt.Sprintf("baseline latency: %s, now %s", bc.ExpectedLatency, bc.ActualLatency))
		}
	}
	return out
}

func summaryText(run runner.RunResult) string {
	s := run.Summary
	status := styles.Pass.Render("PASSED")
	if !run.Passed() {
		status = styles.Fail.Render("FAILED")
	}
	lines := []string{
		fmt.Sprintf("%s  %d APIs, %d endpoints", status, s.APIs, s.Endpoints),
		fmt.Sprintf("passed %d, failed %d, success rate %.2f%%", s.Passed, s.Failed, s.SuccessRate),
	}
	if s.SkippedAPIs > 0 {
		lines = append(lines, styles.Warn.Render(fmt.Sprintf("%d APIs skipped", s.SkippedAPIs)))
	}
	return strings.Join(lines, "\n")
}

// FileName is the export file name for a run.
func FileName(runID string) string {
	return "driftwatch-" + runID + ".json"
}

// Save writes the JSON report into dir and returns its path.
func Save(dir string, run runner.RunResult) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	path := filepath.Join(dir, FileName(run.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	if err := WriteJSON(f, run); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
