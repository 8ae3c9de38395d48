package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MimoJanra/DriftWatch/internal/config"
	"github.com/MimoJanra/DriftWatch/internal/logging"
	"github.com/MimoJanra/DriftWatch/internal/runner"
)

const (
	defaultTelegramURL = "https://api.telegram.org"
	maxListedFailures  = 10
)

type NotificationSender struct {
	client      *http.Client
	telegramURL string
	logger      *slog.Logger
}

type Option func(*NotificationSender)

// WithTelegramURL overrides the Telegram Bot API base URL.
func WithTelegramURL(u string) Option {
	return func(ns *NotificationSender) { ns.telegramURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(ns *NotificationSender) { ns.client = c }
}

func NewNotificationSender(logger *slog.Logger, opts ...Option) *NotificationSender {
	if logger == nil {
		logger = logging.Default()
	}
	ns := &NotificationSender{
		client:      &http.Client{Timeout: 10 * time.Second},
		telegramURL: defaultTelegramURL,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(ns)
	}
	return ns
}

// NotificationMessage is the channel-independent digest of a run.
type NotificationMessage struct {
	RunID       string
	Passed      bool
	Endpoints   int
	PassedCount int
	FailedCount int
	SkippedAPIs int
	SuccessRate float64
	Failures    []string
	FinishedAt  time.Time
}

func NewMessage(run runner.RunResult) NotificationMessage {
	msg := NotificationMessage{
		RunID:       run.RunID,
		Passed:      run.Passed(),
		Endpoints:   run.Summary.Endpoints,
		PassedCount: run.Summary.Passed,
		FailedCount: run.Summary.Failed,
		SkippedAPIs: run.Summary.SkippedAPIs,
		SuccessRate: run.Summary.SuccessRate,
		FinishedAt:  run.FinishedAt,
	}
	for _, api := range run.APIs {
		if api.Error != "" {
			msg.Failures = append(msg.Failures, fmt.Sprintf("%s: skipped (%s)", api.Name, api.Error))
		}
	}
	for _, res := range run.Results {
		if res.Passed {
			continue
		}
		line := fmt.Sprintf("%s %s %s", res.API, res.Method, res.ResolvedPath)
		if res.ErrorMessage != "" {
			line += ": " + res.ErrorMessage
		}
		msg.Failures = append(msg.Failures, line)
	}
	return msg
}

// NotifyRun sends the run digest to every enabled channel. Passing runs are
// only sent to channels with NotifyOnSuccess. Every channel is attempted;
// the errors are joined.
func (ns *NotificationSender) NotifyRun(ctx context.Context, channels []config.NotificationConfig, run runner.RunResult) error {
	msg := NewMessage(run)
	var errs []error
	for _, ch := range channels {
		if !ch.Enabled || (msg.Passed && !ch.NotifyOnSuccess) {
			continue
		}
		if err := ns.SendNotification(ctx, ch, msg); err != nil {
			ns.logger.Warn("notification failed", "type", ch.Type, "run_id", run.RunID, "error", err)
			errs = append(errs, err)
			continue
		}
		ns.logger.Debug("notification sent", "type", ch.Type, "run_id", run.RunID)
	}
	return errors.Join(errs...)
}

func (ns *NotificationSender) SendNotification(ctx context.Context, ch config.NotificationConfig, msg NotificationMessage) error {
	if !ch.Enabled {
		return nil
	}

	switch ch.Type {
	case "telegram":
		return ns.sendTelegram(ctx, ch, msg)
	case "slack":
		return ns.sendSlack(ctx, ch, msg)
	default:
		return fmt.Errorf("unsupported notification type: %s", ch.Type)
	}
}

func (ns *NotificationSender) sendTelegram(ctx context.Context, ch config.NotificationConfig, msg NotificationMessage) error {
	if ch.Token == "" || ch.ChatID == "" {
		return fmt.Errorf("telegram token and chat_id are required")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", ns.telegramURL, ch.Token)
	payload := map[string]any{
		"chat_id":    ch.ChatID,
		"text":       ns.formatTelegramMessage(msg),
		"parse_mode": "HTML",
	}
	return ns.post(ctx, "telegram", url, payload)
}

func (ns *NotificationSender) sendSlack(ctx context.Context, ch config.NotificationConfig, msg NotificationMessage) error {
	if ch.WebhookURL == "" {
		return fmt.Errorf("slack webhook_url is required")
	}
	payload := map[string]any{
		"text": ns.formatSlackMessage(msg),
	}
	return ns.post(ctx, "slack", ch.WebhookURL, payload)
}

func (ns *NotificationSender) post(ctx context.Context, channel, url string, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ns.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s message: %w", channel, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
	}
	return nil
}

func statusEmoji(msg NotificationMessage) string {
	if msg.Passed {
		return "✅"
	}
	if msg.FailedCount == 0 {
		return "⚠️"
	}
	return "❌"
}

func (ns *NotificationSender) formatTelegramMessage(msg NotificationMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s DriftWatch Run</b>\n\n", statusEmoji(msg))
	fmt.Fprintf(&b, "<b>Run:</b> %s\n", html.EscapeString(msg.RunID))
	fmt.Fprintf(&b, "<b>Endpoints:</b> %d (%d passed, %d failed)\n", msg.Endpoints, msg.PassedCount, msg.FailedCount)
	fmt.Fprintf(&b, "<b>Success rate:</b> %.2f%%\n", msg.SuccessRate)
	if msg.SkippedAPIs > 0 {
		fmt.Fprintf(&b, "<b>Skipped APIs:</b> %d\n", msg.SkippedAPIs)
	}
	for _, f := range limitFailures(msg.Failures) {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(f))
	}
	fmt.Fprintf(&b, "<b>Time:</b> %s", msg.FinishedAt.Format(time.RFC3339))
	return b.String()
}

func (ns *NotificationSender) formatSlackMessage(msg NotificationMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *DriftWatch Run Report*\n\n", statusEmoji(msg))
	fmt.Fprintf(&b, "*Run:* %s\n", msg.RunID)
	fmt.Fprintf(&b, "*Endpoints:* %d (%d passed, %d failed)\n", msg.Endpoints, msg.PassedCount, msg.FailedCount)
	fmt.Fprintf(&b, "*Success rate:* %.2f%%\n", msg.SuccessRate)
	if msg.SkippedAPIs > 0 {
		fmt.Fprintf(&b, "*Skipped APIs:* %d\n", msg.SkippedAPIs)
	}
	for _, f := range limitFailures(msg.Failures) {
		fmt.Fprintf(&b, "• %s\n", f)
	}
	fmt.Fprintf(&b, "*Time:* %s", msg.FinishedAt.Format(time.RFC3339))
	return b.String()
}

func limitFailures(failures []string) []string {
	if len(failures) <= maxListedFailures {
		return failures
	}
	out := append([]string(nil), failures[:maxListedFailures]...)
	return append(out, fmt.Sprintf("… and %d more", len(failures)-maxListedFailures))
}
