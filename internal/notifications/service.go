package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"oshimaint/internal/config"
	"oshimaint/internal/logging"
)

const userAgent = "oshimaint/0.1"

// Event identifies what happened.
type Event string

const (
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries event details. Known keys: command, runID, dryRun,
// summary (map[string]int or string), error, duration.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type notifier interface {
	name() string
	send(ctx context.Context, msg message) error
}

// NewService builds a service for the configured transports. Without any
// transport a no-op service is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var notifiers []notifier
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		notifiers = append(notifiers, &ntfyNotifier{endpoint: topic, client: client})
	}
	if token := strings.TrimSpace(cfg.Notifications.TelegramToken); token != "" && cfg.Notifications.TelegramChatID != 0 {
		notifiers = append(notifiers, newTelegramNotifier(token, cfg.Notifications.TelegramChatID, cfg.Notifications.TelegramAPIEndpoint, client))
	}
	if len(notifiers) == 0 {
		return noopService{}
	}
	return &fanoutService{
		notifiers: notifiers,
		onSuccess: cfg.Notifications.OnSuccess,
		onFailure: cfg.Notifications.OnFailure,
		logger:    logger.With(logging.String(logging.FieldComponent, "notifications")),
	}
}

type fanoutService struct {
	notifiers []notifier
	onSuccess bool
	onFailure bool
	logger    *slog.Logger
}

// Publish sends the event to every notifier and joins their errors.
func (s *fanoutService) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventRunCompleted:
		if !s.onSuccess {
			return nil
		}
	case EventRunFailed:
		if !s.onFailure {
			return nil
		}
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	var errs []error
	for _, n := range s.notifiers {
		if err := n.send(ctx, msg); err != nil {
			s.logger.Warn("notification delivery failed",
				logging.String("notifier", n.name()),
				logging.String("event", string(event)),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", n.name(), err))
		}
	}
	return errors.Join(errs...)
}

func format(event Event, payload Payload) (message, bool) {
	command := stringValue(payload, "command")
	runID := shortID(stringValue(payload, "runID"))
	mode := "apply"
	if dry, _ := payload["dryRun"].(bool); dry {
		mode = "dry-run"
	}

	switch event {
	case EventRunCompleted:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ %s finished (%s)", command, mode)
		if summary := summaryText(payload["summary"]); summary != "" {
			b.WriteString("\n")
			b.WriteString(summary)
		}
		if d, ok := payload["duration"].(time.Duration); ok {
			fmt.Fprintf(&b, "\nTook %s", d.Round(time.Second))
		}
		if runID != "" {
			fmt.Fprintf(&b, "\nRun %s", runID)
		}
		return message{
			title: "oshimaint - Run Complete",
			body:  b.String(),
			tags:  []string{"oshimaint", "run", "completed"},
		}, true
	case EventRunFailed:
		var b strings.Builder
		fmt.Fprintf(&b, "❌ %s failed (%s): ", command, mode)
		if errText := strings.TrimSpace(stringValue(payload, "error")); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		if runID != "" {
			fmt.Fprintf(&b, "\nRun %s", runID)
		}
		return message{
			title:    "oshimaint - Run Failed",
			body:     b.String(),
			tags:     []string{"oshimaint", "run", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "oshimaint - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"oshimaint", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func stringValue(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func summaryText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]int:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, v[k]))
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyNotifier) name() string { return "ntfy" }

func (n *ntfyNotifier) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
