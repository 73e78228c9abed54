package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"oshimaint/internal/config"
	"oshimaint/internal/notifications"
)

func TestNewServiceReturnsNoopWhenNothingConfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg, nil)
	if err := svc.Publish(context.Background(), notifications.EventRunFailed, notifications.Payload{"command": "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run completed",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"command":  "episodes dedupe",
				"runID":    "0123456789abcdef",
				"dryRun":   false,
				"summary":  map[string]int{"deleted": 3, "skipped_unsafe": 1},
				"duration": 2400 * time.Millisecond,
			},
			expectTitle:   "oshimaint - Run Complete",
			expectMessage: "✅ episodes dedupe finished (apply)\ndeleted=3 skipped_unsafe=1\nTook 2s\nRun 01234567",
			expectTags:    "oshimaint,run,completed",
		},
		{
			name:  "run failed",
			event: notifications.EventRunFailed,
			payload: notifications.Payload{
				"command": "locations clean",
				"dryRun":  true,
				"error":   errors.New("supabase unavailable"),
			},
			expectTitle:    "oshimaint - Run Failed",
			expectMessage:  "❌ locations clean failed (dry-run): supabase unavailable",
			expectTags:     "oshimaint,run,error",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "oshimaint - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "oshimaint,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg, nil)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsOutcomeToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.OnSuccess = false
	cfg.Notifications.OnFailure = false

	svc := notifications.NewService(&cfg, nil)
	for _, event := range []notifications.Event{notifications.EventRunCompleted, notifications.EventRunFailed, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"command": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg, nil).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestFanoutDeliversToNtfyAndTelegram(t *testing.T) {
	var (
		mu        sync.Mutex
		ntfyBody  string
		tgText    string
		tgChatID  string
		tgMethods []string
	)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		ntfyBody = string(body)
		mu.Unlock()
	}))
	defer ntfy.Close()

	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		mu.Lock()
		tgMethods = append(tgMethods, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/botsecret/getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"oshimaint","username":"oshimaint_bot"}}`))
		case "/botsecret/sendMessage":
			mu.Lock()
			tgText = r.PostForm.Get("text")
			tgChatID = r.PostForm.Get("chat_id")
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			t.Fatalf("unexpected telegram path %s", r.URL.Path)
		}
	}))
	defer telegram.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ntfy.URL
	cfg.Notifications.TelegramToken = "secret"
	cfg.Notifications.TelegramChatID = 42
	cfg.Notifications.TelegramAPIEndpoint = telegram.URL

	svc := notifications.NewService(&cfg, nil)
	for range 2 {
		if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if ntfyBody != "🧪 Notification system test" {
		t.Fatalf("unexpected ntfy body %q", ntfyBody)
	}
	if tgChatID != "42" || !strings.Contains(tgText, "oshimaint - Test") {
		t.Fatalf("unexpected telegram message chat=%q text=%q", tgChatID, tgText)
	}
	getMe := 0
	for _, m := range tgMethods {
		if strings.HasSuffix(m, "/getMe") {
			getMe++
		}
	}
	if getMe != 1 {
		t.Fatalf("expected the bot to be created once, saw %d getMe calls", getMe)
	}
}
