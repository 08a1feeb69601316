// Package reporter builds the occurrence summary and delivers it to ntfy.
package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/setevik/alarmtrace/internal/config"
)

// NtfyReporter sends summary notifications to an ntfy server.
type NtfyReporter struct {
	cfg    config.NtfyConfig
	client *http.Client
}

// NewNtfy creates a new NtfyReporter.
func NewNtfy(cfg config.NtfyConfig) *NtfyReporter {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &NtfyReporter{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled reports whether a topic URL is configured.
func (r *NtfyReporter) Enabled() bool {
	return r.cfg.URL != ""
}

// SendSummary posts a formatted summary. Critical rows raise the priority
// to "high" unless a higher one is configured.
func (r *NtfyReporter) SendSummary(ctx context.Context, s *Summary) error {
	priority := r.cfg.Priority
	if s.Critical > 0 && priorityRank(priority) < priorityRank("high") {
		priority = "high"
	}
	return r.send(ctx, FormatSummaryTitle(s), FormatSummary(s), priority)
}

func (r *NtfyReporter) send(ctx context.Context, title, body, priority string) error {
	if r.cfg.URL == "" {
		slog.Debug("ntfy URL not configured, skipping notification")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}

	req.Header.Set("Title", title)
	if priority != "" {
		req.Header.Set("Priority", priority)
	}
	if r.cfg.Tags != "" {
		req.Header.Set("Tags", r.cfg.Tags)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	slog.Info("notification sent", "title", title, "priority", priority)
	return nil
}

// priorityRank orders ntfy priority names; unknown names rank as default.
func priorityRank(p string) int {
	switch strings.ToLower(p) {
	case "min", "1":
		return 1
	case "low", "2":
		return 2
	case "high", "4":
		return 4
	case "urgent", "max", "5":
		return 5
	default:
		return 3
	}
}
