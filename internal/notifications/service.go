// Package notifications publishes best-effort push events for pipeline runs.
// Delivery failures are logged and never block or fail the primary
// operation.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"longbox/internal/config"
	"longbox/internal/logging"
)

const userAgent = "longbox/0.1.0"

// Service is the notification surface exposed to the pipeline runner. All
// methods are fire-and-forget from the caller's perspective.
type Service interface {
	PublishRunStarted(ctx context.Context, pipeline, runID string)
	PublishRunFinished(ctx context.Context, pipeline, runID, status string, processed, skipped int)
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

// NewNop returns a service that discards everything.
func NewNop() Service {
	return nopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func (n *ntfyService) PublishRunStarted(ctx context.Context, pipeline, runID string) {
	n.send(ctx, payload{
		title:   "Longbox - Run Started",
		message: fmt.Sprintf("Pipeline %s started (run %s)", pipeline, runID),
		tags:    []string{"longbox", pipeline, "started"},
	})
}

func (n *ntfyService) PublishRunFinished(ctx context.Context, pipeline, runID, status string, processed, skipped int) {
	data := payload{
		title:   "Longbox - Run Finished",
		message: fmt.Sprintf("Pipeline %s %s: %d processed, %d skipped (run %s)", pipeline, status, processed, skipped, runID),
		tags:    []string{"longbox", pipeline, status},
	}
	if status != "succeeded" {
		data.priority = "high"
	}
	n.send(ctx, data)
}

func (n *ntfyService) Test(ctx context.Context) error {
	return n.sendErr(ctx, payload{
		title:   "Longbox - Test",
		message: "Notification delivery is working",
		tags:    []string{"longbox", "test"},
	})
}

// send delivers the payload, logging failures instead of returning them.
func (n *ntfyService) send(ctx context.Context, data payload) {
	if err := n.sendErr(ctx, data); err != nil {
		n.logger.Warn("notification delivery failed",
			logging.Error(err),
			logging.String("title", data.title))
	}
}

func (n *ntfyService) sendErr(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Title", data.title)
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %s", resp.Status)
	}
	return nil
}

type nopService struct{}

func (nopService) PublishRunStarted(context.Context, string, string)               {}
func (nopService) PublishRunFinished(context.Context, string, string, string, int, int) {}
func (nopService) Test(context.Context) error                                     { return nil }
