package simd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cost"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/utils"
)

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback url targets an internal address")
)

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID      string                 `json:"run_id"`
	Status     models.RunStatus       `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  time.Time              `json:"started_at,omitempty"`
	EndedAt    time.Time              `json:"ended_at,omitempty"`
	Error      string                 `json:"error,omitempty"`
	FailedStep *int                   `json:"failed_step,omitempty"`
	Summary    *models.HorizonSummary `json:"summary,omitempty"`
	Cost       *cost.Report           `json:"cost,omitempty"`
	Metadata   map[string]string      `json:"metadata,omitempty"`
	Timestamp  int64                  `json:"timestamp"` // when the notification was sent
}

// Notifier posts run completion to a callback URL with retries
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    *utils.Backoff
}

// NewNotifier creates a notifier with 3 retries starting at 1s
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.NewBackoff(time.Second, 30*time.Second, 2, true),
	}
}

// NewNotifierWithRetry creates a notifier with a custom retry budget and backoff
func NewNotifierWithRetry(maxRetries int, backoff *utils.Backoff, timeout time.Duration) *Notifier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// NewPayload builds the notification body for a run record
func NewPayload(rec RunRecord) NotificationPayload {
	return NotificationPayload{
		RunID:      rec.Run.ID,
		Status:     rec.Run.Status,
		CreatedAt:  rec.Run.CreatedAt,
		StartedAt:  rec.Run.StartedAt,
		EndedAt:    rec.Run.EndedAt,
		Error:      rec.Run.Error,
		FailedStep: rec.Run.FailedStep,
		Summary:    rec.Summary,
		Cost:       rec.Cost,
		Metadata:   rec.Run.Metadata,
		Timestamp:  time.Now().UTC().UnixMilli(),
	}
}

// Notify sends the run's outcome to its callback URL in the background.
// The returned channel is closed once delivery succeeded or was abandoned.
func (n *Notifier) Notify(rec RunRecord) <-chan struct{} {
	done := make(chan struct{})
	callbackURL := rec.Input.CallbackURL
	if callbackURL == "" {
		close(done)
		return done
	}

	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", rec.Run.ID)
	if err := validateCallbackURL(finalURL); err != nil {
		logger.Warn("refusing to notify callback", "run_id", rec.Run.ID, "callback_url", finalURL, "error", err)
		close(done)
		return done
	}

	payload := NewPayload(rec)
	secret := getCallbackSecret(&rec)
	go func() {
		defer close(done)
		if err := n.Send(context.Background(), finalURL, secret, payload); err != nil {
			logger.Error("failed to send notification after retries",
				"callback_url", finalURL,
				"run_id", payload.RunID,
				"status", payload.Status,
				"max_retries", n.maxRetries,
				"last_error", err)
		}
	}()
	return done
}

// Send POSTs payload, retrying non-2xx responses and transport errors with backoff
func (n *Notifier) Send(ctx context.Context, callbackURL, secret string, payload NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "doc-simulation/1.0")
		if secret != "" {
			req.Header.Set("X-Simulation-Callback-Secret", secret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent successfully",
				"run_id", payload.RunID,
				"status", payload.Status,
				"status_code", resp.StatusCode)
			return nil
		}

		responseBody := string(respBody)
		if len(responseBody) > 200 {
			responseBody = responseBody[:200] + "..."
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"status_code", resp.StatusCode,
			"response_body", responseBody,
			"attempt", attempt+1)
	}
	return lastErr
}

func getCallbackSecret(rec *RunRecord) string {
	if rec == nil {
		return ""
	}
	return rec.Input.CallbackSecret
}

// validateCallbackURL rejects non-HTTP schemes, metadata endpoints and literal internal IPs.
// The hostname localhost is accepted for local development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	switch strings.ToLower(host) {
	case "metadata.google.internal", "metadata", "169.254.169.254":
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	case "localhost":
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrInternalHost, host)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
