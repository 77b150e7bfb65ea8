package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"attendance/internal/config"
	"attendance/internal/logger"
	"attendance/internal/models"
)

// ErrorKind classifies why a backend request failed. The attendance queue
// uses it to tell "backend unreachable, keep the log local" apart from
// "backend rejected the log".
type ErrorKind int

const (
	ErrOther ErrorKind = iota
	ErrTimeout
	ErrConnRefused
	ErrDNS
)

// NetworkError wraps a transport-level failure talking to the backend.
type NetworkError struct {
	Kind ErrorKind
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err was a transport failure rather than
// an application-level rejection.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func classify(err error) *NetworkError {
	kind := ErrOther
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		kind = ErrDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case strings.Contains(err.Error(), "connection refused"):
		kind = ErrConnRefused
	}
	return &NetworkError{Kind: kind, Err: err}
}

// Client talks to the campus backend API. All payload field names follow
// the backend's camelCase convention.
type Client struct {
	authBase string
	syncBase string
	http     *http.Client
	log      *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	base := strings.TrimRight(cfg.BackendAPI, "/")
	return &Client{
		authBase: base,
		syncBase: strings.TrimSuffix(base, "/auth"),
		http:     &http.Client{Timeout: cfg.RemoteTimeout},
		log:      log,
	}
}

func (c *Client) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d for %s", resp.StatusCode, url)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
	}
	return nil
}

// GetCurrentSchedule asks the backend whether the instructor has a class
// right now. A nil schedule with a nil error means the backend answered
// and the instructor simply has none.
func (c *Client) GetCurrentSchedule(ctx context.Context, instructorName string) (*models.Schedule, error) {
	var out struct {
		Schedule *models.Schedule `json:"schedule"`
	}
	err := c.post(ctx, c.authBase+"/get-current-schedule",
		map[string]string{"instructorName": instructorName}, &out)
	if err != nil {
		return nil, err
	}
	return out.Schedule, nil
}

// FetchSchedules pulls the full schedule set for offline caching.
func (c *Client) FetchSchedules(ctx context.Context) ([]models.Schedule, error) {
	var out struct {
		Success   bool              `json:"success"`
		Message   string            `json:"message"`
		Schedules []models.Schedule `json:"schedules"`
	}
	err := c.post(ctx, c.syncBase+"/dean/sync-schedules-to-local", map[string]string{}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("schedule sync rejected: %s", out.Message)
	}
	return out.Schedules, nil
}

// LogTimeIn reports an arrival to the backend.
func (c *Client) LogTimeIn(ctx context.Context, entry models.AttendanceLogEntry) error {
	payload := map[string]any{
		"instructorName": entry.Instructor,
		"scheduleId":     entry.ScheduleID,
		"cameraId":       entry.CameraID,
		"timestamp":      entry.TimeIn,
		"logType":        entry.LogType,
		"isLate":         entry.IsLate,
		"uid":            entry.UID,
	}
	return c.post(ctx, c.authBase+"/log-time-in", payload, nil)
}

// LogTimeOut reports a departure with the accumulated minutes.
func (c *Client) LogTimeOut(ctx context.Context, entry models.AttendanceLogEntry) error {
	payload := map[string]any{
		"instructorName": entry.Instructor,
		"scheduleId":     entry.ScheduleID,
		"cameraId":       entry.CameraID,
		"timestamp":      entry.TimeOut,
		"totalMinutes":   entry.TotalMinutes,
		"uid":            entry.UID,
	}
	return c.post(ctx, c.authBase+"/log-time-out", payload, nil)
}

// Ping probes backend reachability with a cheap request. Used by the sync
// worker to decide whether draining the queue is worth attempting.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.syncBase+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
