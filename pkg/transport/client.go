package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/paondev/tapakasih/pkg/eventstore"
	"github.com/rs/zerolog"
)

const (
	DefaultEndpoint = "https://api.pycompany.com"
	DefaultTimeout  = 30 * time.Second

	// ClaimPath is the collector route for page events. The spelling is the
	// collector's own.
	ClaimPath = "/actifity/claim"
	CheckPath = "/activity/check"

	contentType = "application/json"
	maxErrBody  = 512
)

// ErrUnauthorized is returned when the collector rejects the developer token
var ErrUnauthorized = errors.New("collector rejected developer token")

// StatusError is a non-2xx collector response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("collector returned status %d: %s", e.StatusCode, e.Body)
}

// Demand is the collector's answer to whether it wants page events
type Demand string

const (
	OnDemand Demand = "ON_DEMAND"
	NoDemand Demand = "NO_DEMAND"
)

// Wanted reports whether tracking should record events
func (d Demand) Wanted() bool {
	return !strings.EqualFold(string(d), string(NoDemand))
}

// Config configures a Client
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
	Compress bool // gzip request bodies
	Logger   zerolog.Logger
}

// Client talks to the activity collector over HTTPS
type Client struct {
	endpoint   string
	token      string
	compress   bool
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a collector client
func NewClient(cfg Config) *Client {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		endpoint: endpoint,
		token:    cfg.Token,
		compress: cfg.Compress,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: cfg.Logger.With().Str("component", "transport").Logger(),
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type claimEvent struct {
	EventID   string `json:"eventId"`
	EpochTime int64  `json:"epochtime"`
	PageName  string `json:"pageName"`
	SessionID string `json:"sessionId"`
}

type claimRequest struct {
	Events []claimEvent `json:"events"`
}

type checkResponse struct {
	Status string `json:"status"`
}

// Send delivers a batch in one request. The collector accepts or rejects the
// whole batch; eventId lets it discard replays.
func (c *Client) Send(ctx context.Context, events []eventstore.Event) error {
	if len(events) == 0 {
		return nil
	}

	body, encoding, err := c.encodeBatch(events)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+ClaimPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call collector: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	c.logger.Debug().Int("events", len(events)).Int("bytes", len(body)).Msg("Batch accepted")
	return nil
}

func (c *Client) encodeBatch(events []eventstore.Event) ([]byte, string, error) {
	payload := claimRequest{Events: make([]claimEvent, len(events))}
	for i, e := range events {
		payload.Events[i] = claimEvent{
			EventID:   e.ID,
			EpochTime: e.Timestamp / 1000,
			PageName:  e.PageName,
			SessionID: e.SessionID,
		}
	}

	if !c.compress {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal batch: %w", err)
		}
		return data, "", nil
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(gz).Encode(payload); err != nil {
		_ = gz.Close()
		return nil, "", fmt.Errorf("failed to marshal batch: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to compress batch: %w", err)
	}
	return buf.Bytes(), "gzip", nil
}

// CheckDemand asks the collector whether tracking is wanted. Any failure
// yields OnDemand alongside the error so callers keep recording.
func (c *Client) CheckDemand(ctx context.Context) (Demand, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+CheckPath, nil)
	if err != nil {
		return OnDemand, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OnDemand, fmt.Errorf("failed to call collector: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return OnDemand, err
	}

	var result checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return OnDemand, fmt.Errorf("failed to decode demand response: %w", err)
	}

	switch {
	case strings.EqualFold(result.Status, string(NoDemand)):
		return NoDemand, nil
	case strings.EqualFold(result.Status, string(OnDemand)):
		return OnDemand, nil
	default:
		return OnDemand, fmt.Errorf("unknown demand status %q", result.Status)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
