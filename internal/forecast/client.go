// Package forecast provides a client for the remote sales-forecasting service:
// status polling, dataset upload, the training progress stream, reset and chat.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theirongolddev/stockcast/internal/session"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 4 << 20 // 4 MB
	userAgent      = "stockcast/1.0"
)

var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("forecast: backend unavailable")
	// ErrServer indicates the backend answered with a 5xx status.
	ErrServer = errors.New("forecast: server error")
	// ErrRejected indicates the backend refused the request (4xx).
	ErrRejected = errors.New("forecast: request rejected")
)

// Client talks to the forecasting backend over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout for short calls.
// The progress stream and the upload are bounded only by the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("forecast: parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("forecast: base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: defaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// CheckStatus fetches the backend's training state. The request is
// cache-busted so intermediaries never serve a stale snapshot.
func (c *Client) CheckStatus(ctx context.Context) (*ServerStatus, error) {
	q := url.Values{"t": {strconv.FormatInt(time.Now().UnixMilli(), 10)}}
	body, err := c.do(ctx, http.MethodGet, "/check-status", q, nil, "", true)
	if err != nil {
		return nil, err
	}

	var st ServerStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("forecast: parsing status: %w", err)
	}
	return &st, nil
}

// UploadTrain uploads a CSV dataset and asks the backend to train model on it.
// Completion is reported only through the progress stream.
func (c *Client) UploadTrain(ctx context.Context, filename string, dataset io.Reader, model ModelType) (*Ack, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("forecast: building upload: %w", err)
	}
	if _, err := io.Copy(part, dataset); err != nil {
		return nil, fmt.Errorf("forecast: reading dataset: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("forecast: building upload: %w", err)
	}

	q := url.Values{"model_type": {string(model)}}
	body, err := c.do(ctx, http.MethodPost, "/upload-train", q, &buf, mw.FormDataContentType(), false)
	if err != nil {
		return nil, err
	}
	return decodeAck(body), nil
}

// Reset deletes all uploaded data and trained models on the backend.
func (c *Client) Reset(ctx context.Context) (*Ack, error) {
	body, err := c.do(ctx, http.MethodDelete, "/reset-data", nil, nil, "", true)
	if err != nil {
		return nil, err
	}
	return decodeAck(body), nil
}

// Chat sends a question together with the replay context of prior turns.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.History == nil {
		req.History = []session.ReplayTurn{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("forecast: encoding chat request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/chat", nil, bytes.NewReader(payload), "application/json", true)
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("forecast: parsing chat response: %w", err)
	}
	if strings.EqualFold(resp.Status, "error") {
		msg := resp.Message
		if msg == "" {
			msg = "unspecified error"
		}
		return nil, fmt.Errorf("%w: %s", ErrServer, msg)
	}
	return &resp, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs a request and returns the response body. Short calls are
// bounded by the client timeout; long ones only by ctx.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, bounded bool) ([]byte, error) {
	if bounded {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return nil, fmt.Errorf("forecast: creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodGet {
		req.Header.Set("Cache-Control", "no-cache")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("request_id", reqID), zap.String("method", method),
			zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("request done",
		zap.String("request_id", reqID), zap.String("method", method),
		zap.String("path", path), zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnavailable, err)
	}
	if err := statusError(resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

// statusError maps non-2xx responses onto the package sentinels.
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	detail := errorDetail(body)
	switch {
	case code >= 500:
		return fmt.Errorf("%w: status %d%s", ErrServer, code, detail)
	default:
		return fmt.Errorf("%w: status %d%s", ErrRejected, code, detail)
	}
}

// errorDetail extracts a short message from an error body.
// FastAPI-style backends answer {"detail": "..."}.
func errorDetail(body []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return ": " + s
		}
		if payload.Message != "" {
			return ": " + payload.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	if s == "" {
		return ""
	}
	return ": " + s
}

func decodeAck(body []byte) *Ack {
	var ack Ack
	_ = json.Unmarshal(body, &ack) // acks are informational; any 2xx is success
	return &ack
}
