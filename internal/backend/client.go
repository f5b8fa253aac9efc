package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "IntakeChat/internal/backend"

// StatusError is returned when the assistant service answers with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d %s - %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Client talks to the assistant service over its JSON HTTP contract
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTracer overrides the globally registered tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithMeter overrides the globally registered meter
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) { c.duration = newDurationHistogram(meter) }
}

// NewClient creates a client for the assistant service rooted at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https scheme: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
		duration:   newDurationHistogram(otel.Meter(instrumentationName)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newDurationHistogram(meter metric.Meter) metric.Float64Histogram {
	h, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Warn("failed to create request duration histogram", "error", err)
		return nil
	}
	return h
}

// Start opens a new conversation
func (c *Client) Start(ctx context.Context) (*StartResponse, error) {
	ctx, span := c.tracer.Start(ctx, "backend.start")
	defer span.End()

	var resp StartResponse
	if err := c.do(ctx, span, http.MethodPost, "/start", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.ConversationID == "" {
		err := fmt.Errorf("start response missing conversation_id")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation.id", resp.ConversationID))
	return &resp, nil
}

// Chat sends one user turn and returns the assistant reply
func (c *Client) Chat(ctx context.Context, conversationID string, req ChatRequest) (*ChatResponse, error) {
	ctx, span := c.tracer.Start(ctx, "backend.chat",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	var resp ChatResponse
	if err := c.do(ctx, span, http.MethodPost, "/"+url.PathEscape(conversationID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches the server-side record of a conversation
func (c *Client) History(ctx context.Context, conversationID string) (*HistoryResponse, error) {
	ctx, span := c.tracer.Start(ctx, "backend.history",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	var resp HistoryResponse
	if err := c.do(ctx, span, http.MethodGet, "/"+url.PathEscape(conversationID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, span trace.Span, method, path string, body, result any) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return c.fail(span, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return c.fail(span, fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(span, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(span, fmt.Errorf("failed to read response: %w", err))
	}

	c.record(ctx, method, path, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return c.fail(span, &StatusError{Code: resp.StatusCode, Body: msg})
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return c.fail(span, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	c.logger.Debug("assistant request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (c *Client) record(ctx context.Context, method, path string, status int, d time.Duration) {
	if c.duration == nil {
		return
	}
	route := "/{conversation_id}"
	switch {
	case path == "/start":
		route = "/start"
	case strings.HasSuffix(path, "/history"):
		route = "/{conversation_id}/history"
	}
	c.duration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	))
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
