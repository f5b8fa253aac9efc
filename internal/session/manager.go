package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"IntakeChat/internal/backend"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultGreeting = "Hello! 👋 I'm here to help you find the perfect insurance plan. Who are we finding coverage for today?"
	DefaultApology  = "I apologize, but I'm having trouble connecting right now. Please try again in a moment."
)

var errNoConversation = errors.New("no conversation id: session started in degraded mode")

// Transport is the request/response contract of the assistant service.
// *backend.Client satisfies it.
type Transport interface {
	Start(ctx context.Context) (*backend.StartResponse, error)
	Chat(ctx context.Context, conversationID string, req backend.ChatRequest) (*backend.ChatResponse, error)
}

// StartResult is the outcome of session initiation. Degraded is set when the
// start call failed and Greeting is the local fallback.
type StartResult struct {
	ConversationID string
	Token          json.RawMessage
	Greeting       string
	Degraded       bool
}

// ExchangeResult is the outcome of one turn. On failure Reply holds the
// canned apology and Token is the token the caller passed in.
type ExchangeResult struct {
	Reply string
	Token json.RawMessage
	OK    bool
	Err   error
}

// ManagerConfig holds the tunables of a Manager
type ManagerConfig struct {
	Greeting string
	Apology  string
	// Timeout bounds each backend call; zero leaves it to the transport.
	Timeout time.Duration
}

// Manager issues session-initiation and exchange calls and absorbs their
// failures, so a broken backend degrades a turn rather than the session.
type Manager struct {
	transport Transport
	cfg       ManagerConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	starts    metric.Int64Counter
	exchanges metric.Int64Counter
}

// NewManager creates a session manager over the given transport
func NewManager(transport Transport, cfg ManagerConfig, logger *slog.Logger, meter metric.Meter) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if meter == nil {
		meter = otel.Meter("IntakeChat/internal/session")
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.Apology == "" {
		cfg.Apology = DefaultApology
	}

	m := &Manager{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("IntakeChat/internal/session"),
	}

	var err error
	m.starts, err = meter.Int64Counter("intake.session.starts",
		metric.WithDescription("Session initiation attempts"))
	if err != nil {
		logger.Warn("failed to create counter", "name", "intake.session.starts", "error", err)
	}
	m.exchanges, err = meter.Int64Counter("intake.exchanges",
		metric.WithDescription("Backend exchanges by outcome"))
	if err != nil {
		logger.Warn("failed to create counter", "name", "intake.exchanges", "error", err)
	}
	return m
}

// Apology returns the canned reply used when an exchange fails
func (m *Manager) Apology() string {
	return m.cfg.Apology
}

// Start opens a conversation. It never fails: on error it returns the local
// greeting with no conversation id and no token.
func (m *Manager) Start(ctx context.Context) StartResult {
	ctx, span := m.tracer.Start(ctx, "session.start")
	defer span.End()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	resp, err := m.transport.Start(ctx)
	if err != nil {
		m.logger.Warn("session start failed, continuing in degraded mode", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.count(ctx, m.starts, attribute.Bool("degraded", true))
		return StartResult{Greeting: m.cfg.Greeting, Degraded: true}
	}

	greeting := resp.Message
	if greeting == "" {
		greeting = m.cfg.Greeting
	}
	m.count(ctx, m.starts, attribute.Bool("degraded", false))
	m.logger.Info("session started", "conversation_id", resp.ConversationID)

	return StartResult{
		ConversationID: resp.ConversationID,
		Token:          resp.State,
		Greeting:       greeting,
	}
}

// Exchange performs one round trip carrying token. extra is forwarded as the
// structured side payload when non-nil.
func (m *Manager) Exchange(ctx context.Context, conversationID, text string, token json.RawMessage, extra any) ExchangeResult {
	ctx, span := m.tracer.Start(ctx, "session.exchange",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	if conversationID == "" {
		m.count(ctx, m.exchanges, attribute.String("outcome", "no_conversation"))
		return m.failed(span, token, errNoConversation)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	req := backend.ChatRequest{Message: text, State: token}
	if extra != nil {
		req.Extra = extra
	}

	resp, err := m.transport.Chat(ctx, conversationID, req)
	if err != nil {
		m.logger.Warn("exchange failed", "conversation_id", conversationID, "error", err)
		m.count(ctx, m.exchanges, attribute.String("outcome", "error"))
		return m.failed(span, token, err)
	}

	m.count(ctx, m.exchanges, attribute.String("outcome", "ok"))
	return ExchangeResult{Reply: resp.Response, Token: resp.State, OK: true}
}

func (m *Manager) failed(span trace.Span, token json.RawMessage, err error) ExchangeResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return ExchangeResult{Reply: m.cfg.Apology, Token: token, Err: err}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.Timeout)
}

func (m *Manager) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
