package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"IntakeChat/internal/intake"
	"IntakeChat/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotStarted = errors.New("session not started")
	ErrPending    = errors.New("a request is already pending")
	ErrEmptyInput = errors.New("input is empty")

	ErrInvalidSelection = intake.ErrInvalidSelection
	ErrFlowComplete     = intake.ErrFlowComplete
)

// Exchanger is the session manager contract the controller depends on.
// *session.Manager satisfies it.
type Exchanger interface {
	Start(ctx context.Context) session.StartResult
	Exchange(ctx context.Context, conversationID, text string, token json.RawMessage, extra any) session.ExchangeResult
	Apology() string
}

// Controller owns one chat session: the backend handle, the intake flow
// state, the selections and the message log. It processes one input at a
// time; inputs arriving while a backend call is pending are rejected with
// ErrPending.
type Controller struct {
	exchanger         Exchanger
	catalog           intake.Catalog
	clock             func() time.Time
	logger            *slog.Logger
	tracer            trace.Tracer
	forwardSelections bool
	onPending         func(bool)

	mu         sync.Mutex
	started    bool
	pending    bool
	handle     session.Handle
	store      *session.Store
	state      intake.State
	selections intake.Selections
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithClock sets the timestamp source for messages
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the controller logger
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithCatalog replaces the step options
func WithCatalog(catalog intake.Catalog) ControllerOption {
	return func(c *Controller) { c.catalog = catalog }
}

// WithForwardSelections sends the intake selections as extra context on
// every free-text turn, not only on the turn that completes the intake.
func WithForwardSelections(enabled bool) ControllerOption {
	return func(c *Controller) { c.forwardSelections = enabled }
}

// WithPendingHook registers fn to observe the pending flag. It is called
// outside the controller lock when a backend call starts and ends.
func WithPendingHook(fn func(pending bool)) ControllerOption {
	return func(c *Controller) { c.onPending = fn }
}

// NewController creates a controller with no session open
func NewController(exchanger Exchanger, opts ...ControllerOption) *Controller {
	c := &Controller{
		exchanger: exchanger,
		catalog:   intake.DefaultCatalog,
		clock:     time.Now,
		logger:    slog.Default(),
		tracer:    otel.Tracer("IntakeChat/internal/chatbot"),
		store:     session.NewStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenSession starts the backend conversation and appends the greeting.
// It is a no-op once a session has been opened.
func (c *Controller) OpenSession(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.pending = true
	c.handle = session.NewHandle()
	localID := c.handle.LocalID
	c.mu.Unlock()
	c.notifyPending(true)

	ctx, span := c.tracer.Start(ctx, "chatbot.open_session",
		trace.WithAttributes(attribute.String("session.local_id", localID)))
	defer span.End()

	res := c.exchanger.Start(ctx)

	c.mu.Lock()
	c.handle.ConversationID = res.ConversationID
	c.handle.Token = res.Token
	c.store.Append(session.RoleAssistant, res.Greeting, c.clock())
	c.state = intake.StepWhoFor
	c.pending = false
	c.mu.Unlock()
	c.notifyPending(false)

	c.logger.Info("session opened",
		"local_session_id", localID,
		"conversation_id", res.ConversationID,
		"degraded", res.Degraded,
	)
	return nil
}

// SubmitUserInput is the single entry point for user intents after the
// session is open. Before the intake completes input must be one of the
// current step's options; afterwards it is free text.
func (c *Controller) SubmitUserInput(ctx context.Context, input string) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.pending {
		c.mu.Unlock()
		return ErrPending
	}

	ctx, span := c.tracer.Start(ctx, "chatbot.submit",
		trace.WithAttributes(attribute.String("flow.state", c.state.String())))
	defer span.End()

	if c.state != intake.FreeText {
		return c.submitSelection(ctx, input)
	}
	return c.submitText(ctx, input)
}

// submitSelection is called with c.mu held and releases it.
func (c *Controller) submitSelection(ctx context.Context, input string) error {
	t, err := c.catalog.Advance(c.state, c.selections, input)
	if err != nil {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("selection ignored", "flow_state", state.String(), "input", input, "error", err)
		return err
	}

	c.store.Append(session.RoleUser, t.Label, c.clock())
	c.selections = t.Selections

	if !t.RequiresBackend {
		c.store.Append(session.RoleAssistant, t.Reply, c.clock())
		c.state = t.Next
		c.mu.Unlock()
		c.logger.Info("intake step recorded", "flow_state", t.Next.String(), "selection", t.Label)
		return nil
	}

	handle := c.beginPending()
	res := c.exchanger.Exchange(ctx, handle.ConversationID, t.Utterance, handle.Token, t.Selections)

	c.mu.Lock()
	if res.OK {
		c.store.Append(session.RoleAssistant, res.Reply, c.clock())
		c.handle.Token = res.Token
	} else {
		c.store.Append(session.RoleAssistant, t.Summary+" "+res.Reply, c.clock())
	}
	// the flow completes whether or not the backend answered
	c.state = intake.FreeText
	c.endPendingLocked()

	c.logger.Info("intake completed",
		"local_session_id", handle.LocalID,
		"conversation_id", handle.ConversationID,
		"backend_ok", res.OK,
	)
	return nil
}

// submitText is called with c.mu held and releases it.
func (c *Controller) submitText(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyInput
	}

	c.store.Append(session.RoleUser, text, c.clock())

	var extra any
	if c.forwardSelections {
		extra = c.selections
	}

	handle := c.beginPending()
	res := c.exchanger.Exchange(ctx, handle.ConversationID, text, handle.Token, extra)

	c.mu.Lock()
	c.store.Append(session.RoleAssistant, res.Reply, c.clock())
	if res.OK {
		c.handle.Token = res.Token
	}
	c.endPendingLocked()

	if !res.OK {
		c.logger.Warn("turn degraded", "conversation_id", handle.ConversationID, "error", res.Err)
	}
	return nil
}

// beginPending marks a backend call in flight, releases c.mu and returns
// the handle to send.
func (c *Controller) beginPending() session.Handle {
	c.pending = true
	handle := c.handle
	c.mu.Unlock()
	c.notifyPending(true)
	return handle
}

// endPendingLocked clears the pending flag and releases c.mu.
func (c *Controller) endPendingLocked() {
	c.pending = false
	c.mu.Unlock()
	c.notifyPending(false)
}

func (c *Controller) notifyPending(pending bool) {
	if c.onPending != nil {
		c.onPending(pending)
	}
}

// Reset discards the session so the next OpenSession starts fresh
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrPending
	}
	c.started = false
	c.handle = session.Handle{}
	c.store = session.NewStore()
	c.state = intake.StepWhoFor
	c.selections = intake.Selections{}
	return nil
}

// Messages returns the chat history in insertion order
func (c *Controller) Messages() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All()
}

// State returns the current intake flow state
func (c *Controller) State() intake.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selections returns the intake answers recorded so far
func (c *Controller) Selections() intake.Selections {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selections
}

// Handle returns a copy of the backend session handle
func (c *Controller) Handle() session.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.handle
	h.Token = append(json.RawMessage(nil), c.handle.Token...)
	return h
}

// Pending reports whether a backend call is in flight
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Started reports whether OpenSession has been called for this session
func (c *Controller) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Options returns the choices offered in the current step, nil in free text
func (c *Controller) Options() []intake.Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	return c.catalog.Options(c.state)
}
