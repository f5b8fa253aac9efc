package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"IntakeChat/internal/backend"
	"IntakeChat/internal/config"
	"IntakeChat/internal/intake"
	"IntakeChat/internal/session"
	"IntakeChat/internal/telemetry"

	"github.com/fatih/color"
	"go.opentelemetry.io/otel"
)

// HistoryFetcher reads the server-side record of a conversation
type HistoryFetcher interface {
	History(ctx context.Context, conversationID string) (*backend.HistoryResponse, error)
}

// ChatBot is the terminal front end: it renders the controller's message
// log and turns typed lines into user intents.
type ChatBot struct {
	config     *config.Config
	logger     *slog.Logger
	controller *Controller
	history    HistoryFetcher
	cleanup    []func()

	in       io.Reader
	out      io.Writer
	rendered int

	botColor  *color.Color
	userColor *color.Color
	hintColor *color.Color
	errColor  *color.Color
}

// NewChatBot wires logging, telemetry, the backend client, the session
// manager and the controller from cfg.
func NewChatBot(cfg *config.Config) (*ChatBot, error) {
	logger, logFile, err := telemetry.InitLogger(cfg.Logging.Dir, telemetry.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	cleanup := []func(){func() { _ = logFile.Close() }}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	clientOpts := []backend.Option{backend.WithLogger(logger)}
	meter := otel.Meter("intakechat")
	if cfg.Telemetry.Enabled {
		tracer, m, shutdown, err := telemetry.InitTelemetry(context.Background(), cfg.Logging.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		meter = m
		cleanup = append([]func(){shutdown}, cleanup...)
		clientOpts = append(clientOpts, backend.WithTracer(tracer), backend.WithMeter(m))
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	manager := session.NewManager(client, session.ManagerConfig{
		Greeting: cfg.Chat.Greeting,
		Apology:  cfg.Chat.Apology,
		Timeout:  cfg.Backend.Timeout,
	}, logger, meter)

	cb := newChatBot(cfg, logger, nil, client, os.Stdin, os.Stdout)
	cb.controller = NewController(manager,
		WithLogger(logger),
		WithForwardSelections(cfg.Chat.ForwardSelections),
		WithPendingHook(cb.showPending),
	)
	cb.cleanup = cleanup
	return cb, nil
}

func newChatBot(cfg *config.Config, logger *slog.Logger, controller *Controller, history HistoryFetcher, in io.Reader, out io.Writer) *ChatBot {
	return &ChatBot{
		config:     cfg,
		logger:     logger,
		controller: controller,
		history:    history,
		in:         in,
		out:        out,
		botColor:   color.New(color.FgYellow),
		userColor:  color.New(color.FgCyan),
		hintColor:  color.New(color.FgHiBlack),
		errColor:   color.New(color.FgRed),
	}
}

// Close flushes telemetry and closes log files
func (cb *ChatBot) Close() {
	for _, fn := range cb.cleanup {
		fn()
	}
}

// showPending echoes the user's message before the backend call blocks
func (cb *ChatBot) showPending(pending bool) {
	if pending {
		cb.render()
		cb.hintColor.Fprintln(cb.out, "  ...")
	}
}

// render prints messages appended since the last call
func (cb *ChatBot) render() {
	msgs := cb.controller.Messages()
	for _, msg := range msgs[cb.rendered:] {
		ts := msg.Timestamp.Format("15:04")
		if msg.Role == session.RoleUser {
			cb.userColor.Fprintf(cb.out, "[%s] You: ", ts)
		} else {
			cb.botColor.Fprintf(cb.out, "[%s] Bot: ", ts)
		}
		fmt.Fprintln(cb.out, msg.Content)
	}
	cb.rendered = len(msgs)
}

func (cb *ChatBot) renderOptions() {
	opts := cb.controller.Options()
	if len(opts) == 0 {
		return
	}
	for i, opt := range opts {
		cb.hintColor.Fprintf(cb.out, "  %d. %s\n", i+1, opt.Label)
	}
}

// resolveSelection maps a typed option number to its label
func resolveSelection(opts []intake.Option, input string) string {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(opts) {
		return input
	}
	return opts[n-1].Label
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new-session":
		if err := cb.controller.Reset(); err != nil {
			return false, fmt.Errorf("failed to reset session: %w", err)
		}
		cb.rendered = 0
		if err := cb.controller.OpenSession(ctx); err != nil {
			return false, fmt.Errorf("failed to open session: %w", err)
		}
		fmt.Fprintln(cb.out, "Started new session")
		cb.render()
		cb.renderOptions()
		return false, nil

	case "/history":
		h := cb.controller.Handle()
		if !h.Connected() {
			return false, fmt.Errorf("no backend conversation (session is offline)")
		}
		resp, err := cb.history.History(ctx, h.ConversationID)
		if err != nil {
			return false, fmt.Errorf("failed to fetch history: %w", err)
		}
		fmt.Fprintf(cb.out, "\nServer history for %s:\n", resp.ConversationID)
		for i, m := range resp.Messages {
			fmt.Fprintf(cb.out, "%d. %s: %s\n", i+1, m.Role, m.Content)
		}
		fmt.Fprintln(cb.out)
		return false, nil

	case "/status":
		h := cb.controller.Handle()
		sel := cb.controller.Selections()
		conv := h.ConversationID
		if conv == "" {
			conv = "(offline)"
		}
		fmt.Fprintf(cb.out, "Session:      %s\n", h.LocalID)
		fmt.Fprintf(cb.out, "Conversation: %s\n", conv)
		fmt.Fprintf(cb.out, "Step:         %s\n", cb.controller.State())
		fmt.Fprintf(cb.out, "Selections:   %s / %s / %s\n", sel.ForWhom, sel.AgeRange, sel.CoverageType)
		fmt.Fprintf(cb.out, "Messages:     %d\n", len(cb.controller.Messages()))
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  /quit, /exit   - Exit the chat")
		fmt.Fprintln(cb.out, "  /new-session   - Discard this conversation and start over")
		fmt.Fprintln(cb.out, "  /history       - Show the assistant's record of this conversation")
		fmt.Fprintln(cb.out, "  /status        - Show session, step and selections")
		fmt.Fprintln(cb.out, "  /help          - Show this help message")
		fmt.Fprintln(cb.out, "During the guided steps, answer with an option number or its label.")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// Run opens the session and processes input lines until EOF, /quit or ctx is done
func (cb *ChatBot) Run(ctx context.Context) error {
	fmt.Fprintln(cb.out, "=== Insurance Assistant ===")
	fmt.Fprintln(cb.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)

	if err := cb.controller.OpenSession(ctx); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	cb.render()
	cb.renderOptions()

	scanner := bufio.NewScanner(cb.in)
	for {
		fmt.Fprint(cb.out, "> ")

		line, err := readLine(ctx, scanner)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.errColor.Fprintf(cb.out, "Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if opts := cb.controller.Options(); len(opts) > 0 {
			input = resolveSelection(opts, input)
		}

		err = cb.controller.SubmitUserInput(ctx, input)
		switch {
		case errors.Is(err, ErrInvalidSelection):
			cb.hintColor.Fprintln(cb.out, "Please pick one of the options:")
			cb.renderOptions()
			continue
		case err != nil:
			cb.logger.Warn("input ignored", "error", err)
			continue
		}

		cb.render()
		cb.renderOptions()
	}

	fmt.Fprintln(cb.out, "Goodbye!")
	return nil
}

// readLine scans one line without blocking past ctx cancellation
func readLine(ctx context.Context, scanner *bufio.Scanner) (string, error) {
	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if scanner.Scan() {
			lineCh <- scanner.Text()
			return
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case line := <-lineCh:
		return line, nil
	}
}
