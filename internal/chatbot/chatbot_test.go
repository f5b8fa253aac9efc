package chatbot

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"IntakeChat/internal/backend"
	"IntakeChat/internal/config"
	"IntakeChat/internal/intake"
	"IntakeChat/internal/session"
	"IntakeChat/internal/stub"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStubBot wires a ChatBot to an in-process fake assistant
func newStubBot(t *testing.T, input string) (*ChatBot, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	srv := httptest.NewServer(stub.New(stub.DefaultGreeting, discardLogger()).Routes())
	t.Cleanup(srv.Close)

	logger := discardLogger()
	client, err := backend.NewClient(srv.URL, backend.WithHTTPClient(srv.Client()), backend.WithLogger(logger))
	require.NoError(t, err)

	manager := session.NewManager(client, session.ManagerConfig{}, logger, nil)
	out := &bytes.Buffer{}
	cb := newChatBot(config.Default(), logger, nil, client, strings.NewReader(input), out)
	cb.controller = NewController(manager, WithLogger(logger), WithPendingHook(cb.showPending))
	return cb, out
}

func TestRun_GuidedIntakeThenFreeText(t *testing.T) {
	cb, out := newStubBot(t, strings.Join([]string{
		"2",
		"31-45 years",
		"1",
		"What does it cost?",
		"/history",
		"/quit",
		"never read",
	}, "\n"))

	require.NoError(t, cb.Run(context.Background()))
	got := out.String()

	assert.Contains(t, got, "=== Insurance Assistant ===")
	assert.Contains(t, got, "Bot: "+stub.DefaultGreeting)
	assert.Contains(t, got, "  1. Myself")
	assert.Contains(t, got, "You: My Family")
	assert.Contains(t, got, "You: 31-45 years")
	assert.Contains(t, got, "You: Health Insurance")
	assert.Contains(t, got, "Bot: Thanks! Based on what you told me (My family needs health insurance, age range 31-45)")
	assert.Contains(t, got, "You: What does it cost?")
	assert.Contains(t, got, "1. user: My family needs health insurance, age range 31-45")
	assert.Contains(t, got, "3. user: What does it cost?")
	assert.True(t, strings.HasSuffix(got, "Goodbye!\n"))
	assert.NotContains(t, got, "never read")

	assert.Equal(t, intake.FreeText, cb.controller.State())
	assert.Len(t, cb.controller.Messages(), 9)
}

func TestRun_InvalidSelectionReprompts(t *testing.T) {
	cb, out := newStubBot(t, "I want insurance\n7\n")

	require.NoError(t, cb.Run(context.Background()))

	assert.Equal(t, 2, strings.Count(out.String(), "Please pick one of the options:"))
	assert.Equal(t, intake.StepWhoFor, cb.controller.State())
	assert.Len(t, cb.controller.Messages(), 1)
}

func TestRun_Commands(t *testing.T) {
	cb, out := newStubBot(t, "1\n/status\n/bogus\n/new-session\n/help\n/exit\n")

	require.NoError(t, cb.Run(context.Background()))
	got := out.String()

	assert.Contains(t, got, "Step:         step2_age_range")
	assert.Contains(t, got, "Selections:   Myself /  / ")
	assert.Contains(t, got, "Error: unknown command: /bogus")
	assert.Contains(t, got, "Started new session")
	assert.Contains(t, got, "Available commands:")

	assert.Equal(t, intake.StepWhoFor, cb.controller.State())
	assert.Len(t, cb.controller.Messages(), 1)
}

func TestRun_OfflineHistory(t *testing.T) {
	color.NoColor = true
	logger := discardLogger()
	manager := session.NewManager(downTransport{}, session.ManagerConfig{}, logger, nil)
	out := &bytes.Buffer{}
	cb := newChatBot(config.Default(), logger, nil, nil, strings.NewReader("/history\n/status\n"), out)
	cb.controller = NewController(manager, WithLogger(logger))

	require.NoError(t, cb.Run(context.Background()))
	got := out.String()

	assert.Contains(t, got, "Bot: "+session.DefaultGreeting)
	assert.Contains(t, got, "Error: no backend conversation (session is offline)")
	assert.Contains(t, got, "Conversation: (offline)")
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	cb, out := newStubBot(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, cb.Run(ctx))
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestResolveSelection(t *testing.T) {
	opts := intake.DefaultCatalog.Options(intake.StepAgeRange)

	assert.Equal(t, "18-30 years", resolveSelection(opts, "1"))
	assert.Equal(t, "61+ years", resolveSelection(opts, " 4 "))
	assert.Equal(t, "5", resolveSelection(opts, "5"))
	assert.Equal(t, "0", resolveSelection(opts, "0"))
	assert.Equal(t, "46-60 years", resolveSelection(opts, "46-60 years"))
}
