// Command fake-assistant serves the assistant contract from memory so the
// terminal client can be exercised without the real service.
// Usage: fake-assistant [-addr 127.0.0.1:5000] [-prefix /api/chat]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IntakeChat/internal/stub"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	addr := flag.String("addr", envOr("FAKE_ASSISTANT_ADDR", "127.0.0.1:5000"), "Listen address")
	prefix := flag.String("prefix", "/api/chat", "Route prefix for the chat endpoints")
	greeting := flag.String("greeting", stub.DefaultGreeting, "Greeting returned by /start (empty omits it)")
	idle := flag.Duration("idle-ttl", 24*time.Hour, "Drop conversations idle longer than this")
	flag.Parse()

	srv := stub.New(*greeting, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Heartbeat("/health"))
	r.Mount(*prefix, srv.Routes())

	httpSrv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := srv.Sweep(*idle); n > 0 {
					slog.Info("swept idle conversations", "removed", n, "active", srv.Len())
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("fake assistant listening", "addr", *addr, "prefix", *prefix)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
