package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IntakeChat/internal/chatbot"
	"IntakeChat/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	var (
		configPath        string
		baseURL           string
		timeout           time.Duration
		logDir            string
		logLevel          string
		debug             bool
		forwardSelections bool
		noTelemetry       bool
	)

	flag.StringVar(&configPath, "config", os.Getenv("INTAKECHAT_CONFIG"), "Path to TOML config file")
	flag.StringVar(&baseURL, "base-url", "", "Assistant service base URL (default "+config.DefaultBaseURL+")")
	flag.DurationVar(&timeout, "timeout", 0, "Per-request timeout for assistant calls")
	flag.StringVar(&logDir, "log-dir", "", "Directory for rotated log, trace and metric files")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&forwardSelections, "forward-selections", false, "Send intake selections with every free-text turn")
	flag.BoolVar(&noTelemetry, "no-telemetry", false, "Disable OpenTelemetry file exporters")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given explicitly win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.Backend.BaseURL = baseURL
		case "timeout":
			cfg.Backend.Timeout = timeout
		case "log-dir":
			cfg.Logging.Dir = logDir
		case "log-level":
			cfg.Logging.Level = logLevel
		case "debug":
			cfg.Debug = debug
		case "forward-selections":
			cfg.Chat.ForwardSelections = forwardSelections
		case "no-telemetry":
			cfg.Telemetry.Enabled = !noTelemetry
		}
	})
	if cfg.Debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	bot, err := chatbot.NewChatBot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = bot.Run(ctx)
	cancel()
	bot.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
