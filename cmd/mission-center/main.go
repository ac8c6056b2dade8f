// mission-center serves a read-only operations dashboard: usage ledger
// ingestion over webhooks plus local OpenClaw observability endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/notesmbr/mission-center/internal/billing"
	"github.com/notesmbr/mission-center/internal/config"
	"github.com/notesmbr/mission-center/internal/history"
	"github.com/notesmbr/mission-center/internal/ledger"
	"github.com/notesmbr/mission-center/internal/logwatch"
	"github.com/notesmbr/mission-center/internal/server"
	"github.com/notesmbr/mission-center/internal/setup"
	"github.com/notesmbr/mission-center/internal/utils"
)

func main() {
	var (
		configFlag string
		debugFlag  bool
		portFlag   string
	)

	args := os.Args[1:]
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-h", "--help":
			printHelp()
			return
		case "-c", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --config requires a value")
				os.Exit(1)
			}
			configFlag = args[i+1]
			i += 2
		case "-d", "--debug":
			debugFlag = true
			i++
		case "-p", "--port":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --port requires a value")
				os.Exit(1)
			}
			portFlag = args[i+1]
			i += 2
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown option: %s\n", args[i])
			os.Exit(1)
		}
	}

	loadEnvFiles()
	setupLogging(debugFlag)

	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if portFlag != "" {
		port, err := strconv.Atoi(portFlag)
		if err != nil || port <= 0 || port > 65535 {
			fmt.Fprintf(os.Stderr, "Error: invalid port '%s'\n", portFlag)
			os.Exit(1)
		}
		cfg.Server.Port = port
	}

	apiKey := cfg.AnthropicKey()
	if apiKey == "" {
		log.Warn().Msg("no Anthropic key configured; /api/claude-usage will report not_configured")
	} else {
		log.Info().Str("key", utils.MaskKey(apiKey)).Msg("Anthropic key loaded")
	}

	hist, err := history.NewStore(cfg.History.Path, cfg.History.Retention)
	if err != nil {
		log.Warn().Err(err).Msg("delivery history disabled")
		hist = nil
	} else {
		defer func() { _ = hist.Close() }()
	}

	srv := server.New(
		cfg,
		ledger.NewService(ledger.NewStore(cfg.Ledger.Path)),
		logwatch.NewEstimator(cfg.Logs.Paths, cfg.Logs.MinBudget5h),
		setup.NewInspector(cfg.OpenClaw.ConfigPath),
		billing.NewClient(apiKey,
			billing.WithHTTPClient(&http.Client{Timeout: cfg.Billing.Timeout}),
			billing.WithCacheTTL(cfg.Billing.CacheTTL)),
		hist,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

// loadEnvFiles loads .env from the working directory if present. Existing
// environment variables win.
func loadEnvFiles() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func printHelp() {
	fmt.Print(`mission-center - read-only ops dashboard for OpenClaw

Usage:
  mission-center [options]

Options:
  -c, --config <path>  Config yaml (defaults used when omitted)
  -p, --port <port>    Override the listen port
  -d, --debug          Debug logging
  -h, --help           Show this help

Environment:
  ANTHROPIC_API_KEY    Key probed by /api/claude-usage (name configurable
                       via billing.api_key_env)
`)
}
