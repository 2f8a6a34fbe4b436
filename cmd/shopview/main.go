// Shopview - voice shopping presentation service.
// Holds the ElevenLabs conversation and shows every storefront tool result
// as a page in the connected browsers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-shopview/internal/log"
	"github.com/teslashibe/go-shopview/pkg/shop"
)

func main() {
	cfg := parseFlags()
	if err := cfg.LoadEnvConfig(); err != nil {
		fatal("configuration error", err)
	}

	log.Init(cfg.LogLevel)

	app, err := shop.New(cfg, shop.WithLogger(log.L()))
	if err != nil {
		fatal("configuration error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("shopview starting", "port", cfg.Port, "agent_id", cfg.AgentID, "auto_start", cfg.AutoStart)
	if err := app.Run(ctx); err != nil {
		fatal("runtime error", err)
	}
	log.Info("shopview stopped")
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() shop.Config {
	cfg := shop.DefaultConfig()

	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port (SHOPVIEW_PORT)")
	flag.StringVar(&cfg.StaticDir, "static", "", "Directory with the browser renderer (SHOPVIEW_STATIC_DIR)")
	flag.StringVar(&cfg.RoutesFile, "routes", "", "YAML tool routing table (SHOPVIEW_ROUTES)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error (LOG_LEVEL)")
	flag.StringVar(&cfg.AgentID, "agent", "", "ElevenLabs agent ID (ELEVENLABS_AGENT_ID)")
	flag.StringVar(&cfg.Currency, "currency", cfg.Currency, "Currency shown when a price names none")
	flag.BoolVar(&cfg.AutoStart, "auto-start", false, "Start the conversation session at startup")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "ElevenLabs request timeout")
	flag.Parse()

	return cfg
}

func fatal(msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
