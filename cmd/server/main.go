// Command server runs the llmrouter gateway.
//
// Configuration is read from a YAML file (see pkg/config) with environment
// overrides:
//
//	LLMROUTER_CONFIG     - config file path (or -config flag)
//	LLMROUTER_PORT       - listen port (default: 8080)
//	LLMROUTER_AUTH_TYPE  - none, apikey, or jwt
//	<HOST>_API_KEY       - backend API key per host, e.g. OPENAI_API_KEY
//	LLMROUTER_DEBUG      - debug categories, e.g. "providers,streaming"
//	LLMROUTER_LOG_LEVEL  - ERROR, WARN, INFO, DEBUG, TRACE
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/rhuss/llmrouter/pkg/config"
	"github.com/rhuss/llmrouter/pkg/debug"
	"github.com/rhuss/llmrouter/pkg/router"
	transporthttp "github.com/rhuss/llmrouter/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	r, err := router.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}
	defer r.Close()

	if len(r.Hosts()) == 0 {
		slog.Warn("no hosts configured, set <HOST>_API_KEY or hosts in the config file")
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(slog.Default()),
	}

	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}

	chain, limiter, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	if chain != nil {
		opts = append(opts, transporthttp.WithAuth(chain, limiter))
	}

	slog.Info("llmrouter configured",
		"hosts", r.Hosts(),
		"auth", cfg.Auth.Type,
		"metrics", cfg.Observability.Metrics.Enabled,
	)

	return transporthttp.NewServer(r, r, opts...).ListenAndServe()
}
