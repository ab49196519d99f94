package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/ekisa-team/salience/config"
	"github.com/ekisa-team/salience/internal/env"
	"github.com/ekisa-team/salience/internal/envvar"
	"github.com/ekisa-team/salience/internal/logger"
	"github.com/ekisa-team/salience/registry"
	httpserver "github.com/ekisa-team/salience/server/http"
	"github.com/ekisa-team/salience/service"

	_ "github.com/ekisa-team/salience/attribution/attnlens"
	_ "github.com/ekisa-team/salience/attribution/gradnorm"
	_ "github.com/ekisa-team/salience/attribution/occlusion"
)

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", defaultHTTPPort(), "HTTP port to listen on")
		flagConfigPath = flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", path.Join(config.DefaultConfigPath(), "salience.v1.schema.json"), "Path to schema file")
	)
	flag.Parse()

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(true),
			logger.WithLogFile("logs/salience.log"),
		),
	)

	manager := registry.NewManager()

	watcher, err := config.NewWatcher(*flagConfigPath, *flagSchemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		if err := manager.LoadFromConfig(context.Background(), cfg); err != nil {
			slog.Error("Failed to load models from config", "error", err)
			return
		}
	})
	if err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		return
	}

	cfg := watcher.Snapshot()
	if err := manager.LoadFromConfig(context.Background(), cfg); err != nil {
		slog.Error("Failed to load models from config", "error", err)
		return
	}

	slog.Info("Config loaded successfully", "config", *flagConfigPath, "schema", *flagSchemaPath)

	svc := service.NewAttribution(manager)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("salience", "1.0.0"))
	httpserver.NewAttributionHandler(api, svc)

	addr := fmt.Sprintf(":%d", *flagHTTPPort)
	slog.Info("Serving attribution API", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server stopped", "error", err)
	}
}

// defaultHTTPPort honors the env var before the built-in default.
func defaultHTTPPort() int {
	if p := os.Getenv(envvar.SalienceServerHTTPPort); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			return port
		}
	}
	return config.DefaultHTTPPort()
}
