package app

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/phasegridgo/internal/script"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle: the script loader, the logger, and the optional status server.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *script.Registry
	loader     *script.Loader
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and step-kind
// registry.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	registry := script.NewRegistry()
	logger.Debug("Step kind registry populated with core kinds.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   config,
		registry: registry,
		loader:   script.NewLoader(registry),
	}
}

// Registry returns the step-kind registry, letting embedders add kinds
// before Run.
func (a *App) Registry() *script.Registry {
	return a.registry
}
