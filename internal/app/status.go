package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/phasegridgo/internal/ctxlog"
	"github.com/vk/phasegridgo/internal/dispatch"
	"github.com/vk/phasegridgo/internal/engine"
)

// startStatusServer exposes the dispatcher's live state over HTTP:
// GET /status reports paused and queue depth, POST /pause and POST /resume
// gate the dispatcher. Disabled when StatusPort is 0.
func (a *App) startStatusServer(ctx context.Context, eng *engine.Engine, d *dispatch.Dispatcher) {
	logger := ctxlog.FromContext(ctx)
	if a.config.StatusPort <= 0 {
		logger.Debug("Status server not started: disabled.")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pool":      d.Name(),
			"paused":    eng.IsPaused(),
			"queue_len": d.QueueLen(),
		})
	})
	mux.HandleFunc("POST /pause", func(w http.ResponseWriter, r *http.Request) {
		eng.Pause()
		logger.Info("Dispatcher paused via status server.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /resume", func(w http.ResponseWriter, r *http.Request) {
		eng.Resume()
		logger.Info("Dispatcher resumed via status server.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	a.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("🩺 Status server starting.", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
}

func (a *App) closeStatusServer(ctx context.Context) {
	if a.httpServer == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status server shutdown failed.", "error", err)
		return
	}
	logger.Debug("Status server shut down gracefully.")
}
