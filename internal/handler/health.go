package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const readyTimeout = 2 * time.Second

// Pinger is a dependency that must answer before the service is ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports that the process is up.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ReadyHandler reports ready while every pinger answers. With no pingers
// the service is always ready.
func ReadyHandler(logger zerolog.Logger, pingers ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				logger.Warn().Err(err).Msg("readiness check failed")
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
