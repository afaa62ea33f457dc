package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"wristbeacon/internal/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	store  Pinger
	beacon Beacon
}

func NewHealthchecker(store Pinger, b Beacon) healthchecker {
	return &healthcheckerImpl{store: store, beacon: b}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			slog.Error("failed to check store connectivity", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to check store connectivity")
			return
		}
	}
	if h.beacon != nil && h.beacon.Status() == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "controller not initialized")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, store Pinger, b Beacon) {
	healthchecker := NewHealthchecker(store, b)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
