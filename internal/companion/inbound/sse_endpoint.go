package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
)

const pingInterval = 25 * time.Second

// startStream writes the event-stream preamble. It reports false when the
// writer cannot stream.
func startStream(ctx context.Context, w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		slog.ErrorContext(ctx, "failed to send response connected", "error", err)
		return nil, false
	}
	flusher.Flush()

	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// StreamState streams every applied state using SSE, starting with the
// current one.
func (h *HTTPEndpoint) StreamState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := startStream(ctx, w)
	if !ok {
		return
	}

	h.observers.attach(ctx)
	defer h.observers.detach(ctx)

	states := h.uc.Subscribe(ctx)

	// heartbeat ping, so proxies won't drop idle connections.
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case st, ok := <-states:
			if !ok {
				return
			}
			if err := writeEvent(w, flusher, "state", toStateResponse(st)); err != nil {
				slog.ErrorContext(ctx, "failed to send response data", "error", err)
				return
			}
		}
	}
}

// StreamCountdown streams the locally projected countdown of one account,
// once per second, and ends with a gone event when the account disappears.
func (h *HTTPEndpoint) StreamCountdown(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := strings.TrimSpace(httprouter.ParamsFromContext(ctx).ByName("id"))
	if _, err := h.uc.Account(id); err != nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}

	flusher, ok := startStream(ctx, w)
	if !ok {
		return
	}

	h.observers.attach(ctx)
	defer h.observers.detach(ctx)

	countdowns := make(chan entity.Countdown)
	done := make(chan error, 1)
	go func() {
		done <- h.uc.WatchCountdown(ctx, id, func(c entity.Countdown) {
			select {
			case countdowns <- c:
			case <-ctx.Done():
			}
		})
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case c := <-countdowns:
			if err := writeEvent(w, flusher, "countdown", c); err != nil {
				slog.ErrorContext(ctx, "failed to send response data", "error", err)
				return
			}

		case err := <-done:
			if !errors.Is(err, entity.ErrAccountNotFound) {
				return
			}
			if err := writeEvent(w, flusher, "gone", GoneResponse{ID: id}); err != nil {
				slog.ErrorContext(ctx, "failed to send response data", "error", err)
			}
			return
		}
	}
}
