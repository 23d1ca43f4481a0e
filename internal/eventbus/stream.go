package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kazz187/timeguild/pkg/cerr"
)

const (
	streamBufferSize  = 64
	heartbeatInterval = 15 * time.Second
)

// Filter decides whether the caller of a stream may see an event.
type Filter func(ctx context.Context, e *Event) bool

// StreamHandler serves the bus as text/event-stream.
type StreamHandler struct {
	bus       *Bus
	filter    Filter
	heartbeat time.Duration
}

func NewStreamHandler(bus *Bus, filter Filter) *StreamHandler {
	return &StreamHandler{bus: bus, filter: filter, heartbeat: heartbeatInterval}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	id, ch := h.bus.Subscribe(streamBufferSize)
	defer h.bus.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	cerr.SetStreamed(ctx)
	if err := rc.Flush(); err != nil {
		cerr.SetJSONError(ctx, fmt.Errorf("event stream cannot flush: %w", err))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case e, ok := <-ch:
			if !ok {
				return
			}
			if h.filter != nil && !h.filter(ctx, e) {
				continue
			}
			if err := writeEvent(w, e); err != nil {
				slog.DebugContext(ctx, "event stream closed", "error", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return err
}
