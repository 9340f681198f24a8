package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/streaming"
)

// handleSSE streams run events via Server-Sent Events.
// GET /stream/sse?run_id=<id>
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		http.Error(w, `{"error":"run_id required"}`, http.StatusBadRequest)
		return
	}
	stageFilter := parseStageFilter(r.URL.Query().Get("stages"))

	// Last-Event-ID header or query param to replay from
	var lastID uint64
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			lastID = n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" && lastID == 0 {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			lastID = n
		}
	}

	// CORS (dev-friendly)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := h.streams.Subscribe(runID, 256)
	defer h.streams.Unsubscribe(runID, ch)

	// Initial comment establishes the stream
	fmt.Fprintf(w, ": connected to run %s\n\n", runID)
	flusher.Flush()

	// Replay backlog since lastID (best-effort)
	if lastID > 0 {
		for _, ev := range h.streams.ReplaySince(runID, lastID) {
			if !stageFilter.allows(ev.Stage) {
				continue
			}
			writeSSE(w, ev)
		}
		flusher.Flush()
	}

	hb := time.NewTicker(15 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("run_id", runID))
			return
		case evt := <-ch:
			if !stageFilter.allows(evt.Stage) {
				continue
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-hb.C:
			// Keeps connections alive through proxies
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev streaming.Event) {
	if ev.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", ev.Seq)
	}
	if ev.Stage != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Stage)
	}
	fmt.Fprintf(w, "data: %s\n\n", string(ev.Marshal()))
}

// stageFilter is an optional comma-separated stage allowlist; empty allows all.
type stageFilter map[string]struct{}

func parseStageFilter(s string) stageFilter {
	f := stageFilter{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			f[part] = struct{}{}
		}
	}
	return f
}

func (f stageFilter) allows(stage string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[stage]
	return ok
}
