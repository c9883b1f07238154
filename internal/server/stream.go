package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
)

const streamKeepAlive = 30 * time.Second

// handleStream serves the team's live envelopes as server-sent events.
// Optional ?kinds=a,b,c narrows the stream to those envelope kinds.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	kindFilter := make(map[envelope.Kind]struct{})
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			kind := envelope.Kind(strings.TrimSpace(k))
			if !kind.Known() {
				http.Error(w, fmt.Sprintf("unknown kind %q", kind), http.StatusBadRequest)
				return
			}
			kindFilter[kind] = struct{}{}
		}
	}

	// Attaching a stream is a mount: make sure the session exists so the
	// snapshot fetch kicks off.
	if err := s.coordinator.EnsureSession(teamID); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	subID, ch := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Debug("stream attached", "team_id", teamID)

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case env, ok := <-ch:
			if !ok {
				return
			}
			if env.TeamID != teamID {
				continue
			}
			if len(kindFilter) > 0 {
				if _, match := kindFilter[env.Kind]; !match {
					continue
				}
			}
			data, err := json.Marshal(env)
			if err != nil {
				slog.Error("failed to marshal envelope for stream", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, env.Kind, data)
			flusher.Flush()
		}
	}
}
