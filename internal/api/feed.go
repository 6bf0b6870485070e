package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storypets/storypets/internal/app/progression"
	"github.com/storypets/storypets/internal/infra/docstore"
)

// changeEvent is one committed-document notification on the SSE feed.
type changeEvent struct {
	Collection string          `json:"collection"`
	Version    int64           `json:"version"`
	Body       json.RawMessage `json:"body"`
}

// handleEvents streams committed snapshots of both of the user's root
// documents as server-sent events until the client disconnects. This is the
// HTTP rendition of the store's subscribe primitive; snapshots are
// eventually consistent and clients must treat them as hints, not as
// authority for cooldown-sensitive decisions.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan docstore.Snapshot, 32)
	forward := func(snap docstore.Snapshot) {
		select {
		case events <- snap:
		case <-r.Context().Done():
		}
	}

	cancelUser := s.store.Subscribe(progression.UserStateCollection, userID, forward)
	defer cancelUser()
	cancelQuest := s.store.Subscribe(progression.QuestStateCollection, userID, forward)
	defer cancelQuest()

	s.log.Debug().Str("user", userID).Msg("change feed opened")
	defer s.log.Debug().Str("user", userID).Msg("change feed closed")

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-events:
			payload, err := json.Marshal(changeEvent{
				Collection: snap.Collection,
				Version:    snap.Version,
				Body:       snap.Body,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
