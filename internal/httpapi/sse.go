package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mthorvald/audiogen/pkg/log"
)

// handleStream serves job status updates over Server-Sent Events. Optional
// query parameters: correlation_id tags every event (one is generated when
// absent), language narrows events to one target language plus terminal
// events, and callback_url additionally registers a webhook that keeps
// receiving events even if the stream consumer disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	correlationID := r.URL.Query().Get("correlation_id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	languageFilter := r.URL.Query().Get("language")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if callbackURL := r.URL.Query().Get("callback_url"); callbackURL != "" {
		// outlives the stream on purpose
		go s.notifier.Deliver(context.Background(), jobID, callbackURL, correlationID)
	}

	events, err := s.watcher.Watch(r.Context(), jobID, correlationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("Stream opened for job %s (correlation %s)", jobID, correlationID)
	for ev := range events {
		if languageFilter != "" && !ev.Final && ev.Language != languageFilter {
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error("Failed to encode stream event for job %s: %v", jobID, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			log.Debug("Stream for job %s closed by client: %v", jobID, err)
			return
		}
		flusher.Flush()
	}
	log.Debug("Stream finished for job %s", jobID)
}
