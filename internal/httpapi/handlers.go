package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/pkg/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.cacheStats != nil {
		payload["translation_cache"] = s.cacheStats()
	}
	writeJSON(w, http.StatusOK, payload)
}

type createJobRequest struct {
	Text           string   `json:"text"`
	Languages      []string `json:"languages"`
	SourceLanguage string   `json:"source_language"`
	DedupeKey      string   `json:"dedupe_key"`
	Source         string   `json:"source"`
	VoiceID        string   `json:"voice_id"`
	TTSProvider    string   `json:"tts_provider"`
	Speed          float64  `json:"speed"`
	Title          string   `json:"title"`
}

// handleCreateJob accepts a narration request and queues it. A request whose
// dedupe key matches a live job returns that job with 200 instead of 202.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(req.Languages) == 0 {
		writeError(w, http.StatusBadRequest, "at least one target language is required")
		return
	}
	seen := make(map[string]bool, len(req.Languages))
	for _, lang := range req.Languages {
		if lang == "" {
			writeError(w, http.StatusBadRequest, "empty language code")
			return
		}
		if seen[lang] {
			writeError(w, http.StatusBadRequest, "duplicate language: "+lang)
			return
		}
		seen[lang] = true
	}
	source := req.Source
	if source == "" {
		source = "api"
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:         source,
		DedupeKey:      req.DedupeKey,
		InputText:      req.Text,
		SourceLanguage: req.SourceLanguage,
		Languages:      req.Languages,
		Config: jobs.JobConfig{
			VoiceID:     req.VoiceID,
			TTSProvider: req.TTSProvider,
			Speed:       req.Speed,
			Title:       req.Title,
		},
	})
	if !created {
		log.Info("Dedupe hit for key %q: job %s", req.DedupeKey, job.ID)
		writeJSON(w, http.StatusOK, jobResponse(job))
		return
	}
	log.Info("Queued job %s for %d language(s)", job.ID, len(job.Languages))
	writeJSON(w, http.StatusAccepted, jobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.queue.List()
	payload := make([]map[string]any, 0, len(list))
	for _, job := range list {
		payload = append(payload, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(r.PathValue("jobId"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

// handleVerify triggers an integrity pass outside the nightly schedule.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.verify == nil {
		writeError(w, http.StatusNotImplemented, "verification is not enabled")
		return
	}
	summary, err := s.verify.Trigger(r.Context())
	if err != nil {
		log.Error("Manual integrity run failed: %v", err)
		writeError(w, http.StatusInternalServerError, "verification run failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// jobResponse augments the stored job with its derived progress.
func jobResponse(job *jobs.AudioJob) map[string]any {
	return map[string]any{
		"id":                  job.ID,
		"source":              job.Source,
		"status":              job.Status,
		"progress":            job.Progress(),
		"languages":           job.Languages,
		"completed_languages": job.CompletedLanguages,
		"current_language":    job.CurrentLanguage,
		"language_statuses":   job.LanguageStatuses,
		"audio_urls":          job.AudioURLs,
		"subtitle_urls":       job.SubtitleURLs,
		"error_message":       job.ErrorMessage,
		"created_at":          job.CreatedAt,
		"updated_at":          job.UpdatedAt,
	}
}
