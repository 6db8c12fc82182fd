package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/mthorvald/audiogen/internal/jobs"
)

// Event is one status update pushed to a subscriber. Terminal events carry
// the artifact URLs or the failure message and are flagged final.
type Event struct {
	JobID         string                       `json:"jobId"`
	Status        jobs.Status                  `json:"status"`
	Progress      int                          `json:"progress"`
	Message       string                       `json:"message,omitempty"`
	Language      string                       `json:"language,omitempty"`
	Timestamp     string                       `json:"timestamp"`
	CorrelationID string                       `json:"correlationId,omitempty"`
	AudioURLs     map[string]string            `json:"audioUrls,omitempty"`
	SubtitleURLs  map[string]jobs.SubtitleURLs `json:"subtitleUrls,omitempty"`
	ErrorMessage  string                       `json:"errorMessage,omitempty"`
	Final         bool                         `json:"final"`
}

// JobReader is the queue surface the watcher needs.
type JobReader interface {
	Get(id string) (*jobs.AudioJob, bool)
}

// Watcher turns the pull-style job store into push-style update streams by
// polling and forwarding only actual changes.
type Watcher struct {
	reader       JobReader
	pollInterval time.Duration
}

func NewWatcher(reader JobReader, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Watcher{reader: reader, pollInterval: pollInterval}
}

// Watch emits the job's current state immediately, then an event per observed
// change until the job reaches a terminal status or ctx ends. The channel is
// closed after the final event.
func (w *Watcher) Watch(ctx context.Context, jobID, correlationID string) (<-chan Event, error) {
	job, ok := w.reader.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	ch := make(chan Event, 8)
	go func() {
		defer close(ch)

		last := fingerprint(job)
		if !emit(ctx, ch, makeEvent(job, correlationID)) {
			return
		}
		if job.Status.Terminal() {
			return
		}

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, ok := w.reader.Get(jobID)
			if !ok {
				return
			}
			fp := fingerprint(current)
			if fp == last {
				continue
			}
			last = fp
			if !emit(ctx, ch, makeEvent(current, correlationID)) {
				return
			}
			if current.Status.Terminal() {
				return
			}
		}
	}()
	return ch, nil
}

func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}

func fingerprint(job *jobs.AudioJob) string {
	return fmt.Sprintf("%s|%d|%s|%d", job.Status, job.Progress(), job.CurrentLanguage, len(job.CompletedLanguages))
}

func makeEvent(job *jobs.AudioJob, correlationID string) Event {
	ev := Event{
		JobID:         job.ID,
		Status:        job.Status,
		Progress:      job.Progress(),
		Language:      job.CurrentLanguage,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: correlationID,
		Final:         job.Status.Terminal(),
	}
	switch job.Status {
	case jobs.StatusComplete:
		ev.Message = "All languages processed"
		ev.AudioURLs = job.AudioURLs
		ev.SubtitleURLs = job.SubtitleURLs
	case jobs.StatusFailed:
		ev.Message = "Processing failed"
		ev.ErrorMessage = job.ErrorMessage
		// languages that finished before the failure keep their artifacts
		ev.AudioURLs = job.AudioURLs
		ev.SubtitleURLs = job.SubtitleURLs
	default:
		ev.Message = statusMessage(job.Status)
	}
	return ev
}

func statusMessage(status jobs.Status) string {
	switch status {
	case jobs.StatusPending:
		return "Queued for processing"
	case jobs.StatusProcessing:
		return "Processing started"
	case jobs.StatusTranslating:
		return "Translating text"
	case jobs.StatusEnhancing:
		return "Enhancing narration"
	case jobs.StatusGeneratingAudio:
		return "Generating audio"
	case jobs.StatusStoringFiles:
		return "Storing files"
	default:
		return string(status)
	}
}
