package jobs

import (
	"math"
	"time"
)

// Status is the lifecycle state of a job, and of each language within it.
type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusTranslating     Status = "translating"
	StatusEnhancing       Status = "enhancing"
	StatusGeneratingAudio Status = "generating_audio"
	StatusStoringFiles    Status = "storing_files"
	StatusComplete        Status = "complete"
	StatusFailed          Status = "failed"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// LanguageStatus mirrors the job-level status for a single language.
type LanguageStatus struct {
	Status Status `json:"status"`
	Draft  bool   `json:"draft"`
}

// JobConfig carries the synthesis options fixed at creation time.
type JobConfig struct {
	VoiceID     string  `json:"voice_id"`
	TTSProvider string  `json:"tts_provider"`
	Speed       float64 `json:"speed"`
	Title       string  `json:"title"`
}

// SubtitleURLs holds the stored subtitle locations for one language.
type SubtitleURLs struct {
	SRT string `json:"srt"`
	VTT string `json:"vtt"`
}

type EnqueueRequest struct {
	Source         string
	DedupeKey      string
	InputText      string
	SourceLanguage string
	Languages      []string
	Config         JobConfig
}

// AudioJob is one request to produce narrated audio plus subtitles for one or
// more languages from a single source text.
type AudioJob struct {
	ID                 string                    `json:"id"`
	Source             string                    `json:"source"`
	DedupeKey          string                    `json:"dedupe_key"`
	InputText          string                    `json:"input_text"`
	SourceLanguage     string                    `json:"source_language"`
	Languages          []string                  `json:"languages"`
	CompletedLanguages []string                  `json:"completed_languages"`
	CurrentLanguage    string                    `json:"current_language,omitempty"`
	LanguageStatuses   map[string]LanguageStatus `json:"language_statuses"`
	Config             JobConfig                 `json:"config"`
	Status             Status                    `json:"status"`
	ProcessedChunks    int                       `json:"processed_chunks"`
	TotalChunks        int                       `json:"total_chunks"`
	AudioURLs          map[string]string         `json:"audio_urls"`
	SubtitleURLs       map[string]SubtitleURLs   `json:"subtitle_urls"`
	ErrorMessage       string                    `json:"error_message,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// Progress derives a 0-100 percentage. Chunk counts of the in-flight language
// win when known; otherwise completed languages drive the estimate.
func (j *AudioJob) Progress() int {
	if j.Status == StatusComplete {
		return 100
	}
	if j.TotalChunks > 0 {
		return int(math.Round(float64(j.ProcessedChunks) / float64(j.TotalChunks) * 100))
	}
	if len(j.Languages) > 0 {
		return int(math.Round(float64(len(j.CompletedLanguages)) / float64(len(j.Languages)) * 100))
	}
	return 0
}

// Completed reports whether the language already finished.
func (j *AudioJob) Completed(language string) bool {
	for _, lang := range j.CompletedLanguages {
		if lang == language {
			return true
		}
	}
	return false
}
