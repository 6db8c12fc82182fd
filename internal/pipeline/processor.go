package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mthorvald/audiogen/internal/integrity"
	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/internal/speech"
	"github.com/mthorvald/audiogen/internal/subtitle"
	"github.com/mthorvald/audiogen/internal/translate"
	"github.com/mthorvald/audiogen/pkg/log"
)

// Translator turns source text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Enhancer optionally rewrites translated text for narration flow. Enhancement
// failures never fail a job.
type Enhancer interface {
	Enhance(ctx context.Context, text, language string) (string, error)
}

// Synthesizer produces audio bytes for one chunk of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// ArtifactStore persists finished audio and subtitle files and returns their
// public URLs.
type ArtifactStore interface {
	SaveAudio(ctx context.Context, jobID, language string, data []byte) (string, error)
	SaveSubtitles(ctx context.Context, jobID, language, srt, vtt string) (jobs.SubtitleURLs, string, string, error)
}

// RecordWriter registers stored subtitle files for nightly integrity checks.
type RecordWriter interface {
	PutRecord(ctx context.Context, rec integrity.Record) error
}

// Config carries the tunables the processor needs from the app configuration.
type Config struct {
	ChunkSize      int
	ChunkDelay     time.Duration
	DefaultVoice   string
	Speed          float64
	MaxRetries     int
	SourceLanguage string
}

// Processor drives one job through the full pipeline: per target language it
// translates, optionally enhances, synthesizes chunk by chunk, concatenates,
// and stores the audio plus SRT/VTT subtitles. Languages run sequentially; a
// language that exhausts its retry budget is recorded as failed and processing
// moves on, so earlier languages keep their artifacts.
type Processor struct {
	queue      *jobs.Queue
	translator Translator
	enhancer   Enhancer
	synth      Synthesizer
	artifacts  ArtifactStore
	records    RecordWriter
	cfg        Config
}

func NewProcessor(queue *jobs.Queue, translator Translator, enhancer Enhancer, synth Synthesizer, artifacts ArtifactStore, records RecordWriter, cfg Config) *Processor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4000
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 0.9
	}
	return &Processor{
		queue:      queue,
		translator: translator,
		enhancer:   enhancer,
		synth:      synth,
		artifacts:  artifacts,
		records:    records,
		cfg:        cfg,
	}
}

// Run is the queue executor. It returns nil only when every requested
// language produced its artifacts.
func (p *Processor) Run(ctx context.Context, job *jobs.AudioJob) error {
	sourceLang := p.resolveSourceLanguage(job)
	log.Info("Processing job %s: %d language(s), source %s", job.ID, len(job.Languages), sourceLang)

	failures := make([]string, 0)
	for _, lang := range job.Languages {
		if job.Completed(lang) {
			continue
		}
		if err := p.runLanguage(ctx, job.ID, lang, sourceLang); err != nil {
			log.Error("Job %s language %s failed: %v", job.ID, lang, err)
			p.queue.Update(job.ID, func(j *jobs.AudioJob) {
				j.LanguageStatuses[lang] = jobs.LanguageStatus{Status: jobs.StatusFailed}
				j.ErrorMessage = err.Error()
				j.CurrentLanguage = ""
				j.ProcessedChunks = 0
				j.TotalChunks = 0
			})
			failures = append(failures, err.Error())
		}
	}

	// the terminal error message carries each language's root cause so the
	// operator never needs the logs to see what broke
	if len(failures) > 0 {
		return fmt.Errorf("languages failed: %s", strings.Join(failures, "; "))
	}
	return nil
}

func (p *Processor) resolveSourceLanguage(job *jobs.AudioJob) string {
	if job.SourceLanguage != "" {
		return job.SourceLanguage
	}
	if p.cfg.SourceLanguage != "" {
		return p.cfg.SourceLanguage
	}
	return translate.DetectLanguage(job.InputText)
}

// runLanguage produces audio and subtitles for one language, retrying the
// whole language on failure up to the configured budget.
func (p *Processor) runLanguage(ctx context.Context, jobID, lang, sourceLang string) error {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if wait := retryDelay(lastErr); wait > 0 {
				select {
				case <-ctx.Done():
					return lastErr
				case <-time.After(wait):
				}
			}
			log.Warn("Job %s language %s: retry %d/%d after: %v", jobID, lang, attempt, p.cfg.MaxRetries, lastErr)
		}
		lastErr = p.runLanguageOnce(ctx, jobID, lang, sourceLang)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// retryDelay is the pause before the next attempt. Rate-limited attempts wait
// out the reported slot; everything else retries immediately.
func retryDelay(err error) time.Duration {
	var rle *translate.RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter + 10*time.Millisecond
	}
	return 0
}

func (p *Processor) runLanguageOnce(ctx context.Context, jobID, lang, sourceLang string) error {
	needsTranslation := lang != sourceLang

	// the translating and enhancing stages only exist for languages that
	// actually get translated
	startStatus := jobs.StatusGeneratingAudio
	if needsTranslation {
		startStatus = jobs.StatusTranslating
	}
	job, ok := p.queue.Update(jobID, func(j *jobs.AudioJob) {
		j.Status = startStatus
		j.CurrentLanguage = lang
		j.ProcessedChunks = 0
		j.TotalChunks = 0
		j.LanguageStatuses[lang] = jobs.LanguageStatus{Status: startStatus, Draft: true}
	})
	if !ok {
		return fmt.Errorf("job %s is no longer updatable", jobID)
	}

	text := job.InputText
	if needsTranslation {
		translated, err := p.translator.Translate(ctx, text, sourceLang, lang)
		if err != nil {
			return stageErr(StageTranslate, lang, err)
		}
		text = translated

		// narration polish only applies to text we translated ourselves
		if p.enhancer != nil {
			p.setLanguageStatus(jobID, lang, jobs.StatusEnhancing)
			enhanced, err := p.enhancer.Enhance(ctx, text, lang)
			if err != nil {
				log.Warn("Job %s: enhancement skipped: %v", jobID, stageErr(StageEnhance, lang, err))
			} else if enhanced != "" {
				text = enhanced
			}
		}
	}

	chunks := SplitText(text, p.cfg.ChunkSize)
	p.queue.Update(jobID, func(j *jobs.AudioJob) {
		j.Status = jobs.StatusGeneratingAudio
		j.LanguageStatuses[lang] = jobs.LanguageStatus{Status: jobs.StatusGeneratingAudio, Draft: true}
		j.TotalChunks = len(chunks)
		j.ProcessedChunks = 0
	})

	voice := job.Config.VoiceID
	if voice == "" {
		voice = speech.VoiceForLanguage(lang, p.cfg.DefaultVoice)
	}
	speed := job.Config.Speed
	if speed <= 0 {
		speed = p.cfg.Speed
	}

	buffers := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 && p.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return stageErr(StageSynthesize, lang, ctx.Err())
			case <-time.After(p.cfg.ChunkDelay):
			}
		}
		audio, err := p.synth.Synthesize(ctx, chunk, voice, speed)
		if err != nil {
			return stageErr(StageSynthesize, lang, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
		}
		buffers = append(buffers, audio)
		p.queue.Update(jobID, func(j *jobs.AudioJob) {
			j.ProcessedChunks = i + 1
		})
	}

	merged, err := ConcatAudio(buffers)
	if err != nil {
		return stageErr(StageConcat, lang, err)
	}

	p.setLanguageStatus(jobID, lang, jobs.StatusStoringFiles)

	cues := subtitle.Build(text, speed)
	srt := subtitle.FormatSRT(cues)
	vtt := subtitle.FormatVTT(cues)

	audioURL, err := p.artifacts.SaveAudio(ctx, jobID, lang, merged)
	if err != nil {
		return stageErr(StageStore, lang, err)
	}
	subURLs, srtPath, vttPath, err := p.artifacts.SaveSubtitles(ctx, jobID, lang, srt, vtt)
	if err != nil {
		return stageErr(StageStore, lang, err)
	}

	if p.records != nil {
		rec := integrity.Record{
			JobID:     jobID,
			Language:  lang,
			SRTPath:   srtPath,
			VTTPath:   vttPath,
			SRTHash:   integrity.HashText(srt),
			VTTHash:   integrity.HashText(vtt),
			CreatedAt: time.Now(),
		}
		// without the record the nightly verifier would never see these
		// files, so storage is not durable until the record exists
		if err := p.records.PutRecord(ctx, rec); err != nil {
			return stageErr(StageStore, lang, fmt.Errorf("integrity record: %w", err))
		}
	}

	p.queue.Update(jobID, func(j *jobs.AudioJob) {
		j.AudioURLs[lang] = audioURL
		j.SubtitleURLs[lang] = subURLs
		j.CompletedLanguages = append(j.CompletedLanguages, lang)
		j.LanguageStatuses[lang] = jobs.LanguageStatus{Status: jobs.StatusComplete}
		j.CurrentLanguage = ""
		j.ProcessedChunks = 0
		j.TotalChunks = 0
	})
	log.Info("Job %s language %s complete: %d chunk(s), %d audio bytes", jobID, lang, len(chunks), len(merged))
	return nil
}

func (p *Processor) setLanguageStatus(jobID, lang string, status jobs.Status) {
	p.queue.Update(jobID, func(j *jobs.AudioJob) {
		j.Status = status
		j.LanguageStatuses[lang] = jobs.LanguageStatus{Status: status, Draft: true}
	})
}
