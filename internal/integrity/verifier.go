package integrity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mthorvald/audiogen/pkg/log"
)

// RecordStore persists integrity records. Due selection returns pending
// records plus verified ones whose last check is older than the cutoff;
// failed records are sticky and never come back.
type RecordStore interface {
	PutRecord(ctx context.Context, rec Record) error
	DueRecords(ctx context.Context, recheckBefore time.Time, limit int) ([]Record, error)
	MarkRecord(ctx context.Context, id int64, status RecordStatus, checkedAt time.Time) error
}

// FileReader loads a stored artifact by its relative path.
type FileReader interface {
	Read(rel string) ([]byte, error)
}

// Verifier re-hashes stored subtitle files against their records. A mismatch
// or unreadable file marks the record failed and fires the alert webhook.
type Verifier struct {
	records      RecordStore
	files        FileReader
	batchSize    int
	recheckAfter time.Duration
	alertURL     string
	client       *http.Client
}

func NewVerifier(records RecordStore, files FileReader, batchSize int, recheckAfter time.Duration, alertURL string, timeout time.Duration) *Verifier {
	if batchSize <= 0 {
		batchSize = 100
	}
	if recheckAfter <= 0 {
		recheckAfter = 24 * time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Verifier{
		records:      records,
		files:        files,
		batchSize:    batchSize,
		recheckAfter: recheckAfter,
		alertURL:     alertURL,
		client:       &http.Client{Timeout: timeout},
	}
}

// RunOnce verifies one batch of due records and returns the run summary.
func (v *Verifier) RunOnce(ctx context.Context) (Summary, error) {
	cutoff := time.Now().Add(-v.recheckAfter)
	due, err := v.records.DueRecords(ctx, cutoff, v.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("loading due records: %w", err)
	}

	var summary Summary
	now := time.Now()
	for _, rec := range due {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.TotalChecked++

		mismatches := v.checkRecord(rec)
		if len(mismatches) == 0 {
			summary.VerifiedCount++
			if err := v.records.MarkRecord(ctx, rec.ID, RecordVerified, now); err != nil {
				log.Error("Failed to mark record %d verified: %v", rec.ID, err)
			}
			continue
		}

		summary.FailedCount++
		if err := v.records.MarkRecord(ctx, rec.ID, RecordFailed, now); err != nil {
			log.Error("Failed to mark record %d failed: %v", rec.ID, err)
		}
		if v.sendAlert(ctx, rec, mismatches) {
			summary.AlertsSent++
		}
	}

	log.Info("Integrity run: checked=%d verified=%d failed=%d alerts=%d",
		summary.TotalChecked, summary.VerifiedCount, summary.FailedCount, summary.AlertsSent)
	return summary, nil
}

// FormatMismatch describes one subtitle format that failed verification.
type FormatMismatch struct {
	Format   string `json:"format"`
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// checkRecord verifies every format the record carries. All present formats
// must match for the record to verify.
func (v *Verifier) checkRecord(rec Record) []FormatMismatch {
	type target struct {
		format   string
		path     string
		expected string
	}
	targets := make([]target, 0, 2)
	if rec.SRTPath != "" {
		targets = append(targets, target{"srt", rec.SRTPath, rec.SRTHash})
	}
	if rec.VTTPath != "" {
		targets = append(targets, target{"vtt", rec.VTTPath, rec.VTTHash})
	}

	var mismatches []FormatMismatch
	for _, tg := range targets {
		actual, err := v.hashFile(tg.path)
		if err != nil {
			log.Error("Integrity check cannot read %s (job %s, %s %s): %v", tg.path, rec.JobID, rec.Language, tg.format, err)
			mismatches = append(mismatches, FormatMismatch{Format: tg.format, Path: tg.path, Expected: tg.expected})
			continue
		}
		if actual != tg.expected {
			log.Error("Integrity mismatch for %s (job %s, %s %s): expected %s, actual %s", tg.path, rec.JobID, rec.Language, tg.format, tg.expected, actual)
			mismatches = append(mismatches, FormatMismatch{Format: tg.format, Path: tg.path, Expected: tg.expected, Actual: actual})
			continue
		}
		log.Debug("Integrity ok for %s: %s", tg.path, actual)
	}
	return mismatches
}

func (v *Verifier) hashFile(rel string) (string, error) {
	data, err := v.files.Read(rel)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

type alertPayload struct {
	JobID      string           `json:"jobId"`
	Language   string           `json:"language"`
	Mismatches []FormatMismatch `json:"mismatches"`
	Timestamp  string           `json:"timestamp"`
}

// sendAlert makes one delivery attempt; alerting is best effort and a failed
// POST is only logged.
func (v *Verifier) sendAlert(ctx context.Context, rec Record, mismatches []FormatMismatch) bool {
	if v.alertURL == "" {
		return false
	}

	payload := alertPayload{
		JobID:      rec.JobID,
		Language:   rec.Language,
		Mismatches: mismatches,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to encode integrity alert: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.alertURL, bytes.NewReader(body))
	if err != nil {
		log.Error("Failed to build integrity alert request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		log.Error("Integrity alert delivery failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Error("Integrity alert endpoint returned %d", resp.StatusCode)
		return false
	}
	return true
}
