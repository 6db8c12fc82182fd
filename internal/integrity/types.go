package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RecordStatus is the verification state of one stored subtitle file.
type RecordStatus string

const (
	// RecordPending has never been verified.
	RecordPending RecordStatus = "pending"
	// RecordVerified matched its hash on the last check.
	RecordVerified RecordStatus = "verified"
	// RecordFailed mismatched once and stays failed until an operator
	// intervenes. Failed records are never re-verified.
	RecordFailed RecordStatus = "failed"
)

// Record ties the stored subtitle files of one (job, language) pair to the
// hashes of the content that was written, so nightly runs can detect
// corruption or tampering. A record verifies only when every present format
// matches.
type Record struct {
	ID            int64        `json:"id"`
	JobID         string       `json:"job_id"`
	Language      string       `json:"language"`
	SRTPath       string       `json:"srt_path"`
	VTTPath       string       `json:"vtt_path"`
	SRTHash       string       `json:"srt_hash"`
	VTTHash       string       `json:"vtt_hash"`
	Status        RecordStatus `json:"status"`
	LastCheckedAt time.Time    `json:"last_checked_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Summary reports one verification run.
type Summary struct {
	TotalChecked  int `json:"totalChecked"`
	VerifiedCount int `json:"verifiedCount"`
	FailedCount   int `json:"failedCount"`
	AlertsSent    int `json:"alertsSent"`
}

// HashText returns the hex SHA-256 of text, the canonical artifact hash.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
