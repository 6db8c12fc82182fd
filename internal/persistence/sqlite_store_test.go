package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mthorvald/audiogen/internal/integrity"
	"github.com/mthorvald/audiogen/internal/jobs"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJobRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &jobs.AudioJob{
		ID:                 "job-1",
		Source:             "api",
		InputText:          "hello world",
		Languages:          []string{"es", "hi"},
		CompletedLanguages: []string{"es"},
		LanguageStatuses: map[string]jobs.LanguageStatus{
			"es": {Status: jobs.StatusComplete},
			"hi": {Status: jobs.StatusPending, Draft: true},
		},
		Status:    jobs.StatusProcessing,
		AudioURLs: map[string]string{"es": "http://example.com/files/audio/job-1/es.mp3"},
		SubtitleURLs: map[string]jobs.SubtitleURLs{
			"es": {SRT: "http://example.com/s.srt", VTT: "http://example.com/s.vtt"},
		},
		CreatedAt: time.Now().Truncate(time.Second),
		UpdatedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobs.StatusProcessing, got.Status)
	assert.Equal(t, []string{"es"}, got.CompletedLanguages)
	assert.Equal(t, job.AudioURLs, got.AudioURLs)
	assert.Equal(t, job.SubtitleURLs, got.SubtitleURLs)
	assert.Equal(t, jobs.StatusPending, got.LanguageStatuses["hi"].Status)
}

func TestJobUpsertReplacesAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &jobs.AudioJob{ID: "job-1", Status: jobs.StatusPending}
	require.NoError(t, store.UpsertJob(ctx, job))

	job.Status = jobs.StatusComplete
	require.NoError(t, store.UpsertJob(ctx, job))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, jobs.StatusComplete, loaded[0].Status)

	require.NoError(t, store.DeleteJob(ctx, "job-1"))
	loaded, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestIntegrityRecordLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)

	require.NoError(t, store.PutRecord(ctx, integrity.Record{
		JobID: "job-1", Language: "es",
		SRTPath: "subs/job-1/es.srt", VTTPath: "subs/job-1/es.vtt",
		SRTHash: "abc123", VTTHash: "def456",
	}))

	due, err := store.DueRecords(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, integrity.RecordPending, due[0].Status)
	assert.Equal(t, "abc123", due[0].SRTHash)
	assert.Equal(t, "def456", due[0].VTTHash)

	// verified records are not due until the cutoff passes
	require.NoError(t, store.MarkRecord(ctx, due[0].ID, integrity.RecordVerified, time.Now()))
	due, err = store.DueRecords(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, store.MarkRecord(ctx, 1, integrity.RecordVerified, time.Now().Add(-48*time.Hour)))
	due, err = store.DueRecords(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// failed records are sticky
	require.NoError(t, store.MarkRecord(ctx, due[0].ID, integrity.RecordFailed, time.Now().Add(-48*time.Hour)))
	due, err = store.DueRecords(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPutRecordResetsOnRewrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)

	rec := integrity.Record{
		JobID: "job-1", Language: "es",
		SRTPath: "subs/job-1/es.srt", VTTPath: "subs/job-1/es.vtt",
		SRTHash: "old-hash", VTTHash: "old-hash",
	}
	require.NoError(t, store.PutRecord(ctx, rec))

	due, err := store.DueRecords(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, store.MarkRecord(ctx, due[0].ID, integrity.RecordFailed, time.Now()))

	// rewriting the artifacts re-registers them with fresh hashes
	rec.SRTHash = "new-hash"
	require.NoError(t, store.PutRecord(ctx, rec))

	due, err = store.DueRecords(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "new-hash", due[0].SRTHash)
	assert.Equal(t, integrity.RecordPending, due[0].Status)
}

func TestDueRecordsHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, lang := range []string{"es", "hi", "fr"} {
		require.NoError(t, store.PutRecord(ctx, integrity.Record{
			JobID: "job-1", Language: lang,
			SRTPath: "subs/job-1/" + lang + ".srt", SRTHash: "h",
		}))
	}

	due, err := store.DueRecords(ctx, time.Now(), 2)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertJob(context.Background(), &jobs.AudioJob{ID: "job-1", Status: jobs.StatusPending}))
	require.NoError(t, store.Close())

	// reopening must not re-run migrations or lose data
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.LoadJobs(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
