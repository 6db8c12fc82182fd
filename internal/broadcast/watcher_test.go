package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mthorvald/audiogen/internal/jobs"
)

type fakeReader struct {
	mu  sync.Mutex
	job *jobs.AudioJob
}

func (f *fakeReader) Get(id string) (*jobs.AudioJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.job == nil || f.job.ID != id {
		return nil, false
	}
	snapshot := *f.job
	return &snapshot, true
}

func (f *fakeReader) set(mutate func(j *jobs.AudioJob)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.job)
}

func pendingJob(id string) *jobs.AudioJob {
	return &jobs.AudioJob{
		ID:        id,
		Status:    jobs.StatusPending,
		Languages: []string{"es"},
		AudioURLs: map[string]string{},
	}
}

func TestWatchUnknownJob(t *testing.T) {
	w := NewWatcher(&fakeReader{}, 10*time.Millisecond)
	_, err := w.Watch(context.Background(), "missing", "")
	require.Error(t, err)
}

func TestWatchEmitsInitialAndChanges(t *testing.T) {
	reader := &fakeReader{job: pendingJob("j1")}
	w := NewWatcher(reader, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := w.Watch(ctx, "j1", "corr-1")
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, jobs.StatusPending, first.Status)
	assert.Equal(t, "corr-1", first.CorrelationID)
	assert.False(t, first.Final)

	reader.set(func(j *jobs.AudioJob) {
		j.Status = jobs.StatusTranslating
		j.CurrentLanguage = "es"
	})
	second := <-events
	assert.Equal(t, jobs.StatusTranslating, second.Status)
	assert.Equal(t, "es", second.Language)

	reader.set(func(j *jobs.AudioJob) {
		j.Status = jobs.StatusComplete
		j.CompletedLanguages = []string{"es"}
		j.AudioURLs["es"] = "http://example.com/files/audio/j1/es.mp3"
	})
	final := <-events
	assert.True(t, final.Final)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "http://example.com/files/audio/j1/es.mp3", final.AudioURLs["es"])

	_, open := <-events
	assert.False(t, open, "channel closes after the final event")
}

func TestWatchSkipsUnchangedPolls(t *testing.T) {
	reader := &fakeReader{job: pendingJob("j1")}
	w := NewWatcher(reader, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Watch(ctx, "j1", "")
	require.NoError(t, err)

	<-events
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for unchanged job: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchTerminalJobEmitsOnceAndCloses(t *testing.T) {
	job := pendingJob("j1")
	job.Status = jobs.StatusFailed
	job.ErrorMessage = "synthesis exploded"
	reader := &fakeReader{job: job}
	w := NewWatcher(reader, 5*time.Millisecond)

	events, err := w.Watch(context.Background(), "j1", "")
	require.NoError(t, err)

	ev := <-events
	assert.True(t, ev.Final)
	assert.Equal(t, "synthesis exploded", ev.ErrorMessage)

	_, open := <-events
	assert.False(t, open)
}

func TestNotifierDeliversEveryEvent(t *testing.T) {
	received := make(chan Event, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	job := pendingJob("j1")
	reader := &fakeReader{job: job}
	watcher := NewWatcher(reader, 5*time.Millisecond)
	notifier := NewNotifier(watcher, time.Second)

	done := make(chan struct{})
	go func() {
		notifier.Deliver(context.Background(), "j1", server.URL, "corr-9")
		close(done)
	}()

	first := <-received
	assert.Equal(t, jobs.StatusPending, first.Status)
	assert.Equal(t, "corr-9", first.CorrelationID)

	reader.set(func(j *jobs.AudioJob) {
		j.Status = jobs.StatusComplete
		j.CompletedLanguages = []string{"es"}
	})

	select {
	case ev := <-received:
		assert.True(t, ev.Final)
		assert.Equal(t, "j1", ev.JobID)
	case <-time.After(3 * time.Second):
		t.Fatal("terminal callback was not delivered")
	}
	<-done
}

func TestNotifierSurvivesEndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	job := pendingJob("j1")
	job.Status = jobs.StatusComplete
	reader := &fakeReader{job: job}
	notifier := NewNotifier(NewWatcher(reader, 5*time.Millisecond), time.Second)

	done := make(chan struct{})
	go func() {
		notifier.Deliver(context.Background(), "j1", server.URL, "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("delivery goroutine did not finish after endpoint failure")
	}
}
