package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mthorvald/audiogen/internal/broadcast"
	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/internal/translate"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *jobs.Queue) {
	t.Helper()
	queue := jobs.NewQueue(1, nil)
	watcher := broadcast.NewWatcher(queue, 10*time.Millisecond)
	notifier := broadcast.NewNotifier(watcher, time.Second)
	return NewServer(queue, watcher, notifier, opts...), queue
}

func postJob(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, WithCacheStats(func() translate.CacheStats {
		return translate.CacheStats{Entries: 3, Hits: 7, Misses: 2}
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
	assert.Contains(t, rec.Body.String(), `"hits":7`)
}

func TestCreateJob(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJob(t, srv, `{"text":"hello world","languages":["es","hi"],"source_language":"en"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, float64(0), resp["progress"])
}

func TestCreateJobValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := map[string]string{
		"not json":           `{`,
		"missing text":       `{"languages":["es"]}`,
		"missing languages":  `{"text":"hi"}`,
		"empty language":     `{"text":"hi","languages":[""]}`,
		"duplicate language": `{"text":"hi","languages":["es","es"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJob(t, srv, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateJobDedupe(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"text":"hello","languages":["es"],"dedupe_key":"article-7"}`

	first := postJob(t, srv, body)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postJob(t, srv, body)
	require.Equal(t, http.StatusOK, second.Code, "dedupe hit returns the existing job")

	var a, b map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a["id"], b["id"])
}

func TestJobStatus(t *testing.T) {
	srv, queue := newTestServer(t)
	job, _ := queue.Enqueue(jobs.EnqueueRequest{InputText: "hi", Languages: []string{"es"}})

	req := httptest.NewRequest(http.MethodGet, "/api/status/"+job.ID, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp["id"])

	req = httptest.NewRequest(http.MethodGet, "/api/status/nope", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	srv, queue := newTestServer(t)
	queue.Enqueue(jobs.EnqueueRequest{InputText: "one", Languages: []string{"es"}})
	queue.Enqueue(jobs.EnqueueRequest{InputText: "two", Languages: []string{"hi"}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestVerifyDisabled(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/verify", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestFilesServing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "audio", "j1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio", "j1", "es.mp3"), []byte("mp3data"), 0o644))

	srv, _ := newTestServer(t, WithFilesRoot(dir))

	req := httptest.NewRequest(http.MethodGet, "/files/audio/j1/es.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp3data", rec.Body.String())
}

func TestStreamDeliversEvents(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	watcher := broadcast.NewWatcher(queue, 10*time.Millisecond)
	notifier := broadcast.NewNotifier(watcher, time.Second)
	srv := NewServer(queue, watcher, notifier)

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	job, _ := queue.Enqueue(jobs.EnqueueRequest{InputText: "hi", Languages: []string{"es"}})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/stream/"+job.ID+"?correlation_id=corr-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() broadcast.Event {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var ev broadcast.Event
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
				return ev
			}
		}
	}

	first := readEvent()
	assert.Equal(t, jobs.StatusPending, first.Status)
	assert.Equal(t, "corr-1", first.CorrelationID)

	queue.Update(job.ID, func(j *jobs.AudioJob) {
		j.Status = jobs.StatusComplete
		j.CompletedLanguages = append(j.CompletedLanguages, "es")
	})

	final := readEvent()
	assert.True(t, final.Final)
	assert.Equal(t, jobs.StatusComplete, final.Status)
}

func TestStreamLanguageFilter(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	watcher := broadcast.NewWatcher(queue, 10*time.Millisecond)
	srv := NewServer(queue, watcher, broadcast.NewNotifier(watcher, time.Second))

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	job, _ := queue.Enqueue(jobs.EnqueueRequest{InputText: "hi", Languages: []string{"es", "hi"}})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/stream/"+job.ID+"?language=hi", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readEvent := func() broadcast.Event {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var ev broadcast.Event
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
				return ev
			}
		}
	}

	// the initial pending event has no language and is filtered out; an es
	// update is filtered too, so the first event seen is for hi
	queue.Update(job.ID, func(j *jobs.AudioJob) {
		j.Status = jobs.StatusTranslating
		j.CurrentLanguage = "es"
	})
	queue.Update(job.ID, func(j *jobs.AudioJob) {
		j.Status = jobs.StatusTranslating
		j.CurrentLanguage = "hi"
	})

	ev := readEvent()
	assert.Equal(t, "hi", ev.Language)
}

func TestStreamUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
