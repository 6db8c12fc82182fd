package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mthorvald/audiogen/pkg/log"
)

// Executor runs one job to completion. A nil return marks the job complete;
// an error marks it failed with the error text as the operator-facing message.
type Executor func(ctx context.Context, job *AudioJob) error

type Queue struct {
	workerCount int
	maxJobs     int
	store       Store

	mu         sync.RWMutex
	jobs       map[string]*AudioJob
	dedupe     map[string]string
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount: workerCount,
		maxJobs:     1000,
		store:       store,
		jobs:        make(map[string]*AudioJob),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

func (q *Queue) Enqueue(req EnqueueRequest) (*AudioJob, bool) {
	now := time.Now()

	q.mu.Lock()
	if req.DedupeKey != "" {
		if id, ok := q.dedupe[req.DedupeKey]; ok {
			if existing, exists := q.jobs[id]; exists {
				snapshot := cloneJob(existing)
				q.mu.Unlock()
				return snapshot, false
			}
			delete(q.dedupe, req.DedupeKey)
		}
	}

	statuses := make(map[string]LanguageStatus, len(req.Languages))
	for _, lang := range req.Languages {
		statuses[lang] = LanguageStatus{Status: StatusPending, Draft: true}
	}

	job := &AudioJob{
		ID:                 uuid.NewString(),
		Source:             req.Source,
		DedupeKey:          req.DedupeKey,
		InputText:          req.InputText,
		SourceLanguage:     req.SourceLanguage,
		Languages:          append([]string(nil), req.Languages...),
		CompletedLanguages: make([]string, 0, len(req.Languages)),
		LanguageStatuses:   statuses,
		Config:             req.Config,
		Status:             StatusPending,
		AudioURLs:          make(map[string]string),
		SubtitleURLs:       make(map[string]SubtitleURLs),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	q.jobs[job.ID] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = job.ID
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(job.ID)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*AudioJob, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.RUnlock()
		return nil, false
	}
	snapshot := cloneJob(job)
	q.mu.RUnlock()
	return snapshot, true
}

func (q *Queue) List() []*AudioJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*AudioJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret
}

// Update applies fn to the job under the queue lock, stamps UpdatedAt, and
// persists the result. Terminal jobs are never modified; completedLanguages
// only grows. Returns the post-update snapshot.
func (q *Queue) Update(id string, fn func(job *AudioJob)) (*AudioJob, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		q.mu.Unlock()
		return nil, false
	}
	completedBefore := len(job.CompletedLanguages)
	fn(job)
	if len(job.CompletedLanguages) < completedBefore {
		// append-only invariant; a misbehaving caller cannot shrink it
		log.Error("Job %s update attempted to shrink completedLanguages; ignored", id)
		job.CompletedLanguages = job.CompletedLanguages[:completedBefore]
	}
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]string, 0)
	for id, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}

			err := exec(context.Background(), job)
			if err != nil {
				q.markFailed(id, err)
				continue
			}
			q.markComplete(id)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

func (q *Queue) markRunning(id string) (*AudioJob, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) markComplete(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	job.Status = StatusComplete
	job.CurrentLanguage = ""
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

func (q *Queue) markFailed(id string, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	job.Status = StatusFailed
	if err != nil {
		job.ErrorMessage = err.Error()
	}
	job.CurrentLanguage = ""
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

func (q *Queue) releaseDedupeLocked(job *AudioJob) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneTerminalJobsLocked() []string {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.jobs))
	for id, job := range q.jobs {
		if job == nil || !job.Status.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.jobs) - q.maxJobs
	if toRemove <= 0 {
		return nil
	}
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		job := q.jobs[id]
		if job != nil {
			q.releaseDedupeLocked(job)
		}
		delete(q.jobs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*AudioJob, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if !job.Status.Terminal() && job.Status != StatusPending {
			// interrupted mid-flight on a previous run; requeue from the top
			job.Status = StatusPending
			job.CurrentLanguage = ""
			job.ProcessedChunks = 0
			job.TotalChunks = 0
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if !job.Status.Terminal() && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
}

func (q *Queue) persistJob(job *AudioJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *AudioJob) *AudioJob {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Languages = append([]string(nil), job.Languages...)
	tmp.CompletedLanguages = append([]string(nil), job.CompletedLanguages...)
	tmp.LanguageStatuses = make(map[string]LanguageStatus, len(job.LanguageStatuses))
	for k, v := range job.LanguageStatuses {
		tmp.LanguageStatuses[k] = v
	}
	tmp.AudioURLs = make(map[string]string, len(job.AudioURLs))
	for k, v := range job.AudioURLs {
		tmp.AudioURLs[k] = v
	}
	tmp.SubtitleURLs = make(map[string]SubtitleURLs, len(job.SubtitleURLs))
	for k, v := range job.SubtitleURLs {
		tmp.SubtitleURLs[k] = v
	}
	return &tmp
}
