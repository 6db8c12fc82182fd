package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/mthorvald/audiogen/internal/broadcast"
	"github.com/mthorvald/audiogen/internal/integrity"
	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/internal/translate"
	"github.com/mthorvald/audiogen/pkg/log"
)

// Server exposes the job API, the status stream and stored artifacts.
type Server struct {
	addr       string
	queue      *jobs.Queue
	watcher    *broadcast.Watcher
	notifier   *broadcast.Notifier
	verify     *integrity.Service
	filesRoot  string
	cacheStats func() translate.CacheStats
	httpServer *http.Server
}

// Option is a function type for configuring Server
type Option func(*Server)

func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithFilesRoot serves the given directory under /files/.
func WithFilesRoot(root string) Option {
	return func(s *Server) { s.filesRoot = root }
}

// WithVerifyService enables the manual POST /api/verify trigger.
func WithVerifyService(svc *integrity.Service) Option {
	return func(s *Server) { s.verify = svc }
}

// WithCacheStats surfaces translation cache counters on the health endpoint.
func WithCacheStats(fn func() translate.CacheStats) Option {
	return func(s *Server) { s.cacheStats = fn }
}

func NewServer(queue *jobs.Queue, watcher *broadcast.Watcher, notifier *broadcast.Notifier, opts ...Option) *Server {
	s := &Server{
		addr:     ":8080",
		queue:    queue,
		watcher:  watcher,
		notifier: notifier,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/status/{jobId}", s.handleJobStatus)
	mux.HandleFunc("GET /api/stream/{jobId}", s.handleStream)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	if s.filesRoot != "" {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesRoot))))
	}

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log.Info("HTTP server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
