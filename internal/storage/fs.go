package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/pkg/log"
)

// FileStore writes artifacts under a data directory and maps them to public
// URLs served from /files/. Layout:
//
//	{dataDir}/audio/{jobID}/{lang}.mp3
//	{dataDir}/subs/{jobID}/{lang}.srt
//	{dataDir}/subs/{jobID}/{lang}.vtt
type FileStore struct {
	dataDir string
	baseURL string
}

func NewFileStore(dataDir, publicBaseURL string) (*FileStore, error) {
	for _, sub := range []string{"audio", "subs"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", sub, err)
		}
	}
	return &FileStore{
		dataDir: dataDir,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Root returns the directory whose contents are served under /files/.
func (s *FileStore) Root() string {
	return s.dataDir
}

func (s *FileStore) SaveAudio(_ context.Context, jobID, language string, data []byte) (string, error) {
	rel := filepath.Join("audio", jobID, language+".mp3")
	if err := s.writeFile(rel, data); err != nil {
		return "", err
	}
	log.Debug("Stored audio %s (%d bytes)", rel, len(data))
	return s.publicURL(rel), nil
}

func (s *FileStore) SaveSubtitles(_ context.Context, jobID, language, srt, vtt string) (jobs.SubtitleURLs, string, string, error) {
	srtRel := filepath.Join("subs", jobID, language+".srt")
	vttRel := filepath.Join("subs", jobID, language+".vtt")

	if err := s.writeFile(srtRel, []byte(srt)); err != nil {
		return jobs.SubtitleURLs{}, "", "", err
	}
	if err := s.writeFile(vttRel, []byte(vtt)); err != nil {
		return jobs.SubtitleURLs{}, "", "", err
	}

	urls := jobs.SubtitleURLs{
		SRT: s.publicURL(srtRel),
		VTT: s.publicURL(vttRel),
	}
	return urls, srtRel, vttRel, nil
}

// Read returns a stored artifact by its relative path. Paths escaping the
// data directory are rejected.
func (s *FileStore) Read(rel string) ([]byte, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func (s *FileStore) writeFile(rel string, data []byte) error {
	abs, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	// write-then-rename so readers never see partial files
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

func (s *FileStore) resolve(rel string) (string, error) {
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid artifact path %q", rel)
	}
	return filepath.Join(s.dataDir, clean), nil
}

func (s *FileStore) publicURL(rel string) string {
	return s.baseURL + "/files/" + filepath.ToSlash(rel)
}
