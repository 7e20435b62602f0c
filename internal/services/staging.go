package services

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"domainpanel/internal/apperr"
)

// StagingStore manages per-deployment staging directories under a single
// root. Each prepared deployment gets root/<fileID>/ holding config.json,
// the site template and deploy.sh. A background sweep removes directories
// older than the TTL; because it goes by directory modtime, leftovers from
// a previous process get cleaned up too.
type StagingStore struct {
	root string
	ttl  time.Duration
	stop chan struct{}
	done chan struct{}
}

func NewStagingStore(root string, ttl time.Duration) (*StagingStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Internal("failed to create staging root", err)
	}
	return &StagingStore{
		root: root,
		ttl:  ttl,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Start launches the background expiry sweep.
func (s *StagingStore) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to finish.
func (s *StagingStore) Stop() {
	close(s.stop)
	<-s.done
}

func (s *StagingStore) sweep() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		slog.Error("staging sweep failed to read root", "root", s.root, "error", err)
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			dir := filepath.Join(s.root, entry.Name())
			if err := os.RemoveAll(dir); err != nil {
				slog.Warn("failed to remove expired staging dir", "dir", dir, "error", err)
				continue
			}
			slog.Info("removed expired staging dir", "dir", dir, "age", time.Since(info.ModTime()).Round(time.Second))
		}
	}
}

// Create allocates the staging directory for fileID.
func (s *StagingStore) Create(fileID string) (string, error) {
	dir := filepath.Join(s.root, fileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Internal("failed to create staging dir", err)
	}
	return dir, nil
}

// Dir returns the staging directory path for fileID without checking
// existence.
func (s *StagingStore) Dir(fileID string) string {
	return filepath.Join(s.root, fileID)
}

// Exists reports whether a staged deployment is still present.
func (s *StagingStore) Exists(fileID string) bool {
	info, err := os.Stat(s.Dir(fileID))
	return err == nil && info.IsDir()
}

// Remove deletes the staging directory. Missing directories are not an
// error.
func (s *StagingStore) Remove(fileID string) error {
	return os.RemoveAll(s.Dir(fileID))
}

// LogPath is where the local copy of a deployment's output is written. It
// lives next to the staging dirs, not inside them, so it survives staging
// cleanup.
func (s *StagingStore) LogPath(fileID string) string {
	return filepath.Join(s.root, fileID+"_deploy.log")
}
