// Package storage keeps per-session search output on disk.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	resultFile   = "massive_search.json"
	progressFile = "progress.json"
	lockFile     = "session.lock"
)

var sessionIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ErrNotFound is returned when a session has no stored file of the requested kind
var ErrNotFound = errors.New("not found")

// ValidateSessionID rejects ids that could escape the sessions directory
func ValidateSessionID(sessionID string) error {
	if !sessionIDRegexp.MatchString(sessionID) {
		return fmt.Errorf("invalid session id %q: must match [A-Za-z0-9_-]", sessionID)
	}
	return nil
}

// Store handles filesystem operations for search sessions
type Store struct {
	basePath string
	logger   *logrus.Logger
}

// New creates a store rooted at <dataDir>/sessions
func New(dataDir string, logger *logrus.Logger) (*Store, error) {
	basePath, err := filepath.Abs(filepath.Join(dataDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sessions path: %w", err)
	}
	if err := ensureDir(basePath); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{basePath: basePath, logger: logger}, nil
}

// SessionDir returns the directory holding a session's files
func (s *Store) SessionDir(sessionID string) (string, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, sessionID), nil
}

// SaveResult writes v as massive_search.json for the session
func (s *Store) SaveResult(sessionID string, v any) error {
	return s.writeJSON(sessionID, resultFile, v)
}

// LoadResult reads massive_search.json for the session into v
func (s *Store) LoadResult(sessionID string, v any) error {
	return s.readJSON(sessionID, resultFile, v)
}

// Progress is the last reported step of a running search
type Progress struct {
	SessionID  string    `json:"session_id"`
	Step       int       `json:"step"`
	TotalSteps int       `json:"total_steps"`
	Message    string    `json:"message"`
	Percentage float64   `json:"percentage"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpdateProgress records step of total for the session
func (s *Store) UpdateProgress(sessionID string, step, total int, message string) error {
	p := Progress{
		SessionID:  sessionID,
		Step:       step,
		TotalSteps: total,
		Message:    message,
		UpdatedAt:  time.Now().UTC(),
	}
	if total > 0 {
		p.Percentage = float64(step) / float64(total) * 100
	}
	return s.writeJSON(sessionID, progressFile, p)
}

// Progress returns the last recorded progress for the session
func (s *Store) Progress(sessionID string) (*Progress, error) {
	var p Progress
	if err := s.readJSON(sessionID, progressFile, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) writeJSON(sessionID, name string, v any) error {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return err
	}
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	fileLock := flock.New(filepath.Join(dir, lockFile))
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire write lock on session %s", sessionID)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.WithError(err).Warn("Failed to release write lock")
		}
	}()

	return writeFileAtomic(filepath.Join(dir, name), data)
}

func (s *Store) readJSON(sessionID, name string, v any) error {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	fileLock := flock.New(filepath.Join(dir, lockFile))
	locked, err := fileLock.TryRLock()
	if err != nil {
		return fmt.Errorf("failed to acquire read lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire read lock on session %s", sessionID)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.WithError(err).Warn("Failed to release read lock")
		}
	}()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s for session %s: %w", name, sessionID, ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// ensureDir creates a directory with 0700 permissions if it doesn't exist
func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}

// writeFileAtomic writes data to a file using temp file + rename
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := tmpFile.Chmod(0600); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
