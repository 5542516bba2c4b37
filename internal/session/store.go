package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
	"github.com/mkykode/agentcrew/internal/logging"
)

// FileName is the name of the session data file within a session directory.
const FileName = "session.json"

// Session is the persisted record of one deployment run.
type Session struct {
	ID           string           `json:"id"`
	Name         string           `json:"name,omitempty"`
	DeploymentID string           `json:"deployment_id,omitempty"`
	Prompt       string           `json:"prompt,omitempty"`
	ProjectPath  string           `json:"project_path,omitempty"`
	ConfigPath   string           `json:"config_path,omitempty"`
	Agents       []agent.Snapshot `json:"agents"`
	Results      []Result         `json:"results,omitempty"`
	ExitCode     int              `json:"exit_code"`
	Created      time.Time        `json:"created"`
	LastModified time.Time        `json:"last_modified"`
}

// Result records how one agent fared in the deployment.
type Result struct {
	AgentID  string `json:"agent_id"`
	Attempts int    `json:"attempts,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result returns the recorded result for agentID.
func (s *Session) Result(agentID string) (Result, bool) {
	for _, r := range s.Results {
		if r.AgentID == agentID {
			return r, true
		}
	}
	return Result{}, false
}

// New creates an empty session with a fresh id.
func New(name, projectPath, configPath string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		Name:         name,
		ProjectPath:  projectPath,
		ConfigPath:   configPath,
		Created:      now,
		LastModified: now,
	}
}

// AgentCount returns the number of agents recorded in the session.
func (s *Session) AgentCount() int {
	return len(s.Agents)
}

// StatusCounts tallies recorded agents by status.
func (s *Session) StatusCounts() map[agent.Status]int {
	counts := make(map[agent.Status]int)
	for _, a := range s.Agents {
		counts[a.Status]++
	}
	return counts
}

// Info contains summary information about a stored session.
type Info struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
	AgentCount   int       `json:"agent_count"`
	IsLocked     bool      `json:"is_locked"`
	LockInfo     *Lock     `json:"lock_info,omitempty"`
	Dir          string    `json:"dir"`
}

// Store persists sessions as JSON files, one directory per session.
//
// Layout:
//
//	<dir>/<session-id>/session.json
//	<dir>/<session-id>/session.lock
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates a Store rooted at dir, creating it if needed.
// A nil logger discards log output.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.NewValidationError("session directory is required").WithField("paths.session_dir")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// SessionDir returns the directory that holds the session with the given id.
func (s *Store) SessionDir(id string) string {
	return filepath.Join(s.dir, id)
}

// Save writes the session atomically and bumps LastModified.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil || sess.ID == "" {
		return errors.NewValidationError("session id is required").WithField("id")
	}
	if err := validateID(sess.ID); err != nil {
		return err
	}

	sessDir := s.SessionDir(sess.ID)
	if err := os.MkdirAll(sessDir, 0755); err != nil {
		return errors.NewSessionError("failed to create session directory", err).WithSessionID(sess.ID)
	}

	sess.LastModified = time.Now()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errors.NewSessionError("failed to marshal session", err).WithSessionID(sess.ID)
	}

	if err := atomicWriteFile(filepath.Join(sessDir, FileName), data, 0644); err != nil {
		return errors.NewSessionError("failed to write session", err).WithSessionID(sess.ID)
	}

	s.logger.Debug("session saved", "session_id", sess.ID, "agents", len(sess.Agents))
	return nil
}

// Load reads the session with the given id.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.SessionDir(id), FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewSessionError("failed to load session", errors.ErrSessionNotFound).WithSessionID(id)
		}
		return nil, errors.NewSessionError("failed to read session", err).WithSessionID(id)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.NewSessionError("failed to parse session",
			fmt.Errorf("%w: %w", errors.ErrSessionCorrupted, err)).WithSessionID(id)
	}
	return &sess, nil
}

// Exists reports whether a session file exists for id.
func (s *Store) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.SessionDir(id), FileName))
	return err == nil
}

// Delete removes the session directory. A locked session is not deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}
	if !s.Exists(id) {
		return errors.NewSessionError("failed to delete session", errors.ErrSessionNotFound).WithSessionID(id)
	}
	if lock, locked := IsLocked(s.SessionDir(id)); locked {
		return errors.NewSessionError("failed to delete session",
			fmt.Errorf("%w: PID %d on %s", errors.ErrSessionLocked, lock.PID, lock.Hostname)).WithSessionID(id)
	}
	if err := os.RemoveAll(s.SessionDir(id)); err != nil {
		return errors.NewSessionError("failed to delete session", err).WithSessionID(id)
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// List returns summaries of every readable session, most recently modified
// first. Unreadable sessions are skipped.
func (s *Store) List(ctx context.Context) ([]*Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		sess, err := s.Load(ctx, entry.Name())
		if err != nil {
			s.logger.Debug("skipping unreadable session", "dir", entry.Name(), "error", err)
			continue
		}
		lock, locked := IsLocked(s.SessionDir(sess.ID))
		info := &Info{
			ID:           sess.ID,
			Name:         sess.Name,
			Created:      sess.Created,
			LastModified: sess.LastModified,
			AgentCount:   sess.AgentCount(),
			IsLocked:     locked,
			Dir:          s.SessionDir(sess.ID),
		}
		if locked {
			info.LockInfo = lock
		}
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b *Info) int {
		return b.LastModified.Compare(a.LastModified)
	})
	return infos, nil
}

// Latest loads the most recently modified session.
func (s *Store) Latest(ctx context.Context) (*Session, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.NewSessionError("no sessions found", errors.ErrSessionNotFound)
	}
	return s.Load(ctx, infos[0].ID)
}

// Lock acquires the lock for the session with the given id.
func (s *Store) Lock(id string) (*Lock, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	sessDir := s.SessionDir(id)
	if err := os.MkdirAll(sessDir, 0755); err != nil {
		return nil, errors.NewSessionError("failed to create session directory", err).WithSessionID(id)
	}
	return AcquireLock(sessDir, id, s.logger)
}

// validateID rejects ids that would escape the store directory.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return errors.NewValidationError("invalid session id").WithField("id").WithValue(id)
	}
	return nil
}

// atomicWriteFile writes data to a temporary file in the same directory and
// renames it over path, so readers never see a partial file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
