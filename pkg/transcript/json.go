package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// JSONStore implements Store using a single JSON file.
// Every mutation rewrites the file atomically (temp file + rename), so a crash
// leaves either the previous or the new transcript on disk, never a torn one.
type JSONStore struct {
	path     string
	sessions map[string]*sessionLog
	closed   bool
	mu       sync.RWMutex
}

type sessionLog struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int           `json:"version"`
	UpdatedAt string        `json:"updated_at"`
	Sessions  []*sessionLog `json:"sessions"`
}

const currentVersion = 1

// NewJSONStore opens (or prepares) a store at path.
// The file is created on the first mutation.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:     path,
		sessions: make(map[string]*sessionLog),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("transcript: load store: %w", err)
		}
	}

	return store, nil
}

// NewDefaultStore opens the store at ~/.interview/transcripts.json.
func NewDefaultStore() (*JSONStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("transcript: home directory: %w", err)
	}
	return NewJSONStore(filepath.Join(homeDir, ".interview", "transcripts.json"))
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	if stored.Version > currentVersion {
		return fmt.Errorf("unsupported store version %d", stored.Version)
	}

	s.sessions = make(map[string]*sessionLog, len(stored.Sessions))
	for _, log := range stored.Sessions {
		s.sessions[log.ID] = log
	}
	return nil
}

// save writes the store to disk. Callers hold the write lock.
func (s *JSONStore) save() error {
	logs := make([]*sessionLog, 0, len(s.sessions))
	for _, log := range s.sessions {
		logs = append(logs, log)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID < logs[j].ID })

	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Sessions:  logs,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("transcript: marshal JSON: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("transcript: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("transcript: rename temp file: %w", err)
	}
	return nil
}

// Append commits a turn. If persisting fails the turn is rolled back so memory
// and disk never disagree.
func (s *JSONStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	if err := checkAppend(sessionID, turn); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	log, ok := s.sessions[sessionID]
	if !ok {
		log = &sessionLog{ID: sessionID}
		s.sessions[sessionID] = log
	}
	prevUpdated := log.UpdatedAt
	log.Turns = append(log.Turns, turn)
	log.UpdatedAt = turn.Timestamp

	if err := s.save(); err != nil {
		log.Turns = log.Turns[:len(log.Turns)-1]
		log.UpdatedAt = prevUpdated
		if len(log.Turns) == 0 && !ok {
			delete(s.sessions, sessionID)
		}
		return err
	}
	return nil
}

// All returns a copy of the session's turns.
func (s *JSONStore) All(ctx context.Context, sessionID string) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	log, ok := s.sessions[sessionID]
	if !ok {
		return []Turn{}, nil
	}
	out := make([]Turn, len(log.Turns))
	copy(out, log.Turns)
	return out, nil
}

// Clear removes the session.
func (s *JSONStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, ok := s.sessions[sessionID]; !ok {
		return nil
	}
	delete(s.sessions, sessionID)
	return s.save()
}

// ClearAll removes every session.
func (s *JSONStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.sessions = make(map[string]*sessionLog)
	return s.save()
}

// Sessions lists stored sessions, most recently updated first.
func (s *JSONStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, log := range s.sessions {
		infos = append(infos, SessionInfo{
			ID:        log.ID,
			Turns:     len(log.Turns),
			UpdatedAt: log.UpdatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Search returns ids of sessions with a turn containing query (case-insensitive).
func (s *JSONStore) Search(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, log := range s.sessions {
		for _, turn := range log.Turns {
			if strings.Contains(strings.ToLower(turn.Text), q) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Close marks the store closed. Data is already on disk.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Verify JSONStore implements Store and Lister at compile time.
var (
	_ Store  = (*JSONStore)(nil)
	_ Lister = (*JSONStore)(nil)
)
