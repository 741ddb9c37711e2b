package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"codechat/internal/chat"
)

// FileStore keeps one JSON file per context identifier.
//
// Layout:
//
//	<root>/<contextKey>.json
//
// where contextKey is a short hash of the identifier, so arbitrary file
// paths map to safe filenames.
type FileStore struct {
	Root string
}

// DefaultRoot prefers the XDG data dir and falls back to ~/.local/share,
// then the temp dir.
func DefaultRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "codechat", "history")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "codechat", "history")
	}
	return filepath.Join(os.TempDir(), "codechat", "history")
}

func NewFileStore(root string) *FileStore {
	if strings.TrimSpace(root) == "" {
		root = DefaultRoot()
	}
	return &FileStore{Root: root}
}

func contextKey(contextID string) string {
	sum := sha256.Sum256([]byte(contextID))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *FileStore) path(contextID string) string {
	return filepath.Join(s.Root, contextKey(contextID)+".json")
}

func (s *FileStore) Save(contextID string, entries []chat.Entry) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}
	if entries == nil {
		entries = []chat.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(contextID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(contextID))
}

func (s *FileStore) Load(contextID string) ([]chat.Entry, error) {
	data, err := os.ReadFile(s.path(contextID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []chat.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) Clear(contextID string) error {
	err := os.Remove(s.path(contextID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) ClearAll() error {
	matches, err := filepath.Glob(filepath.Join(s.Root, "*.json"))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
