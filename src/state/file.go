package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const stateFileName = "state.json"

// FileStore keeps one state.json per bot under <root>/<bot>/.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "ibots_store"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the base directory.
func (s *FileStore) Root() string { return s.root }

// Dir is the working directory of one bot.
func (s *FileStore) Dir(bot string) string {
	return filepath.Join(s.root, sanitizeSegment(bot))
}

// Path is the state file of one bot.
func (s *FileStore) Path(bot string) string {
	return filepath.Join(s.Dir(bot), stateFileName)
}

func (s *FileStore) Load(_ context.Context, bot string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(bot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	return data, nil
}

// Save writes through a temp file and rename so a crash never leaves a
// truncated document behind.
func (s *FileStore) Save(_ context.Context, bot string, data []byte) error {
	dir := s.Dir(bot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, stateFileName+".*")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(bot)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, bot string) error {
	if err := os.Remove(s.Path(bot)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
