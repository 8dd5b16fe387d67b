package draftcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// FileCache stores each entry as <dir>/<session-id>.yaml.
type FileCache struct {
	dir string
}

// NewFileCache creates a file cache rooted at dir, creating dir if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create draft cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(sessionID string) string {
	return filepath.Join(c.dir, sessionID+".yaml")
}

// Load implements Cache.
func (c *FileCache) Load(_ context.Context, sessionID string) (*Entry, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read draft %s: %w", sessionID, err)
	}

	var e Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", sessionID, err)
	}
	return &e, nil
}

// Save implements Cache. The file is replaced atomically.
func (c *FileCache) Save(_ context.Context, e *Entry) error {
	if err := validID(e.SessionID); err != nil {
		return err
	}
	out := e.clone()
	if out.SavedAt.IsZero() {
		out.SavedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", e.SessionID, err)
	}

	tmp, err := os.CreateTemp(c.dir, e.SessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("write draft %s: %w", e.SessionID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write draft %s: %w", e.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write draft %s: %w", e.SessionID, err)
	}
	if err := os.Rename(tmp.Name(), c.path(e.SessionID)); err != nil {
		return fmt.Errorf("write draft %s: %w", e.SessionID, err)
	}
	return nil
}

// Clear implements Cache.
func (c *FileCache) Clear(_ context.Context, sessionID string) error {
	if err := validID(sessionID); err != nil {
		return err
	}
	if err := os.Remove(c.path(sessionID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear draft %s: %w", sessionID, err)
	}
	return nil
}
