// Package draftcache keeps in-flight wizard drafts between requests, keyed
// by session. Drafts are unvalidated and never authoritative: the database
// holds validated and locked sections.
package draftcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// ErrInvalidSessionID is returned for ids that cannot key a cache entry.
var ErrInvalidSessionID = errors.New("invalid session id")

// Entry is the cached wizard state of one session.
type Entry struct {
	SessionID string                               `json:"session_id" yaml:"session_id"`
	Drafts    map[models.SectionKind]models.Draft `json:"drafts" yaml:"drafts"`
	// Step is the section the author last had open.
	Step    models.SectionKind `json:"step,omitempty" yaml:"step,omitempty"`
	SavedAt time.Time          `json:"saved_at" yaml:"saved_at"`
}

// Cache stores one Entry per session.
type Cache interface {
	// Load returns the entry for sessionID, or nil, nil if there is none.
	Load(ctx context.Context, sessionID string) (*Entry, error)
	// Save replaces the entry for e.SessionID.
	Save(ctx context.Context, e *Entry) error
	// Clear removes the entry for sessionID. Clearing a missing entry is not an error.
	Clear(ctx context.Context, sessionID string) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Entry)}
}

// Load implements Cache.
func (c *MemoryCache) Load(_ context.Context, sessionID string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sessionID]
	if !ok {
		return nil, nil
	}
	return e.clone(), nil
}

// Save implements Cache.
func (c *MemoryCache) Save(_ context.Context, e *Entry) error {
	if err := validID(e.SessionID); err != nil {
		return err
	}
	stored := e.clone()
	if stored.SavedAt.IsZero() {
		stored.SavedAt = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.SessionID] = stored
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

func (e *Entry) clone() *Entry {
	out := *e
	out.Drafts = make(map[models.SectionKind]models.Draft, len(e.Drafts))
	for k, d := range e.Drafts {
		if d.Results != nil {
			d.Results = append([]models.ResultDraft(nil), d.Results...)
		}
		out.Drafts[k] = d
	}
	return &out
}

func validID(id string) error {
	if id == "" {
		return ErrInvalidSessionID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrInvalidSessionID
		}
	}
	return nil
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*FileCache)(nil)
)
