package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// SessionStore handles session metadata persistence.
type SessionStore interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	UpdateSession(s *models.Session) error
	CommitSession(id string, at time.Time) error
	DeleteSession(id string) error
	ListSessions(ownerID string) ([]*models.Session, error)
}

// SectionStore handles section persistence. Lock writes are conditional:
// a write to a locked section fails with ErrLocked.
type SectionStore interface {
	GetSection(sessionID string, kind models.SectionKind) (*models.SectionRecord, error)
	UpsertSection(sessionID string, kind models.SectionKind, content string, locked bool) (*models.SectionRecord, error)
	ListResults(sessionID string) ([]models.SectionRecord, error)
	UpsertResults(sessionID string, items []models.ResultDraft, locked bool) ([]models.SectionRecord, error)
	ListSections(sessionID string) ([]models.SectionRecord, error)
}

// ReceiptStore records which drafts passed validation.
type ReceiptStore interface {
	PutReceipt(r models.VerdictReceipt) error
	ListReceipts(sessionID string) ([]models.VerdictReceipt, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is everything the authoring core needs from persistence.
type Store interface {
	io.Closer
	Migrator
	SessionStore
	SectionStore
	ReceiptStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ SessionStore = (*DB)(nil)
	_ SectionStore = (*DB)(nil)
	_ ReceiptStore = (*DB)(nil)
)
