package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

const sessionColumns = `id, owner_id, user_name, communication_mode, pathway, intent, deadline, committed_at, created_at, updated_at`

// CreateSession creates a new session.
func (db *DB) CreateSession(s *models.Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.OwnerID, s.UserName, string(s.Mode), string(s.Pathway), s.Intent,
		nullableDate(s.Deadline), nullableTime(s.CommittedAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. It returns nil, nil if the session
// does not exist.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// UpdateSession writes the session metadata. Commit state is only changed
// by CommitSession.
func (db *DB) UpdateSession(s *models.Session) error {
	result, err := db.Exec(`
		UPDATE sessions
		SET user_name = ?, communication_mode = ?, pathway = ?, intent = ?, deadline = ?, updated_at = ?
		WHERE id = ?
	`, s.UserName, string(s.Mode), string(s.Pathway), s.Intent, nullableDate(s.Deadline), formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// CommitSession sets committed_at once. A second commit fails with
// ErrCommitted.
func (db *DB) CommitSession(id string, at time.Time) error {
	return db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE sessions SET committed_at = ?, updated_at = ?
			WHERE id = ? AND committed_at IS NULL
		`, formatTime(at), formatTime(at), id)
		if err != nil {
			return fmt.Errorf("commit session: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 1 {
			return nil
		}

		var exists int
		err = tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("commit session: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("commit session %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("commit session %s: %w", id, ErrCommitted)
	})
}

// DeleteSession deletes a session and everything it owns.
func (db *DB) DeleteSession(id string) error {
	result, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSessions lists sessions newest first. An empty ownerID lists all.
func (db *DB) ListSessions(ownerID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var s models.Session
	var mode, pathway, createdAt, updatedAt string
	var deadline, committedAt sql.NullString

	err := row.Scan(&s.ID, &s.OwnerID, &s.UserName, &mode, &pathway, &s.Intent,
		&deadline, &committedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Mode = models.CommunicationMode(mode)
	s.Pathway = models.Pathway(pathway)
	s.Deadline = parseNullableDate(deadline)
	s.CommittedAt = parseNullableTime(committedAt)
	s.CreatedAt, _ = parseTime(createdAt)
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

func nullableDate(d *models.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullableDate(s sql.NullString) *models.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := models.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}
