package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// GetSection retrieves the Context or Purpose of a session. It returns
// nil, nil if the section has never been saved. Results are a list; use
// ListResults.
func (db *DB) GetSection(sessionID string, kind models.SectionKind) (*models.SectionRecord, error) {
	if kind != models.SectionContext && kind != models.SectionPurpose {
		return nil, fmt.Errorf("get section: %q is not a single-text section", kind)
	}
	rec, err := getSection(db.QueryRow, sessionID, kind)
	if err != nil {
		return nil, fmt.Errorf("get section: %w", err)
	}
	return rec, nil
}

// UpsertSection saves the Context or Purpose of a session. The first save
// creates the record with attempt_count 1; every later save increments it.
// With locked set the record is locked in the same write. Writes to a locked
// record fail with ErrLocked, so of two concurrent lock attempts only the
// first succeeds.
func (db *DB) UpsertSection(sessionID string, kind models.SectionKind, content string, locked bool) (*models.SectionRecord, error) {
	if kind != models.SectionContext && kind != models.SectionPurpose {
		return nil, fmt.Errorf("upsert section: %q is not a single-text section", kind)
	}

	var rec *models.SectionRecord
	err := db.Transaction(func(tx *sql.Tx) error {
		existing, err := getSection(tx.QueryRow, sessionID, kind)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var lockedAt *time.Time
		if locked {
			lockedAt = &now
		}

		if existing == nil {
			id := uuid.NewString()
			_, err := tx.Exec(`
				INSERT INTO sections (id, session_id, kind, content, locked_at, attempt_count, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			`, id, sessionID, string(kind), content, nullableTime(lockedAt), formatTime(now), formatTime(now))
			if err != nil {
				return err
			}
		} else {
			if existing.Locked() {
				return ErrLocked
			}
			result, err := tx.Exec(`
				UPDATE sections
				SET content = ?, attempt_count = attempt_count + 1, locked_at = ?, updated_at = ?
				WHERE id = ? AND locked_at IS NULL
			`, content, nullableTime(lockedAt), formatTime(now), existing.ID)
			if err != nil {
				return err
			}
			if n, _ := result.RowsAffected(); n == 0 {
				return ErrLocked
			}
		}

		rec, err = getSection(tx.QueryRow, sessionID, kind)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s section: %w", kind, err)
	}
	return rec, nil
}

// ListResults returns the results of a session in sequence order.
func (db *DB) ListResults(sessionID string) ([]models.SectionRecord, error) {
	rows, err := db.Query(`
		SELECT `+resultColumns+` FROM results
		WHERE session_id = ? ORDER BY sequence_order, created_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []models.SectionRecord
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// UpsertResults replaces the unlocked results of a session with items.
// Items with an id already stored are updated (attempt_count incremented);
// others are created with a new id and attempt_count 1. Stored results
// missing from items are deleted. sequence_order follows the item order.
// With locked set every item is locked in the same transaction. If any
// stored result is locked the call fails with ErrLocked.
func (db *DB) UpsertResults(sessionID string, items []models.ResultDraft, locked bool) ([]models.SectionRecord, error) {
	var out []models.SectionRecord
	err := db.Transaction(func(tx *sql.Tx) error {
		existing, err := listResultsTx(tx, sessionID)
		if err != nil {
			return err
		}
		byID := make(map[string]models.SectionRecord, len(existing))
		for _, r := range existing {
			if r.Locked() {
				return ErrLocked
			}
			byID[r.ID] = r
		}

		now := time.Now().UTC()
		var lockedAt *time.Time
		if locked {
			lockedAt = &now
		}

		keep := make(map[string]bool, len(items))
		for i, item := range items {
			if _, ok := byID[item.ID]; ok && !keep[item.ID] {
				keep[item.ID] = true
				result, err := tx.Exec(`
					UPDATE results
					SET content = ?, completion_date = ?, control_level = ?, sequence_order = ?,
						attempt_count = attempt_count + 1, locked_at = ?, updated_at = ?
					WHERE id = ? AND locked_at IS NULL
				`, item.Content, nullableDate(item.CompletionDate), string(item.ControlLevel), i,
					nullableTime(lockedAt), formatTime(now), item.ID)
				if err != nil {
					return err
				}
				if n, _ := result.RowsAffected(); n == 0 {
					return ErrLocked
				}
				continue
			}

			id := uuid.NewString()
			keep[id] = true
			_, err := tx.Exec(`
				INSERT INTO results (id, session_id, content, completion_date, control_level, locked_at,
					attempt_count, sequence_order, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
			`, id, sessionID, item.Content, nullableDate(item.CompletionDate), string(item.ControlLevel),
				nullableTime(lockedAt), i, formatTime(now), formatTime(now))
			if err != nil {
				return err
			}
		}

		for id := range byID {
			if keep[id] {
				continue
			}
			if _, err := tx.Exec(`DELETE FROM results WHERE id = ? AND locked_at IS NULL`, id); err != nil {
				return err
			}
		}

		out, err = listResultsTx(tx, sessionID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert results: %w", err)
	}
	return out, nil
}

// ListSections returns every stored section of a session: Context and
// Purpose (if saved) followed by the results in sequence order.
func (db *DB) ListSections(sessionID string) ([]models.SectionRecord, error) {
	var out []models.SectionRecord
	for _, kind := range []models.SectionKind{models.SectionContext, models.SectionPurpose} {
		rec, err := db.GetSection(sessionID, kind)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	results, err := db.ListResults(sessionID)
	if err != nil {
		return nil, err
	}
	return append(out, results...), nil
}

const sectionColumns = `id, session_id, kind, content, locked_at, attempt_count, created_at, updated_at`

const resultColumns = `id, session_id, content, completion_date, control_level, locked_at, attempt_count, sequence_order, created_at, updated_at`

func getSection(queryRow func(string, ...any) *sql.Row, sessionID string, kind models.SectionKind) (*models.SectionRecord, error) {
	row := queryRow(`SELECT `+sectionColumns+` FROM sections WHERE session_id = ? AND kind = ?`, sessionID, string(kind))

	var r models.SectionRecord
	var k, createdAt, updatedAt string
	var lockedAt sql.NullString
	err := row.Scan(&r.ID, &r.SessionID, &k, &r.Content, &lockedAt, &r.AttemptCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Kind = models.SectionKind(k)
	r.LockedAt = parseNullableTime(lockedAt)
	r.CreatedAt, _ = parseTime(createdAt)
	r.UpdatedAt, _ = parseTime(updatedAt)
	return &r, nil
}

func listResultsTx(tx *sql.Tx, sessionID string) ([]models.SectionRecord, error) {
	rows, err := tx.Query(`
		SELECT `+resultColumns+` FROM results
		WHERE session_id = ? ORDER BY sequence_order, created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.SectionRecord
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

func scanResult(row scanner) (*models.SectionRecord, error) {
	var r models.SectionRecord
	var control, createdAt, updatedAt string
	var completion, lockedAt sql.NullString

	err := row.Scan(&r.ID, &r.SessionID, &r.Content, &completion, &control, &lockedAt,
		&r.AttemptCount, &r.SequenceOrder, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = models.SectionResults
	r.CompletionDate = parseNullableDate(completion)
	r.ControlLevel = models.ControlLevel(control)
	r.LockedAt = parseNullableTime(lockedAt)
	r.CreatedAt, _ = parseTime(createdAt)
	r.UpdatedAt, _ = parseTime(updatedAt)
	return &r, nil
}
