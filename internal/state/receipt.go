package state

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// PutReceipt records a verdict receipt.
func (db *DB) PutReceipt(r models.VerdictReceipt) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	valid := 0
	if r.Valid {
		valid = 1
	}
	_, err := db.Exec(`
		INSERT INTO verdict_receipts (session_id, kind, digest, valid, attempt, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.SessionID, string(r.Kind), r.Digest, valid, r.Attempt, formatTime(r.RecordedAt))
	if err != nil {
		return fmt.Errorf("put receipt: %w", err)
	}
	return nil
}

// ListReceipts returns the receipts of a session oldest first.
func (db *DB) ListReceipts(sessionID string) ([]models.VerdictReceipt, error) {
	rows, err := db.Query(`
		SELECT session_id, kind, digest, valid, attempt, recorded_at
		FROM verdict_receipts WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []models.VerdictReceipt
	for rows.Next() {
		var r models.VerdictReceipt
		var kind, recordedAt string
		var valid int
		if err := rows.Scan(&r.SessionID, &kind, &r.Digest, &valid, &r.Attempt, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		r.Kind = models.SectionKind(kind)
		r.Valid = valid == 1
		r.RecordedAt, _ = parseTime(recordedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
