package models

import "time"

// SectionRecord is one persisted section: the single Context or Purpose of a
// session, or one item of its Results list.
type SectionRecord struct {
	// ID is the unique identifier for this record. For results it is the
	// stable item id carried by ResultDraft.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// Kind is the section this record belongs to.
	Kind SectionKind `json:"kind"`
	// Content is the free-text section body.
	Content string `json:"content"`
	// CompletionDate is the date a result is (to be) achieved. Results only.
	CompletionDate *Date `json:"completion_date,omitempty"`
	// ControlLevel classifies the author's influence on a result. Results only.
	ControlLevel ControlLevel `json:"control_level,omitempty"`
	// LockedAt is nil while the record is a draft.
	LockedAt *time.Time `json:"locked_at,omitempty"`
	// AttemptCount is the number of save/validate cycles this record has seen.
	AttemptCount int `json:"attempt_count"`
	// SequenceOrder preserves the author's ordering of results.
	SequenceOrder int `json:"sequence_order"`
	// CreatedAt is when the record was first saved.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the record is immutable.
func (r *SectionRecord) Locked() bool {
	return r != nil && r.LockedAt != nil
}

// ResultDraft returns the draft form of a result record.
func (r SectionRecord) ResultDraft() ResultDraft {
	return ResultDraft{
		ID:             r.ID,
		Content:        r.Content,
		CompletionDate: r.CompletionDate,
		ControlLevel:   r.ControlLevel,
	}
}
