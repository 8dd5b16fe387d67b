package models

import "time"

// Session is one authoring attempt of a CPR document.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// OwnerID identifies the user who owns the session.
	OwnerID string `json:"owner_id"`
	// UserName is how the wizard addresses the author.
	UserName string `json:"user_name"`
	// Mode selects the feedback tone. Empty until onboarding sets it.
	Mode CommunicationMode `json:"communication_mode,omitempty"`
	// Pathway selects the section order. Empty until onboarding sets it.
	Pathway Pathway `json:"pathway,omitempty"`
	// Intent is the free-text statement of what the author wants to achieve.
	Intent string `json:"intent,omitempty"`
	// Deadline bounds every result's completion date, if set.
	Deadline *Date `json:"deadline,omitempty"`
	// CommittedAt is set once the finished document is committed.
	CommittedAt *time.Time `json:"committed_at,omitempty"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the session metadata last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Committed reports whether the session has been committed.
func (s *Session) Committed() bool {
	return s != nil && s.CommittedAt != nil
}

// SessionUpdate carries optional metadata changes. Nil fields are left as is.
type SessionUpdate struct {
	UserName *string            `json:"user_name,omitempty"`
	Mode     *CommunicationMode `json:"communication_mode,omitempty"`
	Pathway  *Pathway           `json:"pathway,omitempty"`
	Intent   *string            `json:"intent,omitempty"`
	Deadline *Date              `json:"deadline,omitempty"`
}
