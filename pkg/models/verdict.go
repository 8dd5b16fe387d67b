package models

import "time"

// Verdict is the aggregate judgment of one validation call. It is never
// persisted; every attempt recomputes it.
type Verdict struct {
	// Valid is true iff no rule or semantic violation was found.
	Valid bool `json:"valid"`
	// Feedback is a fixed human-facing summary, not raw model text.
	Feedback string `json:"feedback"`
	// Violations must be fixed before the section can be locked.
	Violations []string `json:"violations"`
	// Suggestions are advisory and never affect Valid.
	Suggestions []string `json:"suggestions"`
	// Example is a corrective example offered after repeated failures.
	Example string `json:"exampleOption,omitempty"`
}

// VerdictReceipt records that a draft with Digest was validated. Locking
// requires a passing receipt for the exact draft being locked.
type VerdictReceipt struct {
	SessionID  string      `json:"session_id"`
	Kind       SectionKind `json:"kind"`
	Digest     string      `json:"digest"`
	Valid      bool        `json:"valid"`
	Attempt    int         `json:"attempt"`
	RecordedAt time.Time   `json:"recorded_at"`
}
