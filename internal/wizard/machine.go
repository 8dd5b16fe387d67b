// Package wizard derives authoring progress from persisted section state.
//
// A Machine holds nothing that is not in its Snapshot, so it can be rebuilt
// after every load or write and always agrees with storage.
package wizard

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

var (
	// ErrNoPathway is returned while the session has no pathway selected.
	ErrNoPathway = errors.New("session has no pathway")
	// ErrOutOfOrder is returned when a section's predecessor is not locked.
	ErrOutOfOrder = errors.New("section is not editable yet")
	// ErrAlreadyLocked is returned for any change to a locked section.
	ErrAlreadyLocked = errors.New("section is already locked")
	// ErrStaleVerdict is returned when locking a draft that has no passing
	// verdict for exactly its content.
	ErrStaleVerdict = errors.New("draft has no matching passing verdict")
	// ErrNotReady is returned when committing before every section is locked.
	ErrNotReady = errors.New("not every section is locked")
	// ErrCommitted is returned for any change to a committed session.
	ErrCommitted = errors.New("session is already committed")
)

// SectionState is the lock state of one section.
type SectionState string

const (
	StateUnlocked SectionState = "unlocked"
	StateLocked   SectionState = "locked"
)

// Phase is the overall session state.
type Phase string

const (
	PhaseInProgress    Phase = "in_progress"
	PhaseReadyToCommit Phase = "ready_to_commit"
	PhaseCommitted     Phase = "committed"
)

// Snapshot is the persisted state a Machine is derived from.
type Snapshot struct {
	Pathway   models.Pathway
	Committed bool
	// Locked holds the sections with a lock timestamp. Results count as
	// locked once any item is locked; items are locked together.
	Locked map[models.SectionKind]bool
	// Attempts holds the stored attempt count per section (max over items
	// for Results).
	Attempts map[models.SectionKind]int
	// Receipts holds the latest verdict receipt per section.
	Receipts map[models.SectionKind]models.VerdictReceipt
}

// FromRecords builds a Snapshot from stored rows. Receipts may be in any
// order; the most recent per section wins.
func FromRecords(sess *models.Session, sections []models.SectionRecord, receipts []models.VerdictReceipt) Snapshot {
	s := Snapshot{
		Locked:   make(map[models.SectionKind]bool),
		Attempts: make(map[models.SectionKind]int),
		Receipts: make(map[models.SectionKind]models.VerdictReceipt),
	}
	if sess != nil {
		s.Pathway = sess.Pathway
		s.Committed = sess.Committed()
	}
	for _, rec := range sections {
		if rec.Locked() {
			s.Locked[rec.Kind] = true
		}
		if rec.AttemptCount > s.Attempts[rec.Kind] {
			s.Attempts[rec.Kind] = rec.AttemptCount
		}
	}
	for _, r := range receipts {
		if prev, ok := s.Receipts[r.Kind]; !ok || !r.RecordedAt.Before(prev.RecordedAt) {
			s.Receipts[r.Kind] = r
		}
	}
	return s
}

// Machine answers what a session may do next.
type Machine struct {
	snap Snapshot
}

// Derive builds a Machine from s. It is a pure function of s.
func Derive(s Snapshot) *Machine {
	return &Machine{snap: s}
}

// Pathway returns the session pathway.
func (m *Machine) Pathway() models.Pathway {
	return m.snap.Pathway
}

// State returns the lock state of kind.
func (m *Machine) State(kind models.SectionKind) SectionState {
	if m.snap.Locked[kind] {
		return StateLocked
	}
	return StateUnlocked
}

// Attempts returns the stored attempt count of kind.
func (m *Machine) Attempts(kind models.SectionKind) int {
	return m.snap.Attempts[kind]
}

// Editable reports whether kind may currently be validated or locked.
func (m *Machine) Editable(kind models.SectionKind) bool {
	return m.CheckValidate(kind) == nil
}

// Current returns the first unlocked section in pathway order. ok is false
// once every section is locked or no pathway is set.
func (m *Machine) Current() (kind models.SectionKind, ok bool) {
	for _, k := range m.snap.Pathway.Order() {
		if !m.snap.Locked[k] {
			return k, true
		}
	}
	return "", false
}

// Phase returns the overall session state.
func (m *Machine) Phase() Phase {
	if m.snap.Committed {
		return PhaseCommitted
	}
	if !m.snap.Pathway.Valid() {
		return PhaseInProgress
	}
	for _, k := range models.AllSections() {
		if !m.snap.Locked[k] {
			return PhaseInProgress
		}
	}
	return PhaseReadyToCommit
}

// Step describes one section in pathway order.
type Step struct {
	Kind     models.SectionKind `json:"kind"`
	State    SectionState       `json:"state"`
	Editable bool               `json:"editable"`
	Attempts int                `json:"attempts"`
}

// Steps lists the sections in pathway order, or canonical order while no
// pathway is set.
func (m *Machine) Steps() []Step {
	order := m.snap.Pathway.Order()
	if order == nil {
		order = models.AllSections()
	}
	steps := make([]Step, 0, len(order))
	for _, k := range order {
		steps = append(steps, Step{
			Kind:     k,
			State:    m.State(k),
			Editable: m.Editable(k),
			Attempts: m.snap.Attempts[k],
		})
	}
	return steps
}

// CheckValidate returns nil if kind may be validated now.
func (m *Machine) CheckValidate(kind models.SectionKind) error {
	if m.snap.Committed {
		return ErrCommitted
	}
	if !m.snap.Pathway.Valid() {
		return ErrNoPathway
	}
	if m.snap.Locked[kind] {
		return fmt.Errorf("%w: %s", ErrAlreadyLocked, kind)
	}
	if prev, ok := m.snap.Pathway.Predecessor(kind); ok && !m.snap.Locked[prev] {
		return fmt.Errorf("%w: %s must be locked before %s", ErrOutOfOrder, prev, kind)
	}
	return nil
}

// CheckLock returns nil if kind may be locked with a draft whose digest is
// digest. The latest receipt for kind must be passing and match digest.
func (m *Machine) CheckLock(kind models.SectionKind, digest string) error {
	if err := m.CheckValidate(kind); err != nil {
		return err
	}
	r, ok := m.snap.Receipts[kind]
	switch {
	case !ok:
		return fmt.Errorf("%w: %s has not been validated", ErrStaleVerdict, kind)
	case r.Digest != digest:
		return fmt.Errorf("%w: %s changed since it was validated", ErrStaleVerdict, kind)
	case !r.Valid:
		return fmt.Errorf("%w: %s did not pass validation", ErrStaleVerdict, kind)
	}
	return nil
}

// CheckCommit returns nil if the session may be committed.
func (m *Machine) CheckCommit() error {
	switch m.Phase() {
	case PhaseCommitted:
		return ErrCommitted
	case PhaseReadyToCommit:
		return nil
	}
	if !m.snap.Pathway.Valid() {
		return ErrNoPathway
	}
	return ErrNotReady
}
