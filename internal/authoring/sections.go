package authoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/internal/validation"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// ValidateSection validates a draft of one section and returns the verdict.
//
// The section must be editable: its pathway predecessor locked and itself
// unlocked. A verdict is only returned when validation completed, in which
// case the draft is saved (advancing its attempt count) and a receipt is
// recorded for a later LockSection. If the LLM call fails, nothing is saved
// and the upstream error is returned.
func (s *Service) ValidateSection(ctx context.Context, sessionID string, kind models.SectionKind, draft models.Draft) (*models.Verdict, error) {
	if err := checkDraft(kind, draft); err != nil {
		return nil, err
	}
	doc, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := guard(kind, doc.machine.CheckValidate(kind)); err != nil {
		return nil, err
	}

	attempt := doc.machine.Attempts(kind) + 1
	verdict, err := s.validator.Validate(ctx, validation.Request{
		Kind:     kind,
		Draft:    draft,
		Mode:     doc.Session.Mode,
		Pathway:  doc.Session.Pathway,
		Deadline: doc.Session.Deadline,
		Locked:   doc.locked(),
		Attempt:  attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", kind, err)
	}

	if kind == models.SectionResults {
		draft.Results = adoptIDs(doc.Results, draft.Results)
	}
	if err := s.save(sessionID, kind, draft); err != nil {
		return nil, err
	}
	err = s.store.PutReceipt(models.VerdictReceipt{
		SessionID:  sessionID,
		Kind:       kind,
		Digest:     receiptDigest(doc, kind, draft),
		Valid:      verdict.Valid,
		Attempt:    attempt,
		RecordedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.cacheDraft(ctx, sessionID, kind, draft)
	return verdict, nil
}

// LockSection makes a validated section immutable and returns its stored
// records. draft must be exactly the content of the most recent passing
// verdict for kind. When two locks race, the first one wins and the other
// gets a ConflictError.
func (s *Service) LockSection(ctx context.Context, sessionID string, kind models.SectionKind, draft models.Draft) ([]models.SectionRecord, error) {
	if err := checkDraft(kind, draft); err != nil {
		return nil, err
	}
	doc, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := guard(kind, doc.machine.CheckLock(kind, receiptDigest(doc, kind, draft))); err != nil {
		return nil, err
	}

	var records []models.SectionRecord
	if kind == models.SectionResults {
		records, err = s.store.UpsertResults(sessionID, adoptIDs(doc.Results, draft.Results), true)
	} else {
		var rec *models.SectionRecord
		rec, err = s.store.UpsertSection(sessionID, kind, strings.TrimSpace(draft.Text), true)
		if rec != nil {
			records = []models.SectionRecord{*rec}
		}
	}
	if err != nil {
		if errors.Is(err, state.ErrLocked) {
			return nil, conflict(kind, wizard.ErrAlreadyLocked)
		}
		return nil, err
	}

	s.uncacheDraft(ctx, sessionID, kind)
	s.logger.Info("section locked",
		zap.String("session", sessionID),
		zap.String("kind", string(kind)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// receiptDigest keys a verdict on the draft and on every session input the
// verdict depended on, so a deadline, mode or pathway change since
// validation makes the receipt stale.
func receiptDigest(doc *Document, kind models.SectionKind, draft models.Draft) string {
	sess := doc.Session
	var deadline string
	if sess.Deadline != nil {
		deadline = sess.Deadline.String()
	}
	l := doc.locked()
	h := sha256.New()
	for _, part := range []string{
		draft.Digest(kind),
		deadline,
		string(sess.Mode),
		string(sess.Pathway),
		l.Context,
		l.Purpose,
		strings.Join(l.Results, "\n"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// save persists a draft without locking it.
func (s *Service) save(sessionID string, kind models.SectionKind, draft models.Draft) error {
	var err error
	if kind == models.SectionResults {
		_, err = s.store.UpsertResults(sessionID, draft.Results, false)
	} else {
		_, err = s.store.UpsertSection(sessionID, kind, strings.TrimSpace(draft.Text), false)
	}
	if errors.Is(err, state.ErrLocked) {
		// Locked by a concurrent request since Load.
		return conflict(kind, wizard.ErrAlreadyLocked)
	}
	return err
}

// adoptIDs gives items submitted without an id the id of the stored result
// at the same position, so a resubmitted list keeps its item identities and
// attempt counts.
func adoptIDs(stored []models.SectionRecord, items []models.ResultDraft) []models.ResultDraft {
	out := make([]models.ResultDraft, len(items))
	copy(out, items)
	taken := make(map[string]bool, len(items))
	for _, it := range out {
		if it.ID != "" {
			taken[it.ID] = true
		}
	}
	for i := range out {
		if out[i].ID != "" || i >= len(stored) || taken[stored[i].ID] {
			continue
		}
		out[i].ID = stored[i].ID
		taken[stored[i].ID] = true
	}
	return out
}

// checkDraft rejects requests that are malformed regardless of state.
func checkDraft(kind models.SectionKind, draft models.Draft) error {
	if !kind.Valid() {
		return inputErr("kind", fmt.Sprintf("unknown section %q", kind))
	}
	if kind == models.SectionResults {
		if strings.TrimSpace(draft.Text) != "" {
			return inputErr("text", "results take a list of items")
		}
		for i, r := range draft.Results {
			if r.ControlLevel != "" && !r.ControlLevel.Valid() {
				return inputErr(fmt.Sprintf("results[%d].control_level", i), "must be direct, partial or none")
			}
		}
		return nil
	}
	if len(draft.Results) > 0 {
		return inputErr("results", fmt.Sprintf("%s takes text", kind))
	}
	return nil
}

// guard maps a state machine refusal to the facade's error types.
func guard(kind models.SectionKind, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wizard.ErrNoPathway):
		return inputErr("pathway", "choose a pathway before editing sections")
	default:
		return conflict(kind, err)
	}
}

func (s *Service) cacheDraft(ctx context.Context, sessionID string, kind models.SectionKind, draft models.Draft) {
	s.updateDraft(ctx, sessionID, func(e *draftcache.Entry) {
		e.Drafts[kind] = draft
		e.Step = kind
	})
}

func (s *Service) uncacheDraft(ctx context.Context, sessionID string, kind models.SectionKind) {
	s.updateDraft(ctx, sessionID, func(e *draftcache.Entry) {
		delete(e.Drafts, kind)
	})
}
