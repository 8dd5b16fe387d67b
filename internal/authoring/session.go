package authoring

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// NewSession carries the onboarding fields of a new session. Only OwnerID
// is required; the rest may be filled in later with UpdateSession.
type NewSession struct {
	OwnerID  string                   `json:"owner_id"`
	UserName string                   `json:"user_name"`
	Mode     models.CommunicationMode `json:"communication_mode,omitempty"`
	Pathway  models.Pathway           `json:"pathway,omitempty"`
	Intent   string                   `json:"intent,omitempty"`
	Deadline *models.Date             `json:"deadline,omitempty"`
}

// CreateSession starts a new authoring session.
func (s *Service) CreateSession(ctx context.Context, in NewSession) (*models.Session, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, inputErr("owner_id", "must not be empty")
	}
	if err := checkMeta(in.Mode, in.Pathway); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &models.Session{
		ID:        uuid.New().String(),
		OwnerID:   in.OwnerID,
		UserName:  strings.TrimSpace(in.UserName),
		Mode:      in.Mode,
		Pathway:   in.Pathway,
		Intent:    in.Intent,
		Deadline:  in.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		zap.String("session", sess.ID),
		zap.String("owner", sess.OwnerID),
	)
	return sess, nil
}

// GetSession returns a session's metadata.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.session(id)
}

// ListSessions returns the sessions of owner, newest first. An empty owner
// lists every session.
func (s *Service) ListSessions(ctx context.Context, owner string) ([]*models.Session, error) {
	return s.store.ListSessions(strings.TrimSpace(owner))
}

// UpdateSession applies the non-nil fields of upd. The pathway cannot change
// once any section is locked, and a committed session cannot change at all.
func (s *Service) UpdateSession(ctx context.Context, id string, upd models.SessionUpdate) (*models.Session, error) {
	doc, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := doc.Session
	if sess.Committed() {
		return nil, conflict("", wizard.ErrCommitted)
	}

	var mode models.CommunicationMode
	var pathway models.Pathway
	if upd.Mode != nil {
		mode = *upd.Mode
	}
	if upd.Pathway != nil {
		pathway = *upd.Pathway
		if pathway == "" {
			return nil, inputErr("pathway", "must not be empty")
		}
	}
	if err := checkMeta(mode, pathway); err != nil {
		return nil, err
	}

	if upd.Pathway != nil && *upd.Pathway != sess.Pathway && anyLocked(doc) {
		return nil, &ConflictError{Reason: "pathway cannot change after a section is locked"}
	}

	if upd.UserName != nil {
		sess.UserName = strings.TrimSpace(*upd.UserName)
	}
	if upd.Mode != nil {
		sess.Mode = *upd.Mode
	}
	if upd.Pathway != nil {
		sess.Pathway = *upd.Pathway
	}
	if upd.Intent != nil {
		sess.Intent = *upd.Intent
	}
	if upd.Deadline != nil {
		if upd.Deadline.IsZero() {
			sess.Deadline = nil
		} else {
			d := *upd.Deadline
			sess.Deadline = &d
		}
	}
	sess.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteSession removes a session with its sections, receipts and draft.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return inputErr("session_id", "must not be empty")
	}
	if err := s.store.DeleteSession(id); err != nil {
		return err
	}
	s.clearDraft(ctx, id)
	return nil
}

// Commit marks a fully locked session as committed. Only the first commit
// succeeds.
func (s *Service) Commit(ctx context.Context, id string) (*models.Session, error) {
	doc, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := doc.machine.CheckCommit(); err != nil {
		return nil, conflict("", err)
	}

	at := s.now().UTC()
	if err := s.store.CommitSession(id, at); err != nil {
		if errors.Is(err, state.ErrCommitted) {
			return nil, conflict("", wizard.ErrCommitted)
		}
		return nil, err
	}
	s.clearDraft(ctx, id)

	sess := doc.Session
	sess.CommittedAt = &at
	s.logger.Info("session committed", zap.String("session", id))
	return sess, nil
}

func checkMeta(mode models.CommunicationMode, pathway models.Pathway) error {
	if mode != "" && !mode.Valid() {
		return inputErr("communication_mode", "must be friendly or executive")
	}
	if pathway != "" && !pathway.Valid() {
		return inputErr("pathway", "must be cpr or rpc")
	}
	return nil
}

func anyLocked(doc *Document) bool {
	for _, step := range doc.Progress.Steps {
		if step.State == wizard.StateLocked {
			return true
		}
	}
	return false
}
