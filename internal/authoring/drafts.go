package authoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// LoadDraft returns the cached in-flight drafts of a session, or an empty
// entry if nothing is cached.
func (s *Service) LoadDraft(ctx context.Context, sessionID string) (*draftcache.Entry, error) {
	if _, err := s.session(sessionID); err != nil {
		return nil, err
	}
	e, err := s.drafts.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		e = &draftcache.Entry{SessionID: sessionID, Drafts: map[models.SectionKind]models.Draft{}}
	}
	return e, nil
}

// SaveDraft replaces the cached drafts of a session. Cached drafts are never
// validated; they only let an author resume where they left off.
func (s *Service) SaveDraft(ctx context.Context, e *draftcache.Entry) error {
	sess, err := s.session(e.SessionID)
	if err != nil {
		return err
	}
	if sess.Committed() {
		return conflict("", wizard.ErrCommitted)
	}
	for kind := range e.Drafts {
		if !kind.Valid() {
			return inputErr("drafts", "unknown section "+string(kind))
		}
	}
	if e.Step != "" && !e.Step.Valid() {
		return inputErr("step", "unknown section "+string(e.Step))
	}
	e.SavedAt = s.now().UTC()
	return s.drafts.Save(ctx, e)
}

// ClearDraft drops the cached drafts of a session.
func (s *Service) ClearDraft(ctx context.Context, sessionID string) error {
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	return s.drafts.Clear(ctx, sessionID)
}

// updateDraft applies fn to the cached entry. Cache failures are logged and
// otherwise ignored: the database is authoritative.
func (s *Service) updateDraft(ctx context.Context, sessionID string, fn func(*draftcache.Entry)) {
	e, err := s.drafts.Load(ctx, sessionID)
	if err == nil {
		if e == nil {
			e = &draftcache.Entry{SessionID: sessionID}
		}
		if e.Drafts == nil {
			e.Drafts = map[models.SectionKind]models.Draft{}
		}
		fn(e)
		e.SavedAt = s.now().UTC()
		err = s.drafts.Save(ctx, e)
	}
	if err != nil {
		s.logger.Warn("draft cache update failed",
			zap.String("session", sessionID),
			zap.Error(err),
		)
	}
}

func (s *Service) clearDraft(ctx context.Context, sessionID string) {
	if err := s.drafts.Clear(ctx, sessionID); err != nil {
		s.logger.Warn("draft cache clear failed",
			zap.String("session", sessionID),
			zap.Error(err),
		)
	}
}
