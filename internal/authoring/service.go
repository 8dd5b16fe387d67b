// Package authoring is the CPR authoring core. It validates section drafts,
// locks them in pathway order, and manages the session lifecycle around
// them.
package authoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/internal/logging"
	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/internal/validation"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// SectionValidator produces a verdict for one section draft.
type SectionValidator interface {
	Validate(ctx context.Context, req validation.Request) (*models.Verdict, error)
}

// Options configures a Service.
type Options struct {
	// Drafts caches in-flight drafts. Nil uses an in-memory cache.
	Drafts draftcache.Cache
	Logger *zap.Logger
	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// Service is the authoring core.
type Service struct {
	store     state.Store
	validator SectionValidator
	drafts    draftcache.Cache
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(store state.Store, v SectionValidator, opts Options) *Service {
	if opts.Drafts == nil {
		opts.Drafts = draftcache.NewMemoryCache()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		validator: v,
		drafts:    opts.Drafts,
		logger:    logging.OrNop(opts.Logger),
		now:       opts.Now,
	}
}

// Progress is the wizard state of a session.
type Progress struct {
	Phase   wizard.Phase       `json:"phase"`
	Current models.SectionKind `json:"current,omitempty"`
	Steps   []wizard.Step      `json:"steps"`
}

// Document is a session with everything saved for it.
type Document struct {
	Session *models.Session       `json:"session"`
	Context *models.SectionRecord `json:"context,omitempty"`
	Purpose *models.SectionRecord `json:"purpose,omitempty"`
	Results []models.SectionRecord `json:"results"`
	// Progress is derived from the records above.
	Progress Progress `json:"progress"`

	machine *wizard.Machine
}

// Machine returns the state machine the document's progress was derived from.
func (d *Document) Machine() *wizard.Machine {
	return d.machine
}

// Load returns the session, its sections and its derived progress.
func (s *Service) Load(ctx context.Context, sessionID string) (*Document, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.document(sess)
}

func (s *Service) document(sess *models.Session) (*Document, error) {
	sections, err := s.store.ListSections(sess.ID)
	if err != nil {
		return nil, err
	}
	receipts, err := s.store.ListReceipts(sess.ID)
	if err != nil {
		return nil, err
	}

	m := wizard.Derive(wizard.FromRecords(sess, sections, receipts))
	doc := &Document{Session: sess, Results: []models.SectionRecord{}, machine: m}
	for i := range sections {
		rec := sections[i]
		switch rec.Kind {
		case models.SectionContext:
			doc.Context = &rec
		case models.SectionPurpose:
			doc.Purpose = &rec
		case models.SectionResults:
			doc.Results = append(doc.Results, rec)
		}
	}

	cur, _ := m.Current()
	doc.Progress = Progress{Phase: m.Phase(), Current: cur, Steps: m.Steps()}
	return doc, nil
}

// locked collects the locked sibling content of doc for prompts.
func (d *Document) locked() validation.Locked {
	var l validation.Locked
	if d.Context.Locked() {
		l.Context = d.Context.Content
	}
	if d.Purpose.Locked() {
		l.Purpose = d.Purpose.Content
	}
	for _, r := range d.Results {
		if r.Locked() {
			l.Results = append(l.Results, r.Content)
		}
	}
	return l
}

// session loads a session, mapping absence to ErrNotFound.
func (s *Service) session(id string) (*models.Session, error) {
	if id == "" {
		return nil, inputErr("session_id", "must not be empty")
	}
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &notFoundError{id: id}
	}
	return sess, nil
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return "session " + e.id + " not found" }
func (e *notFoundError) Unwrap() error { return ErrNotFound }
