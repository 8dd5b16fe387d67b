package authoring

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/internal/validation"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// stub answers every semantic prompt with reply and every example prompt
// with example.
type stub struct {
	mu      sync.Mutex
	reply   string
	example string
	err     error
	calls   atomic.Int32
	prompts []string
}

func (s *stub) Complete(_ context.Context, _, user string, _ int) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, user)
	if s.err != nil {
		return "", s.err
	}
	if strings.HasPrefix(user, "Provide ONE example") {
		return s.example, nil
	}
	if s.reply == "" {
		return "Looks good.", nil
	}
	return s.reply, nil
}

func (s *stub) set(reply string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply, s.err = reply, err
}

func setupService(t *testing.T) (*Service, *state.DB, *stub) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "cprwiz.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	c := &stub{example: "Fearless Builder"}
	opts := validation.DefaultOptions()
	opts.CallTimeout = time.Second
	svc := NewService(db, validation.NewValidator(c, opts), Options{})
	return svc, db, c
}

func newSession(t *testing.T, svc *Service, pathway models.Pathway) *models.Session {
	t.Helper()
	sess, err := svc.CreateSession(context.Background(), NewSession{
		OwnerID:  "owner-1",
		UserName: "Sam",
		Mode:     models.ModeExecutive,
		Pathway:  pathway,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

func text(s string) models.Draft { return models.Draft{Text: s} }

func TestValidateSection_SavesDraftAndLocks(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayCPR)

	verdict, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
	if err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("verdict = %+v, want valid", verdict)
	}

	rec, err := db.GetSection(sess.ID, models.SectionContext)
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	if rec == nil || rec.Content != "Warrior" || rec.AttemptCount != 1 || rec.Locked() {
		t.Fatalf("stored context = %+v, want unlocked draft with 1 attempt", rec)
	}

	records, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
	if err != nil {
		t.Fatalf("LockSection failed: %v", err)
	}
	if len(records) != 1 || !records[0].Locked() {
		t.Fatalf("LockSection records = %+v", records)
	}

	doc, err := svc.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Progress.Current != models.SectionPurpose {
		t.Errorf("Current = %q, want purpose", doc.Progress.Current)
	}
}

func TestValidateSection_Refusals(t *testing.T) {
	svc, _, c := setupService(t)
	ctx := context.Background()
	cpr := newSession(t, svc, models.PathwayCPR)
	blank := newSession(t, svc, "")

	tests := []struct {
		name      string
		sessionID string
		kind      models.SectionKind
		draft     models.Draft
		want      error
	}{
		{"unknown kind", cpr.ID, "summary", text("x"), ErrInput},
		{"empty session id", "", models.SectionContext, text("x"), ErrInput},
		{"unknown session", "missing", models.SectionContext, text("x"), ErrNotFound},
		{"no pathway", blank.ID, models.SectionContext, text("Warrior"), ErrInput},
		{"out of order", cpr.ID, models.SectionPurpose, text("To x by y so that z"), ErrConflict},
		{"text for results", cpr.ID, models.SectionResults, text("Shipped"), ErrInput},
		{"items for context", cpr.ID, models.SectionContext, models.Draft{Results: []models.ResultDraft{{Content: "x"}}}, ErrInput},
		{"bad control level", cpr.ID, models.SectionResults, models.Draft{Results: []models.ResultDraft{{Content: "Shipped", ControlLevel: "total"}}}, ErrInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateSection(ctx, tt.sessionID, tt.kind, tt.draft)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ValidateSection error = %v, want %v", err, tt.want)
			}
		})
	}

	if n := c.calls.Load(); n != 0 {
		t.Errorf("completer called %d times for refused requests", n)
	}

	_, err := svc.ValidateSection(ctx, cpr.ID, models.SectionPurpose, text("To x by y so that z"))
	if !errors.Is(err, wizard.ErrOutOfOrder) {
		t.Errorf("out of order error = %v, want wizard.ErrOutOfOrder in chain", err)
	}
}

func TestValidateSection_UpstreamFailureSavesNothing(t *testing.T) {
	svc, db, c := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayCPR)

	c.set("", &llm.UpstreamError{Provider: "stub", Kind: llm.FailureRateLimited, Err: errors.New("429")})
	_, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("error = %v, want llm.ErrUpstream", err)
	}

	rec, err := db.GetSection(sess.ID, models.SectionContext)
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	if rec != nil {
		t.Errorf("draft saved after upstream failure: %+v", rec)
	}

	_, err = svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
	if !errors.Is(err, wizard.ErrStaleVerdict) {
		t.Errorf("lock without verdict error = %v, want ErrStaleVerdict", err)
	}

	c.set("", nil)
	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	rec, _ = db.GetSection(sess.ID, models.SectionContext)
	if rec == nil || rec.AttemptCount != 1 {
		t.Errorf("attempt count after retry = %+v, want 1", rec)
	}
}

func TestLockSection_RequiresFreshPassingVerdict(t *testing.T) {
	svc, _, c := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayCPR)

	c.set("This context is not valid: it describes an action.", nil)
	verdict, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
	if err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	if verdict.Valid {
		t.Fatal("expected invalid verdict")
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior")); !errors.Is(err, wizard.ErrStaleVerdict) {
		t.Fatalf("lock after failing verdict error = %v, want ErrStaleVerdict", err)
	}

	c.set("", nil)
	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text("Champion")); !errors.Is(err, wizard.ErrStaleVerdict) {
		t.Fatalf("lock of changed draft error = %v, want ErrStaleVerdict", err)
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text(" Warrior ")); err != nil {
		t.Fatalf("lock of validated draft failed: %v", err)
	}

	_, err = svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
	if !errors.Is(err, ErrConflict) || !errors.Is(err, wizard.ErrAlreadyLocked) {
		t.Errorf("second lock error = %v, want conflict wrapping ErrAlreadyLocked", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Kind != models.SectionContext {
		t.Errorf("second lock error = %#v, want *ConflictError for context", err)
	}
	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior")); !errors.Is(err, ErrConflict) {
		t.Errorf("validate after lock error = %v, want ErrConflict", err)
	}
}

func TestLockSection_SessionChangeMakesVerdictStale(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, NewSession{
		OwnerID:  "owner-1",
		Mode:     models.ModeFriendly,
		Pathway:  models.PathwayRPC,
		Deadline: ptr(models.NewDate(2026, time.December, 31)),
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	draft := models.Draft{Results: []models.ResultDraft{
		{Content: "Launched the pilot with 40 users", CompletionDate: ptr(models.NewDate(2026, time.December, 1))},
	}}
	verdict, err := svc.ValidateSection(ctx, sess.ID, models.SectionResults, draft)
	if err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("verdict = %+v, want valid", verdict)
	}

	_, err = svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Deadline: ptr(models.NewDate(2026, time.November, 1))})
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionResults, draft); !errors.Is(err, wizard.ErrStaleVerdict) {
		t.Fatalf("lock after deadline moved error = %v, want ErrStaleVerdict", err)
	}
	results, err := db.ListResults(sess.ID)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	for _, r := range results {
		if r.Locked() {
			t.Fatalf("result %q locked after deadline moved", r.Content)
		}
	}

	verdict, err = svc.ValidateSection(ctx, sess.ID, models.SectionResults, draft)
	if err != nil {
		t.Fatalf("revalidate failed: %v", err)
	}
	want := "Result 1: " + validation.MsgResultAfterDeadline
	if verdict.Valid || len(verdict.Violations) == 0 || verdict.Violations[0] != want {
		t.Fatalf("revalidated verdict = %+v, want %q", verdict, want)
	}

	// A mode change alone also invalidates the receipt.
	_, err = svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Deadline: ptr(models.NewDate(2026, time.December, 31))})
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionResults, draft); err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	_, err = svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Mode: ptr(models.ModeExecutive)})
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionResults, draft); !errors.Is(err, wizard.ErrStaleVerdict) {
		t.Fatalf("lock after mode change error = %v, want ErrStaleVerdict", err)
	}
	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionResults, draft); err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionResults, draft); err != nil {
		t.Fatalf("lock after revalidation failed: %v", err)
	}
}

func TestValidateSection_ExampleAfterRepeatedFailures(t *testing.T) {
	svc, db, c := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayCPR)
	c.set("Invalid: this is an action, not a mindset.", nil)

	for attempt := 1; attempt <= 3; attempt++ {
		verdict, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Run fast"))
		if err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
		wantExample := ""
		if attempt == 3 {
			wantExample = "Fearless Builder"
		}
		if verdict.Example != wantExample {
			t.Errorf("attempt %d: Example = %q, want %q", attempt, verdict.Example, wantExample)
		}
	}

	rec, _ := db.GetSection(sess.ID, models.SectionContext)
	if rec == nil || rec.AttemptCount != 3 {
		t.Errorf("stored attempts = %+v, want 3", rec)
	}
}

func TestLockSection_ConcurrentFirstWins(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayCPR)

	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior"))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || conflicts.Load() != n-1 {
		t.Errorf("wins = %d, conflicts = %d; want 1 and %d", wins.Load(), conflicts.Load(), n-1)
	}
}

func TestFullPathway_RPC(t *testing.T) {
	svc, _, c := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayRPC)

	results := models.Draft{Results: []models.ResultDraft{
		{Content: "Launched the beta to 200 users"},
		{Content: "Delivered two workshops", ControlLevel: models.ControlDirect},
	}}
	steps := []struct {
		kind  models.SectionKind
		draft models.Draft
	}{
		{models.SectionResults, results},
		{models.SectionPurpose, text("To grow adoption by running workshops so that teams ship faster")},
		{models.SectionContext, text("Relentless Builder")},
	}

	for _, step := range steps {
		verdict, err := svc.ValidateSection(ctx, sess.ID, step.kind, step.draft)
		if err != nil {
			t.Fatalf("validate %s: %v", step.kind, err)
		}
		if !verdict.Valid {
			t.Fatalf("validate %s: verdict = %+v", step.kind, verdict)
		}
		if _, err := svc.Commit(ctx, sess.ID); !errors.Is(err, wizard.ErrNotReady) {
			t.Fatalf("commit before %s locked: %v, want ErrNotReady", step.kind, err)
		}
		if _, err := svc.LockSection(ctx, sess.ID, step.kind, step.draft); err != nil {
			t.Fatalf("lock %s: %v", step.kind, err)
		}
	}

	var sawAnchor bool
	for _, p := range c.prompts {
		if strings.HasPrefix(p, "Validate this Purpose") && strings.Contains(p, "Must explain why these Results matter") {
			sawAnchor = true
		}
	}
	if !sawAnchor {
		t.Error("purpose prompt did not reference the locked results")
	}

	doc, err := svc.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Progress.Phase != wizard.PhaseReadyToCommit {
		t.Fatalf("Phase = %q, want ready_to_commit", doc.Progress.Phase)
	}
	if len(doc.Results) != 2 || doc.Results[1].ControlLevel != models.ControlDirect {
		t.Errorf("Results = %+v", doc.Results)
	}

	committed, err := svc.Commit(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !committed.Committed() {
		t.Error("session not marked committed")
	}
	if _, err := svc.Commit(ctx, sess.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second commit error = %v, want ErrConflict", err)
	}
	if _, err := svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Intent: ptr("more")}); !errors.Is(err, wizard.ErrCommitted) {
		t.Errorf("update after commit error = %v, want ErrCommitted", err)
	}
}

func TestUpdateSession(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, "")

	deadline := models.NewDate(2026, time.December, 31)
	friendly := models.ModeFriendly
	cpr := models.PathwayCPR
	got, err := svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{
		UserName: ptr(" Alex "),
		Mode:     &friendly,
		Pathway:  &cpr,
		Deadline: &deadline,
	})
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if got.UserName != "Alex" || got.Mode != friendly || got.Pathway != cpr || got.Deadline.String() != "2026-12-31" {
		t.Errorf("updated session = %+v", got)
	}

	loud := models.CommunicationMode("loud")
	if _, err := svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Mode: &loud}); !errors.Is(err, ErrInput) {
		t.Errorf("bad mode error = %v, want ErrInput", err)
	}

	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	if _, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("LockSection failed: %v", err)
	}

	rpc := models.PathwayRPC
	if _, err := svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Pathway: &rpc}); !errors.Is(err, ErrConflict) {
		t.Errorf("pathway change after lock error = %v, want ErrConflict", err)
	}
	if _, err := svc.UpdateSession(ctx, sess.ID, models.SessionUpdate{Pathway: &cpr}); err != nil {
		t.Errorf("re-setting the same pathway failed: %v", err)
	}
}

func TestSessionsAndDelete(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, NewSession{}); !errors.Is(err, ErrInput) {
		t.Errorf("CreateSession without owner error = %v, want ErrInput", err)
	}
	if _, err := svc.CreateSession(ctx, NewSession{OwnerID: "o", Pathway: "zigzag"}); !errors.Is(err, ErrInput) {
		t.Errorf("CreateSession with bad pathway error = %v, want ErrInput", err)
	}

	a := newSession(t, svc, models.PathwayCPR)
	newSession(t, svc, models.PathwayRPC)

	list, err := svc.ListSessions(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListSessions returned %d sessions, want 2", len(list))
	}

	if err := svc.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := svc.GetSession(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession after delete error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteSession(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestDrafts(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayCPR)

	e, err := svc.LoadDraft(ctx, sess.ID)
	if err != nil {
		t.Fatalf("LoadDraft failed: %v", err)
	}
	if len(e.Drafts) != 0 {
		t.Errorf("fresh draft entry = %+v", e)
	}

	e.Drafts[models.SectionPurpose] = text("To be decided")
	if err := svc.SaveDraft(ctx, e); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}
	bad := &draftcache.Entry{SessionID: sess.ID, Drafts: map[models.SectionKind]models.Draft{"summary": {}}}
	if err := svc.SaveDraft(ctx, bad); !errors.Is(err, ErrInput) {
		t.Errorf("SaveDraft with unknown kind error = %v, want ErrInput", err)
	}

	if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("ValidateSection failed: %v", err)
	}
	e, _ = svc.LoadDraft(ctx, sess.ID)
	if e.Drafts[models.SectionContext].Text != "Warrior" || e.Step != models.SectionContext {
		t.Errorf("validated draft not cached: %+v", e)
	}
	if e.Drafts[models.SectionPurpose].Text != "To be decided" {
		t.Errorf("unrelated draft lost: %+v", e)
	}

	if _, err := svc.LockSection(ctx, sess.ID, models.SectionContext, text("Warrior")); err != nil {
		t.Fatalf("LockSection failed: %v", err)
	}
	e, _ = svc.LoadDraft(ctx, sess.ID)
	if _, ok := e.Drafts[models.SectionContext]; ok {
		t.Errorf("locked section still cached: %+v", e)
	}

	if err := svc.ClearDraft(ctx, sess.ID); err != nil {
		t.Fatalf("ClearDraft failed: %v", err)
	}
	e, _ = svc.LoadDraft(ctx, sess.ID)
	if len(e.Drafts) != 0 {
		t.Errorf("draft entry after clear = %+v", e)
	}
}

func ptr[T any](v T) *T { return &v }

func TestValidateSection_ResultsKeepIdentity(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	sess := newSession(t, svc, models.PathwayRPC)

	draft := models.Draft{Results: []models.ResultDraft{
		{Content: "Launched the beta"},
		{Content: "Hired two engineers"},
	}}
	for i := 0; i < 2; i++ {
		if _, err := svc.ValidateSection(ctx, sess.ID, models.SectionResults, draft); err != nil {
			t.Fatalf("ValidateSection failed: %v", err)
		}
	}
	before, _ := db.ListResults(sess.ID)
	if len(before) != 2 || before[0].AttemptCount != 2 || before[1].AttemptCount != 2 {
		t.Fatalf("results after two validations = %+v, want two items with 2 attempts", before)
	}

	locked, err := svc.LockSection(ctx, sess.ID, models.SectionResults, draft)
	if err != nil {
		t.Fatalf("LockSection failed: %v", err)
	}
	for i, rec := range locked {
		if rec.ID != before[i].ID || !rec.Locked() {
			t.Errorf("locked[%d] = %+v, want id %s locked", i, rec, before[i].ID)
		}
	}
	if draft.Results[0].ID != "" {
		t.Error("caller's draft was modified")
	}
}
