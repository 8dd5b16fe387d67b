package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

func setupSession(t *testing.T, db *DB) string {
	t.Helper()
	if err := db.CreateSession(newSession("sess-1", "owner-1", time.Now())); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return "sess-1"
}

func TestUpsertSection_AttemptCount(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)

	rec, err := db.UpsertSection(sid, models.SectionContext, "Warior", false)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if rec.AttemptCount != 1 || rec.Locked() {
		t.Errorf("first save = %+v, want attempt 1 unlocked", rec)
	}

	rec, err = db.UpsertSection(sid, models.SectionContext, "Warrior", false)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if rec.AttemptCount != 2 || rec.Content != "Warrior" {
		t.Errorf("second save = %+v, want attempt 2 with new content", rec)
	}

	got, err := db.GetSection(sid, models.SectionContext)
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("upsert created a second record")
	}
}

func TestUpsertSection_LockIsFinal(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)

	if _, err := db.UpsertSection(sid, models.SectionPurpose, "draft", false); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	rec, err := db.UpsertSection(sid, models.SectionPurpose, "final", true)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if !rec.Locked() || rec.Content != "final" {
		t.Errorf("lock = %+v", rec)
	}

	if _, err := db.UpsertSection(sid, models.SectionPurpose, "edit", false); !errors.Is(err, ErrLocked) {
		t.Errorf("edit after lock = %v, want ErrLocked", err)
	}
	if _, err := db.UpsertSection(sid, models.SectionPurpose, "again", true); !errors.Is(err, ErrLocked) {
		t.Errorf("relock = %v, want ErrLocked", err)
	}

	got, _ := db.GetSection(sid, models.SectionPurpose)
	if got.Content != "final" {
		t.Errorf("locked content changed to %q", got.Content)
	}
}

func TestUpsertSection_ConcurrentLockFirstWins(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)
	if _, err := db.UpsertSection(sid, models.SectionContext, "Warrior", false); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = db.UpsertSection(sid, models.SectionContext, "Warrior", true)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, ErrLocked):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("%d lock writes succeeded, want exactly 1", wins)
	}
}

func TestGetSection_RejectsResults(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetSection("s", models.SectionResults); err == nil {
		t.Error("expected error for results kind")
	}
	if _, err := db.UpsertSection("s", models.SectionResults, "x", false); err == nil {
		t.Error("expected error for results kind")
	}
}

func TestUpsertResults_StableIDsAndOrder(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)
	due := models.NewDate(2026, 5, 1)

	first, err := db.UpsertResults(sid, []models.ResultDraft{
		{Content: "Launched portal", CompletionDate: &due, ControlLevel: models.ControlDirect},
		{Content: "Signed partners"},
		{Content: "Trained staff"},
	}, false)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("got %d results, want 3", len(first))
	}
	for i, r := range first {
		if r.ID == "" || r.SequenceOrder != i || r.AttemptCount != 1 {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if first[0].CompletionDate == nil || first[0].CompletionDate.String() != "2026-05-01" {
		t.Errorf("completion date = %v", first[0].CompletionDate)
	}

	// Reorder, drop the middle item and add a new one.
	second, err := db.UpsertResults(sid, []models.ResultDraft{
		{ID: first[2].ID, Content: "Trained 40 staff"},
		{ID: first[0].ID, Content: "Launched portal"},
		{Content: "Opened second site"},
	}, false)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("got %d results, want 3", len(second))
	}
	if second[0].ID != first[2].ID || second[0].Content != "Trained 40 staff" || second[0].AttemptCount != 2 {
		t.Errorf("result 0 = %+v", second[0])
	}
	if second[1].ID != first[0].ID || second[1].AttemptCount != 2 {
		t.Errorf("result 1 = %+v", second[1])
	}
	if second[2].AttemptCount != 1 {
		t.Errorf("new item attempt = %d, want 1", second[2].AttemptCount)
	}
	for _, r := range second {
		if r.ID == first[1].ID {
			t.Error("dropped item was not deleted")
		}
	}
}

func TestUpsertResults_LockAllAtOnce(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)

	saved, err := db.UpsertResults(sid, []models.ResultDraft{{Content: "Launched portal"}, {Content: "Signed partners"}}, false)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	items := []models.ResultDraft{saved[0].ResultDraft(), saved[1].ResultDraft()}
	lockedRecs, err := db.UpsertResults(sid, items, true)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	for _, r := range lockedRecs {
		if !r.Locked() {
			t.Errorf("result %s not locked", r.ID)
		}
	}

	if _, err := db.UpsertResults(sid, items, true); !errors.Is(err, ErrLocked) {
		t.Errorf("relock = %v, want ErrLocked", err)
	}
	if _, err := db.UpsertResults(sid, nil, false); !errors.Is(err, ErrLocked) {
		t.Errorf("clear after lock = %v, want ErrLocked", err)
	}

	list, _ := db.ListResults(sid)
	if len(list) != 2 {
		t.Errorf("locked results changed: %d rows", len(list))
	}
}

func TestListSections(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)

	if _, err := db.UpsertSection(sid, models.SectionPurpose, "To ship by pairing so that clinics start", false); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertResults(sid, []models.ResultDraft{{Content: "Launched portal"}}, false); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListSections(sid)
	if err != nil {
		t.Fatalf("ListSections failed: %v", err)
	}
	if len(all) != 2 || all[0].Kind != models.SectionPurpose || all[1].Kind != models.SectionResults {
		t.Errorf("ListSections = %+v", all)
	}
}

func TestReceipts(t *testing.T) {
	db := setupTestDB(t)
	sid := setupSession(t, db)
	now := time.Now()

	receipts := []models.VerdictReceipt{
		{SessionID: sid, Kind: models.SectionContext, Digest: "a", Valid: false, Attempt: 1, RecordedAt: now},
		{SessionID: sid, Kind: models.SectionContext, Digest: "b", Valid: true, Attempt: 2, RecordedAt: now},
	}
	for _, r := range receipts {
		if err := db.PutReceipt(r); err != nil {
			t.Fatalf("PutReceipt failed: %v", err)
		}
	}

	got, err := db.ListReceipts(sid)
	if err != nil {
		t.Fatalf("ListReceipts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d receipts, want 2", len(got))
	}
	if got[1].Digest != "b" || !got[1].Valid || got[1].Attempt != 2 || got[1].Kind != models.SectionContext {
		t.Errorf("latest receipt = %+v", got[1])
	}
}
