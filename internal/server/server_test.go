package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/internal/validation"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

type fixture struct {
	srv     *httptest.Server
	tracker *llm.TokenTracker

	mu  sync.Mutex
	err error
}

func (f *fixture) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "cprwiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	f := &fixture{tracker: llm.NewTokenTracker(1, 1)}
	completer := llm.CompleterFunc(func(ctx context.Context, _, _ string, _ int) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.err != nil {
			f.tracker.Fail()
			return "", f.err
		}
		f.tracker.Add(100, 20)
		return "Looks good.", nil
	})

	opts := validation.DefaultOptions()
	opts.CallTimeout = time.Second
	svc := authoring.NewService(db, validation.NewValidator(completer, opts), authoring.Options{})
	s, err := New(svc, Options{Usage: f.tracker, RequestTimeout: 5 * time.Second})
	require.NoError(t, err)

	f.srv = httptest.NewServer(s.Routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) createSession(t *testing.T, pathway models.Pathway) string {
	t.Helper()
	var sess models.Session
	code := f.do(t, http.MethodPost, "/api/sessions", authoring.NewSession{
		OwnerID:  "owner-1",
		UserName: "Sam",
		Pathway:  pathway,
	}, &sess)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestValidateAndLock(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, models.PathwayCPR)
	base := "/api/sessions/" + id + "/sections/"

	var verdict models.Verdict
	code := f.do(t, http.MethodPost, base+"context/validate", models.Draft{Text: "Warrior"}, &verdict)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, verdict.Valid)
	assert.Equal(t, "This context meets all requirements. Ready to lock in!", verdict.Feedback)
	assert.Empty(t, verdict.Violations)

	var locked struct {
		Records []models.SectionRecord `json:"records"`
	}
	code = f.do(t, http.MethodPost, base+"context/lock", models.Draft{Text: "Warrior"}, &locked)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, locked.Records, 1)
	assert.NotNil(t, locked.Records[0].LockedAt)

	var errBody errorResponse
	code = f.do(t, http.MethodPost, base+"context/lock", models.Draft{Text: "Warrior"}, &errBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, errBody.Error, "locked")

	var doc struct {
		Context  *models.SectionRecord `json:"context"`
		Progress struct {
			Phase   string `json:"phase"`
			Current string `json:"current"`
		} `json:"progress"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/sessions/"+id, nil, &doc))
	require.NotNil(t, doc.Context)
	assert.Equal(t, "Warrior", doc.Context.Content)
	assert.Equal(t, "in_progress", doc.Progress.Phase)
	assert.Equal(t, "purpose", doc.Progress.Current)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, models.PathwayCPR)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown kind", "/api/sessions/" + id + "/sections/summary/validate", models.Draft{Text: "x"}, http.StatusBadRequest},
		{"unknown field", "/api/sessions/" + id + "/sections/context/validate", `{"content":"Warrior"}`, http.StatusBadRequest},
		{"malformed body", "/api/sessions/" + id + "/sections/context/validate", `{`, http.StatusBadRequest},
		{"unknown session", "/api/sessions/nope/sections/context/validate", models.Draft{Text: "x"}, http.StatusNotFound},
		{"out of order", "/api/sessions/" + id + "/sections/results/validate", models.Draft{Results: []models.ResultDraft{{Content: "Shipped it"}}}, http.StatusConflict},
		{"lock without verdict", "/api/sessions/" + id + "/sections/context/lock", models.Draft{Text: "Warrior"}, http.StatusConflict},
		{"commit too early", "/api/sessions/" + id + "/commit", nil, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorResponse
			assert.Equal(t, tt.want, f.do(t, http.MethodPost, tt.path, tt.body, &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, models.PathwayCPR)
	f.fail(&llm.UpstreamError{Provider: "stub", Kind: llm.FailureTimeout, Err: errors.New("deadline")})

	var body errorResponse
	code := f.do(t, http.MethodPost, "/api/sessions/"+id+"/sections/context/validate", models.Draft{Text: "Warrior"}, &body)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.True(t, body.Retry)
	assert.Contains(t, body.Error, "try again")

	var usage llm.Usage
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/usage", nil, &usage))
	assert.Equal(t, 1, usage.Failures)
	assert.Zero(t, usage.InputTokens)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, "")
	f.createSession(t, models.PathwayRPC)

	var list sessionListResp
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/sessions?owner=owner-1", nil, &list))
	assert.Len(t, list.Sessions, 2)

	var sess models.Session
	code := f.do(t, http.MethodPatch, "/api/sessions/"+id, `{"pathway":"rpc","communication_mode":"friendly","deadline":"2026-12-31"}`, &sess)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.PathwayRPC, sess.Pathway)
	assert.Equal(t, models.ModeFriendly, sess.Mode)
	assert.Equal(t, "2026-12-31", sess.Deadline.String())

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/sessions/"+id, `{"pathway":"zigzag"}`, &errBody))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/sessions/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/sessions/"+id, nil, &errBody))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/sessions/"+id, nil, &errBody))
}

func TestDraftCache(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, models.PathwayCPR)
	path := "/api/sessions/" + id + "/draft"

	var entry struct {
		Drafts map[string]models.Draft `json:"drafts"`
		Step   string                  `json:"step"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, &entry))
	assert.Empty(t, entry.Drafts)

	body := `{"drafts":{"context":{"text":"Warr"}},"step":"context"}`
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, path, body, &entry))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, &entry))
	assert.Equal(t, "Warr", entry.Drafts["context"].Text)
	assert.Equal(t, "context", entry.Step)

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path, `{"step":"summary"}`, &errBody))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, nil, nil))
	entry.Drafts = nil
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, &entry))
	assert.Empty(t, entry.Drafts)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPut, f.srv.URL+"/api/sessions", strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNew_RequiresService(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}
