package server

import (
	"context"
	"net/http"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.usage.Snapshot())
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req authoring.NewSession
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.svc.CreateSession(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type sessionListResp struct {
	Sessions []*models.Session `json:"sessions"`
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.ListSessions(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	writeJSON(w, http.StatusOK, sessionListResp{Sessions: sessions})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	var upd models.SessionUpdate
	if err := decode(w, r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.svc.UpdateSession(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Commit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var draft models.Draft
	if err := decode(w, r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	kind := models.SectionKind(r.PathValue("kind"))
	verdict, err := s.svc.ValidateSection(ctx, r.PathValue("id"), kind, draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type lockResp struct {
	Records []models.SectionRecord `json:"records"`
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var draft models.Draft
	if err := decode(w, r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind := models.SectionKind(r.PathValue("kind"))
	records, err := s.svc.LockSection(r.Context(), r.PathValue("id"), kind, draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lockResp{Records: records})
}

func (s *Server) handleDraftGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.LoadDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type draftPutReq struct {
	Drafts map[models.SectionKind]models.Draft `json:"drafts"`
	Step   models.SectionKind                  `json:"step,omitempty"`
}

func (s *Server) handleDraftPut(w http.ResponseWriter, r *http.Request) {
	var req draftPutReq
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Drafts == nil {
		req.Drafts = map[models.SectionKind]models.Draft{}
	}
	e := &draftcache.Entry{SessionID: r.PathValue("id"), Drafts: req.Drafts, Step: req.Step}
	if err := s.svc.SaveDraft(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDraftDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearDraft(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
