package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/llm"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
	// Retry is set when the same request may succeed later.
	Retry bool `json:"retry,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code. Internal errors are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, authoring.ErrInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, authoring.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, authoring.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &upstream):
		s.logger.Warn("llm unavailable",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(upstream.Kind)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: fmt.Sprintf("validation is temporarily unavailable (%s), please try again", upstream.Kind),
			Retry: upstream.Retryable(),
		})
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &authoring.InputError{Field: "body", Reason: err.Error()}
	}
	return nil
}
