package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

type sessionRequest struct {
	Title string `json:"title"`
}

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.svc.ListSessions(r.Context()))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, err)
			return
		}
	}
	sess, err := s.svc.CreateSession(r.Context(), req.Title)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess := s.svc.GetSession(r.Context(), id)
	if sess == nil {
		s.errorResponse(w, http.StatusNotFound, errors.New("session not found: "+id))
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	s.svc.RenameSession(r.Context(), id, req.Title)
	sess := s.svc.GetSession(r.Context(), id)
	if sess == nil {
		s.errorResponse(w, http.StatusNotFound, errors.New("session not found: "+id))
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.DeleteSession(r.Context(), id); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.SwitchSession(r.Context(), id); err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.svc.ActiveSession())
}

// --- Active pointer ---

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	sess := s.svc.ActiveSession()
	if sess == nil {
		s.jsonResponse(w, http.StatusOK, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearActiveSession(r.Context()); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Agent ---

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Invoke(r.Context()); err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
