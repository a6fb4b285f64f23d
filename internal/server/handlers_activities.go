package server

import (
	"net/http"

	"smarttracker/internal/api"
)

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.List(r.Context()))
}

func (s *Server) handleSearchActivities(w http.ResponseWriter, r *http.Request) {
	// The query is matched as sent, surrounding spaces included.
	s.writeJSON(w, http.StatusOK, s.store.Search(r.Context(), r.URL.Query().Get("q")))
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	s.withUploadLimit(w, r, func() {
		payload, err := s.readActivityPayload(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		activity, err := s.store.Create(r.Context(), payload.createInput())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, activity)
	})
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	s.withUploadLimit(w, r, func() {
		payload, err := s.readActivityPayload(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		activity, err := s.store.Update(r.Context(), r.PathValue("id"), payload.updateInput())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, activity)
	})
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Message: "Activity deleted successfully", ID: id})
}

// withUploadLimit bounds concurrent multipart requests; JSON bodies pass through.
func (s *Server) withUploadLimit(w http.ResponseWriter, r *http.Request, fn func()) {
	if !isMultipart(r) {
		fn()
		return
	}
	s.withLimiter(w, r, s.uploadLimiter, "upload", fn)
}
