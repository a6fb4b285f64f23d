package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"smarttracker/internal/api"
)

var errFileNotFound = errors.New("file not found")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := api.InfoResponse{
		Message: "SmartTracker API is running",
		Version: s.version,
		Endpoints: map[string]string{
			"GET /api/activities":         "Get all activities",
			"POST /api/activities":        "Create new activity",
			"GET /api/activities/search":  "Search activities by description or location",
			"GET /api/activities/{id}":    "Get activity by ID",
			"PUT /api/activities/{id}":    "Update activity",
			"DELETE /api/activities/{id}": "Delete activity",
		},
		ActivityCount: s.store.Count(r.Context()),
	}
	resp.Endpoints["GET "+s.publicPath+"/{file}"] = "Download an uploaded image"
	s.writeJSON(w, http.StatusOK, resp)
}

// handleUploadedFile serves one file from the content directory. Hidden
// entries, including the temp directory, are never exposed.
func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if s.uploads == nil || name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(errFileNotFound, ErrCodeFileNotFound))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.uploads.Dir(), name))
}
