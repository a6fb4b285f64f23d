package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Activities collection.
	mux.HandleFunc("GET /api/activities", s.handleListActivities)
	mux.HandleFunc("POST /api/activities", s.handleCreateActivity)

	// Activity queries.
	mux.HandleFunc("GET /api/activities/search", s.handleSearchActivities)

	// Single activity.
	mux.HandleFunc("GET /api/activities/{id}", s.handleGetActivity)
	mux.HandleFunc("PUT /api/activities/{id}", s.handleUpdateActivity)
	mux.HandleFunc("PATCH /api/activities/{id}", s.handleUpdateActivity)
	mux.HandleFunc("DELETE /api/activities/{id}", s.handleDeleteActivity)

	// Uploaded images.
	mux.HandleFunc("GET "+s.publicPath+"/{file}", s.handleUploadedFile)

	return mux
}
