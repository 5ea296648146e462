package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// /health stays unauthenticated so probes always reach it. The
	// event stream validates its token in the handler, after upgrade
	// negotiation has a chance to read the query parameter.
	r.Get("/health", s.handleHealth)
	r.Get("/ws/events", s.handleWebSocket)

	return r
}
