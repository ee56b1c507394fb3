package api

import (
	"net/http"

	"github.com/cookbookapp/cookbook-server/internal/http/response"
)

// handleHealthCheck reports server liveness.
// GET /health
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "healthy"}, s.logger)
}
