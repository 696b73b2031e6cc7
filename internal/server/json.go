package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// writeJSON sends body with status. Encoding errors after the header is out
// usually mean the client went away, so they are only logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("failed to write json response", zap.Int("status", status), zap.Error(err))
	}
}
