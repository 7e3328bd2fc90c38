package api

import (
	"net/http"

	"github.com/nzahrani/offercast/internal/storage"
)

func (s *Server) registerSettingsRoutes(mux *http.ServeMux) {
	mux.Handle("/api/v1/settings/messaging", s.withAuth(s.handleMessagingConfig))
	mux.Handle("/api/v1/settings/messaging/test", s.withAuth(s.handleMessagingTest))
}

func (s *Server) handleMessagingConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "settings", "read") {
			return
		}
		cfg, err := s.notif.GetConfig(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if cfg == nil {
			cfg = &storage.MessagingConfig{}
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPut:
		if !s.allow(w, r, "settings", "write") {
			return
		}
		var cfg storage.MessagingConfig
		if !decodeJSON(w, r, &cfg) {
			return
		}
		if err := s.notif.SaveConfig(r.Context(), cfg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMessagingTest sends one probe message through a candidate config
// without persisting it.
func (s *Server) handleMessagingTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "settings", "write") {
		return
	}

	var req struct {
		Config storage.MessagingConfig `json:"config"`
		To     string                  `json:"to"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.To == "" {
		http.Error(w, "to is required", http.StatusBadRequest)
		return
	}

	if err := s.notif.TestConfig(r.Context(), req.Config, req.To); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
