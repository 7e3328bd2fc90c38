package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/nzahrani/offercast/internal/alerting"
	"github.com/nzahrani/offercast/internal/auth"
	"github.com/nzahrani/offercast/internal/distribution"
	"github.com/nzahrani/offercast/internal/ingest"
	"github.com/nzahrani/offercast/internal/notification"
	"github.com/nzahrani/offercast/internal/storage"
)

// Server holds the wired services behind the admin API routes.
type Server struct {
	st       storage.Storage
	authSvc  *auth.Service
	notif    *notification.Service
	ingest   *ingest.Service
	engine   *distribution.Engine
	shipping ShippingImporter
	alerter  *alerting.Alerter
}

func NewServer(st storage.Storage, authSvc *auth.Service, notif *notification.Service, ing *ingest.Service, engine *distribution.Engine) *Server {
	return &Server{
		st:      st,
		authSvc: authSvc,
		notif:   notif,
		ingest:  ing,
		engine:  engine,
	}
}

// WithShippingImporter enables the shipping price-list import endpoint.
func (s *Server) WithShippingImporter(imp ShippingImporter) *Server {
	s.shipping = imp
	return s
}

// WithAlerter enables webhook alerts for distribution runs that end
// with failures.
func (s *Server) WithAlerter(a *alerting.Alerter) *Server {
	s.alerter = a
	return s
}

// Register mounts every admin route on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	s.registerCatalogRoutes(mux)
	s.registerSubscriberRoutes(mux)
	s.registerIngestRoutes(mux)
	s.registerSettingsRoutes(mux)
	s.registerAuthRoutes(mux)
}

// withAuth wraps a handler with token validation when auth is configured.
func (s *Server) withAuth(h http.HandlerFunc) http.Handler {
	if s.authSvc == nil {
		return h
	}
	return s.authSvc.Middleware(h)
}

// allow enforces obj/act for the request's token. A false return means the
// error response has already been written.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, obj, act string) bool {
	if s.authSvc == nil {
		return true
	}
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	allowed, err := s.authSvc.Enforce(token.UserID, obj, act)
	if err == nil && !allowed && token.Role != "" {
		allowed, err = s.authSvc.Enforce(token.Role, obj, act)
	}
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return false
	}
	if !allowed {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// splitPath trims prefix from the request path and returns the remaining
// segments, or nil when nothing follows the prefix.
func splitPath(r *http.Request, prefix string) []string {
	p := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}
