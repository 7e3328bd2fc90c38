package api

import (
	"net/http"
	"time"

	"github.com/nzahrani/offercast/internal/auth"
	"github.com/nzahrani/offercast/internal/storage"
)

// loginTokenTTL bounds tokens issued through the login endpoint; API
// tokens created explicitly can carry their own expiry.
const loginTokenTTL = 24 * time.Hour

func (s *Server) registerAuthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	if s.authSvc != nil {
		mux.Handle("/api/v1/auth/register",
			s.authSvc.Middleware(s.authSvc.RequirePermission("users", "write", http.HandlerFunc(s.handleRegister))))
		mux.Handle("/api/v1/auth/tokens", s.authSvc.Middleware(http.HandlerFunc(s.handleCreateToken)))
	}
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	User      *storage.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.authSvc == nil {
		http.Error(w, "auth not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.authSvc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	expires := time.Now().Add(loginTokenTTL)
	token, raw, err := s.authSvc.CreateToken(r.Context(), user.ID, "login", user.Role, &expires)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: raw, ExpiresAt: token.ExpiresAt, User: user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = "viewer"
	}

	user, err := s.authSvc.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleCreateToken mints a long-lived API token for the caller. Expiry
// accepts "never", a Go duration, a date, or shorthand like "30d".
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name      string `json:"name"`
		ExpiresIn string `json:"expires_in"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		var err error
		expiresAt, err = auth.ParseExpirationDuration(req.ExpiresIn)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	created, raw, err := s.authSvc.CreateToken(r.Context(), token.UserID, req.Name, token.Role, expiresAt)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{Token: raw, ExpiresAt: created.ExpiresAt})
}
