package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"recital/internal/logging"
	"recital/internal/recitals"
)

type contextKey string

const userContextKey contextKey = "recital-user"

// requireUser resolves the bearer token to a user and rejects the request
// when the token is missing, unknown, or expired.
func (s *apiServer) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := s.daemon.store.UserByToken(r.Context(), token, time.Now())
		if err != nil {
			s.log().Error("token lookup failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	}
}

func currentUser(r *http.Request) *recitals.User {
	user, _ := r.Context().Value(userContextKey).(*recitals.User)
	return user
}

type loginRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	EmailVerified bool   `json:"email_verified"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// handleLogin accepts a verified identity assertion from the login frontend
// and exchanges it for a bearer token. The identity provider interaction
// (and its CSRF handling) happens upstream of this endpoint.
func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := s.daemon.store.UpsertUser(r.Context(), &recitals.User{
		Email:         req.Email,
		Name:          req.Name,
		Picture:       req.Picture,
		EmailVerified: req.EmailVerified,
	})
	if err != nil {
		s.log().Error("login upsert failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ttl := time.Duration(s.daemon.cfg.Auth.TokenTTLHours) * time.Hour
	token, err := s.daemon.store.CreateToken(r.Context(), user.ID, ttl)
	if err != nil {
		s.log().Error("token issue failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token.Token,
		TokenType:   "bearer",
		ExpiresIn:   int(ttl.Seconds()),
		Scope:       "",
	})
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if err := s.daemon.store.DeleteToken(r.Context(), token); err != nil {
		s.log().Error("token revoke failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

func (s *apiServer) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := currentUser(r)
	s.writeJSON(w, http.StatusOK, userResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Picture:       user.Picture,
		EmailVerified: user.EmailVerified,
	})
}
