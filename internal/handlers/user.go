// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openholdem/poker-service/internal/auth"
	"github.com/openholdem/poker-service/internal/database"
)

// UserHandler serves account registration, login, guest sessions, and
// identity lookup. Users may be nil when the database is disabled; only
// guest sessions work in that mode.
type UserHandler struct {
	Logger *logrus.Logger
	Users  *database.Users
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Guest    bool   `json:"guest,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})
}

// Register creates an account and issues a session cookie.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.Users == nil {
		writeError(w, http.StatusServiceUnavailable, "registration is disabled")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 {
		writeError(w, http.StatusBadRequest, "username must be at least 3 characters")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := h.Users.Create(r.Context(), req.Username, req.Password)
	if err != nil {
		h.Logger.Warnf("failed to create user %q: %v", req.Username, err)
		writeError(w, http.StatusConflict, "could not create user")
		return
	}

	token, err := auth.CreateJWT(user.ID.String(), user.Username)
	if err != nil {
		h.Logger.Errorf("failed to sign session token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID.String(), Username: user.Username})
}

// Login authenticates credentials and issues a session cookie.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Users == nil {
		writeError(w, http.StatusServiceUnavailable, "login is disabled")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.Logger.Errorf("login failed for %q: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := auth.CreateJWT(user.ID.String(), user.Username)
	if err != nil {
		h.Logger.Errorf("failed to sign session token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID.String(), Username: user.Username})
}

type guestRequest struct {
	Name string `json:"name"`
}

// Guest issues a session for an ephemeral identity with no account
// behind it. The identity lives as long as the signed token does.
func (h *UserHandler) Guest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "guest"
	}

	uid := uuid.NewString()
	token, err := auth.CreateJWT(uid, name)
	if err != nil {
		h.Logger.Errorf("failed to sign guest token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, userResponse{ID: uid, Username: name, Guest: true})
}

// Me resolves the session cookie to the caller's identity.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	uid, name, err := auth.AuthenticateJWT(cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: uid, Username: name})
}
