package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/compendio/internal/auth"
	"github.com/iudanet/compendio/internal/localstate"
	"github.com/iudanet/compendio/internal/models"
	"github.com/iudanet/compendio/pkg/api"
)

// AuthHandler serves admin login and token refresh.
type AuthHandler struct {
	logger       *slog.Logger
	passwordHash string
	sessions     *localstate.Store
	jwtConfig    JWTConfig
}

// NewAuthHandler creates the auth handler. passwordHash is the Argon2id
// hash of the admin password from the configuration.
func NewAuthHandler(logger *slog.Logger, passwordHash string, sessions *localstate.Store, jwtConfig JWTConfig) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		passwordHash: passwordHash,
		sessions:     sessions,
		jwtConfig:    jwtConfig,
	}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.passwordHash == "" {
		h.logger.Warn("login attempted but no admin password is configured")
		sendError(w, h.logger, http.StatusForbidden, "admin password not configured, run: compendio passwd")
		return
	}

	if err := auth.VerifyPassword(req.Password, h.passwordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			h.logger.Warn("admin login failed", "remote_addr", r.RemoteAddr)
			sendError(w, h.logger, http.StatusUnauthorized, "wrong password")
			return
		}
		sendError(w, h.logger, http.StatusInternalServerError, "cannot verify password")
		return
	}

	h.issueTokens(w, r)
	h.logger.Info("admin login", "remote_addr", r.RemoteAddr)
}

// Refresh handles POST /api/v1/auth/refresh. The presented refresh token
// is consumed and a fresh pair is issued.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.sessions.GetSession(req.RefreshToken); err != nil {
		if errors.Is(err, localstate.ErrSessionNotFound) {
			sendError(w, h.logger, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sendError(w, h.logger, http.StatusInternalServerError, "cannot look up session")
		return
	}

	if err := h.sessions.DeleteSession(req.RefreshToken); err != nil {
		h.logger.Warn("cannot delete consumed session", "error", err)
	}

	h.issueTokens(w, r)
}

func (h *AuthHandler) issueTokens(w http.ResponseWriter, r *http.Request) {
	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig)
	if err != nil {
		h.logger.Error("cannot generate access token", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot generate token")
		return
	}

	session := models.RefreshSession{
		ID:        uuid.NewString(),
		ExpiresAt: time.Now().Add(h.jwtConfig.RefreshTokenTTL).Unix(),
	}
	if err := h.sessions.SaveSession(session); err != nil {
		h.logger.Error("cannot save session", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot save session")
		return
	}

	sendJSON(w, http.StatusOK, api.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: session.ID,
		ExpiresIn:    expiresIn,
	})
}
