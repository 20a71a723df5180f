package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendcards/backend/internal/auth"
	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/repositories"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)

// AuthHandler implements signup, login and token refresh.
type AuthHandler struct {
	Profiles ProfileStore
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Profiles == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasProfiles", h.Profiles != nil, "hasSessions", h.Sessions != nil)
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}
	if !allowRequest(h.Limiter, w, r, "login") {
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	profile, err := h.Profiles.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login profile lookup failed", "error", err)
			respondServiceError(ctx, w, "login", err)
			return
		}
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "publicId", profile.PublicID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, profile.PublicID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "publicId", profile.PublicID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{PublicID: profile.PublicID, Tokens: tokens})
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Profiles == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasProfiles", h.Profiles != nil, "hasSessions", h.Sessions != nil)
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}
	if !allowRequest(h.Limiter, w, r, "signup") {
		return
	}

	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	if req.Email == "" || req.Password == "" || req.Username == "" {
		respondError(ctx, w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		respondError(ctx, w, http.StatusBadRequest, "username must be 3-32 lowercase letters, digits, dots or underscores")
		return
	}
	if len(req.Password) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	profile := models.Profile{
		PublicID:     uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		Password:     string(hashed),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		InterestTags: normalizeTags(req.InterestTags),
		IsPublic:     req.IsPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("signup failed to create profile", "error", err)
		respondServiceError(ctx, w, "signup", err)
		return
	}

	tokens, err := h.Sessions.Issue(ctx, profile.PublicID)
	if err != nil {
		logger.Error("signup failed to issue session", "error", err, "publicId", profile.PublicID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("profile created", "publicId", profile.PublicID)
	respondJSON(ctx, w, http.StatusCreated, authResponse{PublicID: profile.PublicID, Tokens: tokens})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondError(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondError(ctx, w, status, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	DisplayName  string   `json:"displayName"`
	InterestTags []string `json:"interestTags"`
	IsPublic     bool     `json:"isPublic"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	PublicID string               `json:"publicId,omitempty"`
	Tokens   models.SessionTokens `json:"tokens"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// normalizeTags trims, lowercases and de-duplicates interest tags, dropping empties.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
