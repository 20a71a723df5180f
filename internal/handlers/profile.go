package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/models"
)

// ProfileHandler lets the caller edit the fields that feed their card.
type ProfileHandler struct {
	Profiles ProfileStore
	Cards    CardService
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Update handles PATCH /api/v1/profile. Interests drive the suit, so the
// caller's cached card is dropped after a successful write.
func (h ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPatch) {
		return
	}

	ctx := r.Context()
	if h.Profiles == nil {
		logging.FromContext(ctx).Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "profile services unavailable")
		return
	}

	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if !allowRequest(h.Limiter, w, r, "profile") {
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := models.ProfileSettings{IsPublic: req.IsPublic}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		settings.DisplayName = &name
	}
	if req.InterestTags != nil {
		settings.InterestTags = normalizeTags(*req.InterestTags)
	}
	if settings.DisplayName == nil && settings.InterestTags == nil && settings.IsPublic == nil {
		respondError(ctx, w, http.StatusBadRequest, "no settings provided")
		return
	}

	now := time.Now().UTC()
	if h.NowFunc != nil {
		now = h.NowFunc()
	}

	profile, err := h.Profiles.UpdateSettings(ctx, actor, settings, now)
	if err != nil {
		respondServiceError(ctx, w, "update profile", err)
		return
	}

	if h.Cards != nil {
		h.Cards.Invalidate(ctx, actor)
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse{
		ProfileSummary: profile.Summary(),
		InterestTags:   profile.InterestTags,
		IsPublic:       profile.IsPublic,
	})
}

type profileUpdateRequest struct {
	DisplayName  *string   `json:"displayName"`
	InterestTags *[]string `json:"interestTags"`
	IsPublic     *bool     `json:"isPublic"`
}

type profileResponse struct {
	models.ProfileSummary
	InterestTags []string `json:"interestTags"`
	IsPublic     bool     `json:"isPublic"`
}
