package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/relationships"
)

// RelationshipHandler exposes the follow/request state machine over HTTP.
type RelationshipHandler struct {
	Relationships RelationshipService
	Limiter       RateLimiter
}

// Send handles POST /api/v1/relationships/send.
func (h RelationshipHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r, http.MethodPost, "send")
	if !ok {
		return
	}
	ctx := r.Context()

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	rel, err := h.Relationships.Send(ctx, actor, req.Username)
	if err != nil {
		respondServiceError(ctx, w, "send request", err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, relationshipResponse{Relationship: &rel})
}

// Respond handles POST /api/v1/relationships/respond.
func (h RelationshipHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r, http.MethodPost, "respond")
	if !ok {
		return
	}
	ctx := r.Context()

	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		respondError(ctx, w, http.StatusBadRequest, "requestId is required")
		return
	}
	decision, err := relationships.ParseDecision(req.Decision)
	if err != nil {
		respondServiceError(ctx, w, "respond", err)
		return
	}

	rel, err := h.Relationships.Respond(ctx, actor, requestID, decision)
	if err != nil {
		respondServiceError(ctx, w, "respond", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, relationshipResponse{Relationship: rel, Removed: rel == nil})
}

// Remove handles POST /api/v1/relationships/remove.
func (h RelationshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r, http.MethodPost, "remove")
	if !ok {
		return
	}
	ctx := r.Context()

	var req removeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Relationships.Remove(ctx, actor, strings.TrimSpace(req.PublicID)); err != nil {
		respondServiceError(ctx, w, "remove relationship", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, relationshipResponse{Removed: true})
}

// Followers handles GET /api/v1/relationships/followers.
func (h RelationshipHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "followers", func(ctx context.Context, actor string) ([]models.Connection, error) {
		return h.Relationships.ListFollowers(ctx, actor)
	})
}

// Following handles GET /api/v1/relationships/following.
func (h RelationshipHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "following", func(ctx context.Context, actor string) ([]models.Connection, error) {
		return h.Relationships.ListFollowing(ctx, actor)
	})
}

// Pending handles GET /api/v1/relationships/pending.
func (h RelationshipHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "pending", func(ctx context.Context, actor string) ([]models.Connection, error) {
		return h.Relationships.ListPending(ctx, actor)
	})
}

func (h RelationshipHandler) list(w http.ResponseWriter, r *http.Request, name string, load func(context.Context, string) ([]models.Connection, error)) {
	actor, ok := h.begin(w, r, http.MethodGet, "")
	if !ok {
		return
	}
	ctx := r.Context()

	connections, err := load(ctx, actor)
	if err != nil {
		respondServiceError(ctx, w, "list "+name, err)
		return
	}
	if connections == nil {
		connections = []models.Connection{}
	}
	respondJSON(ctx, w, http.StatusOK, connectionsResponse{Connections: connections})
}

// begin checks method, dependencies, authentication and, for mutations, the
// rate limit. An empty scope skips rate limiting.
func (h RelationshipHandler) begin(w http.ResponseWriter, r *http.Request, method, scope string) (string, bool) {
	if !allowMethod(w, r, method) {
		return "", false
	}
	if h.Relationships == nil {
		logging.FromContext(r.Context()).Error("relationship service unavailable")
		respondError(r.Context(), w, http.StatusInternalServerError, "relationship services unavailable")
		return "", false
	}
	actor, ok := actorID(w, r)
	if !ok {
		return "", false
	}
	if scope != "" && !allowRequest(h.Limiter, w, r, "relationships."+scope) {
		return "", false
	}
	return actor, true
}

type sendRequest struct {
	Username string `json:"username"`
}

type respondRequest struct {
	RequestID string `json:"requestId"`
	Decision  string `json:"decision"`
}

type removeRequest struct {
	PublicID string `json:"publicId"`
}

type relationshipResponse struct {
	Relationship *models.Relationship `json:"relationship"`
	Removed      bool                 `json:"removed,omitempty"`
}

type connectionsResponse struct {
	Connections []models.Connection `json:"connections"`
}
