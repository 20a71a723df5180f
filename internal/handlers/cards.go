package handlers

import (
	"net/http"

	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/logging"
)

// CardHandler serves rank/suit cards.
type CardHandler struct {
	Cards   CardService
	Limiter RateLimiter
}

// Me handles GET /api/v1/cards/me.
func (h CardHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	ctx := r.Context()

	card, err := h.Cards.Get(ctx, actor)
	if err != nil {
		respondServiceError(ctx, w, "get card", err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, card)
}

// Friends handles GET /api/v1/cards/friends.
func (h CardHandler) Friends(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	ctx := r.Context()

	friendCards, err := h.Cards.ListFriendCards(ctx, actor)
	if err != nil {
		respondServiceError(ctx, w, "list friend cards", err)
		return
	}
	if friendCards == nil {
		friendCards = []cards.FriendCard{}
	}
	respondJSON(ctx, w, http.StatusOK, friendCardsResponse{Cards: friendCards})
}

// Publish handles POST /api/v1/cards/publish.
func (h CardHandler) Publish(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	ctx := r.Context()
	if !allowRequest(h.Limiter, w, r, "cards.publish") {
		return
	}

	location, err := h.Cards.Publish(ctx, actor)
	if err != nil {
		respondServiceError(ctx, w, "publish card", err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"location": location})
}

func (h CardHandler) begin(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	if !allowMethod(w, r, method) {
		return "", false
	}
	if h.Cards == nil {
		logging.FromContext(r.Context()).Error("card service unavailable")
		respondError(r.Context(), w, http.StatusInternalServerError, "card services unavailable")
		return "", false
	}
	return actorID(w, r)
}

type friendCardsResponse struct {
	Cards []cards.FriendCard `json:"cards"`
}
