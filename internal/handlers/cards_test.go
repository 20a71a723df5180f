package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/ranking"
)

func TestCardHandlerMe(t *testing.T) {
	stack := newTestStack(t, false)
	stack.follow(t, alice, bob)
	stack.follow(t, bob, alice)
	handler := CardHandler{Cards: stack.cards}

	rec := httptest.NewRecorder()
	handler.Me(rec, newActorRequest(t, http.MethodGet, "/api/v1/cards/me", alice.PublicID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var card cards.CardView
	decodeBody(t, rec, &card)
	if card.FriendsCount != 1 || card.Rank != ranking.RankThree || card.Suit != ranking.SuitClubs {
		t.Fatalf("unexpected card %+v", card)
	}
	if card.Progression.NextRank == nil || *card.Progression.NextRank != ranking.RankFour {
		t.Fatalf("expected progression toward 4 got %+v", card.Progression)
	}

	rec = httptest.NewRecorder()
	handler.Me(rec, newActorRequest(t, http.MethodGet, "/api/v1/cards/me", "pid-ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown profile got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Me(rec, newActorRequest(t, http.MethodGet, "/api/v1/cards/me", "", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestCardHandlerFriends(t *testing.T) {
	stack := newTestStack(t, false)
	stack.follow(t, alice, carol)
	stack.follow(t, bob, alice)
	handler := CardHandler{Cards: stack.cards}

	rec := httptest.NewRecorder()
	handler.Friends(rec, newActorRequest(t, http.MethodGet, "/api/v1/cards/friends", alice.PublicID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp friendCardsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Cards) != 2 {
		t.Fatalf("expected two friend cards got %+v", resp.Cards)
	}
	if resp.Cards[0].Profile.PublicID != bob.PublicID || resp.Cards[1].Profile.PublicID != carol.PublicID {
		t.Fatalf("expected cards ordered by name got %+v", resp.Cards)
	}
	if resp.Cards[0].Card.Suit != ranking.SuitDiamonds {
		t.Fatalf("expected bob's card to be diamonds got %s", resp.Cards[0].Card.Suit)
	}

	rec = httptest.NewRecorder()
	handler.Friends(rec, newActorRequest(t, http.MethodGet, "/api/v1/cards/friends", carol.PublicID+"-lonely", nil))
	var empty map[string]json.RawMessage
	decodeBody(t, rec, &empty)
	if string(empty["cards"]) != "[]" {
		t.Fatalf("expected empty array got %s", empty["cards"])
	}
}

func TestCardHandlerPublish(t *testing.T) {
	disabled := newTestStack(t, false)
	rec := httptest.NewRecorder()
	CardHandler{Cards: disabled.cards}.Publish(rec, newActorRequest(t, http.MethodPost, "/api/v1/cards/publish", alice.PublicID, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when publishing is disabled got %d", rec.Code)
	}

	stack := newTestStack(t, true)
	handler := CardHandler{Cards: stack.cards}

	rec = httptest.NewRecorder()
	handler.Publish(rec, newActorRequest(t, http.MethodPost, "/api/v1/cards/publish", alice.PublicID, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["location"] != "https://cdn.example.com/cards/pid-alice.json" {
		t.Fatalf("unexpected location %q", resp["location"])
	}
	if _, ok := stack.storage.saved["cards/pid-alice.json"]; !ok {
		t.Fatal("expected snapshot to be uploaded")
	}

	rec = httptest.NewRecorder()
	handler.Publish(rec, newActorRequest(t, http.MethodGet, "/api/v1/cards/publish", alice.PublicID, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
}
