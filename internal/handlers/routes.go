package handlers

import (
	"net/http"
	"time"

	"github.com/friendcards/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Profiles         ProfileStore
	Sessions         SessionManager
	Relationships    RelationshipService
	Cards            CardService
	Limiter          RateLimiter
	Database         Pinger
	Metrics          http.Handler
	OperationTimeout time.Duration
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Everything
// under /api/v1 except the auth endpoints requires a bearer token.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	auth := AuthHandler{Profiles: deps.Profiles, Sessions: deps.Sessions, Limiter: deps.Limiter}
	profile := ProfileHandler{Profiles: deps.Profiles, Cards: deps.Cards, Limiter: deps.Limiter}
	rels := RelationshipHandler{Relationships: deps.Relationships, Limiter: deps.Limiter}
	cardsHandler := CardHandler{Cards: deps.Cards, Limiter: deps.Limiter}

	timeout := middleware.OperationTimeout(deps.OperationTimeout)
	var verifier middleware.TokenVerifier
	if deps.Sessions != nil {
		verifier = deps.Sessions
	}
	authenticate := middleware.Authenticate(verifier)
	protected := func(h http.HandlerFunc) http.Handler {
		return timeout(authenticate(h))
	}

	mux.HandleFunc("/healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	mux.Handle("/api/v1/auth/signup", timeout(http.HandlerFunc(auth.SignUp)))
	mux.Handle("/api/v1/auth/login", timeout(http.HandlerFunc(auth.Login)))
	mux.Handle("/api/v1/auth/refresh", timeout(http.HandlerFunc(auth.Refresh)))

	mux.Handle("/api/v1/profile", protected(profile.Update))

	mux.Handle("/api/v1/relationships/send", protected(rels.Send))
	mux.Handle("/api/v1/relationships/respond", protected(rels.Respond))
	mux.Handle("/api/v1/relationships/remove", protected(rels.Remove))
	mux.Handle("/api/v1/relationships/followers", protected(rels.Followers))
	mux.Handle("/api/v1/relationships/following", protected(rels.Following))
	mux.Handle("/api/v1/relationships/pending", protected(rels.Pending))

	mux.Handle("/api/v1/cards/me", protected(cardsHandler.Me))
	mux.Handle("/api/v1/cards/friends", protected(cardsHandler.Friends))
	mux.Handle("/api/v1/cards/publish", protected(cardsHandler.Publish))
}
