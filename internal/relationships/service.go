// Package relationships implements the directed follow/friend graph and the
// only legal transitions on its records.
package relationships

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/metrics"
	"github.com/friendcards/backend/internal/models"
)

// Service is the relationship state machine. Every mutation is scoped to an
// actor and checked before anything is written.
type Service struct {
	store    Store
	profiles ProfileDirectory
	cards    CardInvalidator

	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new record identifiers are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService wires the state machine to its store, the profile directory,
// and the card cache it keeps consistent. cards may be nil.
func NewService(store Store, profiles ProfileDirectory, cards CardInvalidator, opts ...Option) *Service {
	if store == nil || profiles == nil {
		panic("relationships: store and profile directory must not be nil")
	}
	s := &Service{
		store:    store,
		profiles: profiles,
		cards:    cards,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send creates or revives the actor's record toward the profile named
// targetUsername. Public targets are followed immediately; private targets
// receive a pending request.
func (s *Service) Send(ctx context.Context, actorID, targetUsername string) (models.Relationship, error) {
	ctx, span := logging.StartSpan(ctx, "relationships.send", slog.String("actorId", actorID))
	defer span.End()

	rel, err := s.send(ctx, actorID, targetUsername)
	failUnexpected(span, err)
	return rel, err
}

func (s *Service) send(ctx context.Context, actorID, targetUsername string) (models.Relationship, error) {
	logger := logging.FromContext(ctx)

	targetUsername = strings.TrimSpace(targetUsername)
	if actorID == "" || targetUsername == "" {
		return models.Relationship{}, s.reject("send", "missing_party", fmt.Errorf("%w: actor and target are required", models.ErrInvalidOperation))
	}

	target, err := s.profiles.FindByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Relationship{}, s.reject("send", "target_not_found", fmt.Errorf("%w: user %q", models.ErrNotFound, targetUsername))
		}
		return models.Relationship{}, fmt.Errorf("resolve target: %w", err)
	}
	if target.PublicID == actorID {
		return models.Relationship{}, s.reject("send", "self", fmt.Errorf("%w: cannot send a request to yourself", models.ErrInvalidOperation))
	}

	status := models.StatusPending
	if target.IsPublic {
		status = models.StatusAccepted
	}
	now := s.now()

	existing, err := s.store.FindByOrderedPair(ctx, actorID, target.PublicID)
	switch {
	case err == nil:
		switch existing.Status {
		case models.StatusPending:
			return models.Relationship{}, s.reject("send", "already_sent", fmt.Errorf("%w: request already sent", models.ErrConflict))
		case models.StatusAccepted:
			return models.Relationship{}, s.reject("send", "already_following", fmt.Errorf("%w: already following", models.ErrConflict))
		}
		if err := s.store.UpdateStatus(ctx, existing.ID, existing.Status, status, now); err != nil {
			return models.Relationship{}, s.storeWriteError("send", err)
		}
		existing.Status = status
		existing.UpdatedAt = now
		s.committed("resend")
		logger.Info("relationship request resent", "relationshipId", existing.ID, "status", status)
		if status == models.StatusAccepted {
			s.invalidate(ctx, actorID, target.PublicID)
		}
		return existing, nil
	case errors.Is(err, models.ErrNotFound):
	default:
		return models.Relationship{}, fmt.Errorf("lookup existing relationship: %w", err)
	}

	rel := models.Relationship{
		ID:         s.newID(),
		SenderID:   actorID,
		ReceiverID: target.PublicID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Insert(ctx, rel); err != nil {
		return models.Relationship{}, s.storeWriteError("send", err)
	}

	s.committed("send_" + string(status))
	logger.Info("relationship request sent", "relationshipId", rel.ID, "receiverId", rel.ReceiverID, "status", status)
	if status == models.StatusAccepted {
		s.invalidate(ctx, actorID, target.PublicID)
	}
	return rel, nil
}

// Respond applies the receiver's decision to the record. On a pending record
// it settles the request. On an accepted record (an inbound follow) accept
// follows back and decline removes the follower. The returned record is nil
// when the record was deleted.
func (s *Service) Respond(ctx context.Context, actorID, requestID string, decision Decision) (*models.Relationship, error) {
	ctx, span := logging.StartSpan(ctx, "relationships.respond",
		slog.String("actorId", actorID),
		slog.String("relationshipId", requestID),
		slog.String("decision", string(decision)),
	)
	defer span.End()

	rel, err := s.respond(ctx, actorID, requestID, decision)
	failUnexpected(span, err)
	return rel, err
}

func (s *Service) respond(ctx context.Context, actorID, requestID string, decision Decision) (*models.Relationship, error) {
	if decision != DecisionAccept && decision != DecisionDecline {
		return nil, s.reject("respond", "bad_decision", fmt.Errorf("%w: decision must be accept or decline", models.ErrInvalidOperation))
	}

	record, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.reject("respond", "not_found", fmt.Errorf("%w: request %q", models.ErrNotFound, requestID))
		}
		return nil, fmt.Errorf("lookup request: %w", err)
	}
	if record.ReceiverID != actorID {
		return nil, s.reject("respond", "not_receiver", fmt.Errorf("%w: only the receiver may respond", models.ErrForbidden))
	}

	t, err := resolveTransition(record, decision)
	if err != nil {
		return nil, s.reject("respond", "terminal", err)
	}

	switch t := t.(type) {
	case answerRequest:
		return s.answer(ctx, t)
	case followBack:
		return s.followBack(ctx, t)
	case removeFollower:
		return nil, s.removeFollower(ctx, t)
	default:
		panic(fmt.Sprintf("relationships: unhandled transition %T", t))
	}
}

func (s *Service) answer(ctx context.Context, t answerRequest) (*models.Relationship, error) {
	now := s.now()
	if err := s.store.UpdateStatus(ctx, t.record.ID, models.StatusPending, t.to, now); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, s.reject("respond", "already_answered", fmt.Errorf("%w: request was already answered", models.ErrConflict))
		}
		return nil, s.storeWriteError("respond", err)
	}

	updated := t.record
	updated.Status = t.to
	updated.UpdatedAt = now
	s.committed(t.kind() + "_" + string(t.to))
	logging.FromContext(ctx).Info("relationship request answered", "relationshipId", updated.ID, "status", updated.Status)

	if t.to == models.StatusAccepted {
		s.invalidate(ctx, updated.SenderID, updated.ReceiverID)
	}
	return &updated, nil
}

func (s *Service) followBack(ctx context.Context, t followBack) (*models.Relationship, error) {
	actorID := t.record.ReceiverID
	followerID := t.record.SenderID
	logger := logging.FromContext(ctx)
	now := s.now()

	reverse, err := s.store.FindByOrderedPair(ctx, actorID, followerID)
	switch {
	case err == nil:
		if reverse.Status == models.StatusAccepted {
			logger.Debug("follow back already in place", "relationshipId", reverse.ID)
			return &reverse, nil
		}
		if err := s.store.UpdateStatus(ctx, reverse.ID, reverse.Status, models.StatusAccepted, now); err != nil {
			return nil, s.storeWriteError("respond", err)
		}
		reverse.Status = models.StatusAccepted
		reverse.UpdatedAt = now
	case errors.Is(err, models.ErrNotFound):
		reverse = models.Relationship{
			ID:         s.newID(),
			SenderID:   actorID,
			ReceiverID: followerID,
			Status:     models.StatusAccepted,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Insert(ctx, reverse); err != nil {
			return nil, s.storeWriteError("respond", err)
		}
	default:
		return nil, fmt.Errorf("lookup reverse relationship: %w", err)
	}

	s.committed(t.kind())
	logger.Info("followed back", "relationshipId", reverse.ID, "followerId", followerID)
	s.invalidate(ctx, actorID, followerID)
	return &reverse, nil
}

func (s *Service) removeFollower(ctx context.Context, t removeFollower) error {
	if err := s.store.Delete(ctx, t.record.ID, models.StatusAccepted); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.reject("respond", "not_found", fmt.Errorf("%w: follower already removed", models.ErrNotFound))
		}
		return s.storeWriteError("respond", err)
	}

	s.committed(t.kind())
	logging.FromContext(ctx).Info("follower removed", "relationshipId", t.record.ID, "followerId", t.record.SenderID)
	s.invalidate(ctx, t.record.SenderID, t.record.ReceiverID)
	return nil
}

// Remove deletes one accepted record between the actor and otherID. When both
// directions exist only the actor's outbound record is removed.
func (s *Service) Remove(ctx context.Context, actorID, otherID string) error {
	ctx, span := logging.StartSpan(ctx, "relationships.remove", slog.String("actorId", actorID))
	defer span.End()

	err := s.remove(ctx, actorID, otherID)
	failUnexpected(span, err)
	return err
}

func (s *Service) remove(ctx context.Context, actorID, otherID string) error {
	if actorID == "" || otherID == "" {
		return s.reject("remove", "missing_party", fmt.Errorf("%w: both parties are required", models.ErrInvalidOperation))
	}
	if actorID == otherID {
		return s.reject("remove", "self", fmt.Errorf("%w: cannot remove yourself", models.ErrInvalidOperation))
	}

	record, err := s.store.FindAcceptedBetween(ctx, actorID, otherID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.reject("remove", "not_found", fmt.Errorf("%w: no relationship with %q", models.ErrNotFound, otherID))
		}
		return fmt.Errorf("lookup relationship: %w", err)
	}

	if err := s.store.Delete(ctx, record.ID, models.StatusAccepted); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.reject("remove", "not_found", fmt.Errorf("%w: relationship already removed", models.ErrNotFound))
		}
		return s.storeWriteError("remove", err)
	}

	s.committed("remove")
	logging.FromContext(ctx).Info("relationship removed", "relationshipId", record.ID, "otherId", otherID)
	s.invalidate(ctx, actorID, otherID)
	return nil
}

// ListFollowers returns accepted records received by the actor.
func (s *Service) ListFollowers(ctx context.Context, actorID string) ([]models.Connection, error) {
	return s.listConnections(ctx, actorID, RoleReceiver)
}

// ListFollowing returns accepted records sent by the actor.
func (s *Service) ListFollowing(ctx context.Context, actorID string) ([]models.Connection, error) {
	return s.listConnections(ctx, actorID, RoleSender)
}

// ListPending returns requests awaiting the actor's response.
func (s *Service) ListPending(ctx context.Context, actorID string) ([]models.Connection, error) {
	records, err := s.store.ListPending(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return s.connections(ctx, actorID, records)
}

func (s *Service) listConnections(ctx context.Context, actorID string, role Role) ([]models.Connection, error) {
	records, err := s.store.ListAccepted(ctx, actorID, role)
	if err != nil {
		return nil, fmt.Errorf("list accepted as %s: %w", role, err)
	}
	return s.connections(ctx, actorID, records)
}

func (s *Service) connections(ctx context.Context, actorID string, records []models.Relationship) ([]models.Connection, error) {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Counterparty(actorID))
	}

	profiles, err := s.profiles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load counterparty profiles: %w", err)
	}

	out := make([]models.Connection, 0, len(records))
	for _, rec := range records {
		otherID := rec.Counterparty(actorID)
		summary := models.ProfileSummary{PublicID: otherID}
		if profile, ok := profiles[otherID]; ok {
			summary = profile.Summary()
		}
		out = append(out, models.Connection{
			RelationshipID: rec.ID,
			Counterparty:   summary,
			Status:         rec.Status,
			Since:          rec.UpdatedAt,
		})
	}
	return out, nil
}

// FriendIDs returns the distinct counterparties linked to publicID by an
// accepted record in either direction.
func (s *Service) FriendIDs(ctx context.Context, publicID string) ([]string, error) {
	return FriendIDs(ctx, s.store, publicID)
}

// AcceptedLister is the subset of Store needed to enumerate friends.
type AcceptedLister interface {
	ListAccepted(ctx context.Context, publicID string, role Role) ([]models.Relationship, error)
}

// FriendIDs collects the distinct counterparties of publicID's accepted
// records, outbound first.
func FriendIDs(ctx context.Context, lister AcceptedLister, publicID string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, role := range []Role{RoleSender, RoleReceiver} {
		records, err := lister.ListAccepted(ctx, publicID, role)
		if err != nil {
			return nil, fmt.Errorf("list accepted as %s: %w", role, err)
		}
		for _, rec := range records {
			other := rec.Counterparty(publicID)
			if _, ok := seen[other]; ok {
				continue
			}
			seen[other] = struct{}{}
			ids = append(ids, other)
		}
	}
	return ids, nil
}

func (s *Service) invalidate(ctx context.Context, publicIDs ...string) {
	if s.cards == nil {
		return
	}
	for _, id := range publicIDs {
		s.cards.Invalidate(ctx, id)
	}
}

// storeWriteError reports a lost write race as ErrConflict.
func (s *Service) storeWriteError(operation string, err error) error {
	if errors.Is(err, models.ErrConflict) {
		return s.reject(operation, "concurrent_write", fmt.Errorf("%w: relationship changed concurrently", models.ErrConflict))
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// failUnexpected marks the span failed unless err is a rule outcome.
func failUnexpected(span *logging.Span, err error) {
	switch {
	case err == nil,
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrForbidden),
		errors.Is(err, models.ErrInvalidOperation),
		errors.Is(err, models.ErrConflict):
		return
	}
	span.Fail(err)
}

func (s *Service) reject(operation, reason string, err error) error {
	metrics.RelationshipRejections.WithLabelValues(operation, reason).Inc()
	return err
}

func (s *Service) committed(transition string) {
	metrics.RelationshipTransitions.WithLabelValues(transition).Inc()
}
