package relationships

import (
	"fmt"
	"strings"

	"github.com/friendcards/backend/internal/models"
)

// Decision is the receiver's answer to a relationship record.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// ParseDecision normalizes and validates a client-supplied decision.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionAccept, DecisionDecline:
		return d, nil
	}
	return "", fmt.Errorf("%w: decision must be accept or decline", models.ErrInvalidOperation)
}

// transition is the closed set of effects a respond call can have. The
// current status of the record picks the variant; the client only supplies
// the decision.
type transition interface {
	kind() string
}

// answerRequest settles a pending request as accepted or declined.
type answerRequest struct {
	record models.Relationship
	to     models.RelationshipStatus
}

// followBack reciprocates an accepted inbound follow.
type followBack struct {
	record models.Relationship
}

// removeFollower deletes an accepted inbound follow.
type removeFollower struct {
	record models.Relationship
}

func (answerRequest) kind() string  { return "answer_request" }
func (followBack) kind() string     { return "follow_back" }
func (removeFollower) kind() string { return "remove_follower" }

// resolveTransition maps (current status, decision) to a transition. Declined
// records are terminal for respond.
func resolveTransition(record models.Relationship, decision Decision) (transition, error) {
	switch record.Status {
	case models.StatusPending:
		to := models.StatusDeclined
		if decision == DecisionAccept {
			to = models.StatusAccepted
		}
		return answerRequest{record: record, to: to}, nil
	case models.StatusAccepted:
		if decision == DecisionAccept {
			return followBack{record: record}, nil
		}
		return removeFollower{record: record}, nil
	case models.StatusDeclined:
		return nil, fmt.Errorf("%w: request was already declined", models.ErrConflict)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrConflict, record.Status)
	}
}
