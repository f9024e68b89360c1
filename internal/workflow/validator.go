package workflow

import (
	"fmt"
	"slices"
)

// Result is the verdict for a requested status/stage change. When the move is
// rejected because the target is unreachable, SuggestedNextStates carries the
// declared edge set so a UI can hint at legal moves.
type Result struct {
	Valid               bool     `json:"valid"`
	Reason              string   `json:"reason,omitempty"`
	SuggestedNextStates []string `json:"suggested_next_states,omitempty"`
}

// ValidateTransition decides whether from→to is legal for the entity type.
// The check is pure and deterministic: the same inputs produce the same
// verdict whether it runs as an optimistic client-side check or as the
// authoritative server-side re-check.
func ValidateTransition(entity EntityType, from, to string) (Result, error) {
	policy, err := PolicyFor(entity)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}

	// A no-op move is always legal, independent of the graph, so idempotent
	// re-saves never fail.
	if from == to {
		return Result{Valid: true}, nil
	}

	if policy.IsTerminal(from) {
		return Result{
			Valid:  false,
			Reason: fmt.Sprintf("state %s is immutable", from),
		}, nil
	}

	allowed := policy.AllowedFrom(from)
	if !slices.Contains(allowed, to) {
		return Result{
			Valid:               false,
			Reason:              fmt.Sprintf("%s → %s is not a permitted transition", from, to),
			SuggestedNextStates: allowed,
		}, nil
	}

	return Result{Valid: true}, nil
}

// IsTerminal reports whether a state has no legal outgoing transition other
// than to itself.
func IsTerminal(entity EntityType, state string) (bool, error) {
	policy, err := PolicyFor(entity)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}
	return policy.IsTerminal(state), nil
}

// SuggestedNextStates returns the declared edge set for a state.
func SuggestedNextStates(entity EntityType, state string) ([]string, error) {
	policy, err := PolicyFor(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}
	return policy.AllowedFrom(state), nil
}
