package queue

import (
	"fmt"

	"gymqueue-backend/internal/model"
)

// PolicySource selects whose late policy is consulted when the invited head is late.
type PolicySource string

const (
	// PolicySourceSelf consults the late reservation's own policy.
	PolicySourceSelf PolicySource = "self"
	// PolicySourceSuccessor consults the policy of the reservation that would take its place.
	PolicySourceSuccessor PolicySource = "successor"
)

// ParsePolicySource maps a config value to a PolicySource.
func ParsePolicySource(s string) (PolicySource, error) {
	switch PolicySource(s) {
	case PolicySourceSelf, PolicySourceSuccessor:
		return PolicySource(s), nil
	case "":
		return PolicySourceSelf, nil
	}
	return "", fmt.Errorf("unknown late policy source %q", s)
}

// Outcome is what happens to a late reservation.
type Outcome int

const (
	// OutcomeDrop cancels the late reservation.
	OutcomeDrop Outcome = iota
	// OutcomeSwap marks it ONE_SKIPPED and exchanges reservedAt with its successor.
	OutcomeSwap
	// OutcomeRemove is MOVE_TO_NEXT with nobody to move behind; the reservation is skipped.
	OutcomeRemove
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDrop:
		return "drop"
	case OutcomeSwap:
		return "swap"
	case OutcomeRemove:
		return "remove"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Resolution is the decision for one late reservation.
type Resolution struct {
	Outcome   Outcome
	Policy    model.LatePolicy
	Late      model.Reservation
	Successor *model.Reservation
	// SkipBudgetSpent is set when the reservation was already ONE_SKIPPED.
	SkipBudgetSpent bool
}

// ResolveLate decides between dropping the late reservation and swapping it with
// its successor. A reservation gets exactly one skip: a ONE_SKIPPED reservation
// that is late again is dropped whatever its policy.
func ResolveLate(source PolicySource, late model.Reservation, successor *model.Reservation) Resolution {
	res := Resolution{Late: late, Successor: successor, Policy: late.LatePolicy}
	if source == PolicySourceSuccessor && successor != nil {
		res.Policy = successor.LatePolicy
	}

	if late.Status == model.StatusOneSkipped {
		res.Outcome = OutcomeDrop
		res.SkipBudgetSpent = true
		return res
	}

	switch {
	case res.Policy != model.LatePolicyMoveToNext:
		res.Outcome = OutcomeDrop
	case successor == nil:
		res.Outcome = OutcomeRemove
	default:
		res.Outcome = OutcomeSwap
	}
	return res
}

// Apply returns the rows the resolution rewrites: the late reservation and, for a
// swap, its successor. The swap exchanges only the two reservedAt keys so nobody
// else moves.
func (r Resolution) Apply() []model.Reservation {
	late := r.Late
	switch r.Outcome {
	case OutcomeDrop:
		late.Status = model.StatusCancelled
		late.IsActive = false
		return []model.Reservation{late}
	case OutcomeRemove:
		late.Status = model.StatusSkipped
		late.IsActive = false
		return []model.Reservation{late}
	}

	succ := *r.Successor
	late.Status = model.StatusOneSkipped
	late.ReservedAt, succ.ReservedAt = succ.ReservedAt, late.ReservedAt
	return []model.Reservation{late, succ}
}
