package domain

import (
	"github.com/docuflow/backend/internal/domain/models"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

// Resolver is the pure decision function mapping a step's approver set,
// approval mode and vote ledger to an outcome. It performs no I/O; callers
// persist the returned outcome.
type Resolver struct{}

// NewResolver creates a Resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Authorize checks that the voting identity belongs to the expanded approver
// set at resolution time. Covers the case where a role's membership changed
// between step activation and voting.
func (r *Resolver) Authorize(identity string, expanded []string) error {
	for _, id := range expanded {
		if id == identity {
			return nil
		}
	}
	return appErrors.NewUnauthorizedApproverError(identity)
}

// Resolve decides the outcome of a step from its mode, the expanded approver
// set and the votes cast so far. Votes from identities no longer in the
// expanded set are ignored in the tally.
func (r *Resolver) Resolve(mode models.ApprovalMode, expanded []string, votes []models.Vote) models.StepOutcome {
	members := make(map[string]bool, len(expanded))
	for _, id := range expanded {
		members[id] = true
	}

	approve, reject := 0, 0
	for _, v := range votes {
		if !members[v.ApproverID] {
			continue
		}
		switch v.Decision {
		case models.DecisionApprove:
			approve++
		case models.DecisionReject:
			reject++
		}
	}

	n := len(expanded)

	switch mode {
	case models.ApprovalModeSingle:
		// First decisive vote wins; arrival order matters only for audit.
		if approve > 0 {
			return models.StepOutcomeSatisfied
		}
		if reject > 0 {
			return models.StepOutcomeRejected
		}
		return models.StepOutcomePending

	case models.ApprovalModeUnanimous:
		// Fail fast on any reject; remaining approvers are not waited on.
		if reject > 0 {
			return models.StepOutcomeRejected
		}
		if n > 0 && approve == n {
			return models.StepOutcomeSatisfied
		}
		return models.StepOutcomePending

	case models.ApprovalModeMajority:
		// Strict majority: ties are never satisfied.
		if approve > n/2 {
			return models.StepOutcomeSatisfied
		}
		// Rejected once approve can no longer reach a strict majority, even
		// if every undecided approver voted approve.
		undecided := n - approve - reject
		if approve+undecided <= n/2 {
			return models.StepOutcomeRejected
		}
		return models.StepOutcomePending
	}

	return models.StepOutcomePending
}
