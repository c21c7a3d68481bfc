package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docuflow/backend/internal/domain"
	"github.com/docuflow/backend/internal/domain/models"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

func vote(approver string, decision models.Decision) models.Vote {
	return models.Vote{ApproverID: approver, Decision: decision, CastAt: time.Now()}
}

func TestResolver_Authorize(t *testing.T) {
	r := domain.NewResolver()

	t.Run("Member Of Expanded Set", func(t *testing.T) {
		err := r.Authorize("alice", []string{"alice", "bob"})
		assert.NoError(t, err)
	})

	t.Run("Not A Member", func(t *testing.T) {
		err := r.Authorize("mallory", []string{"alice", "bob"})
		assert.Error(t, err)
		assert.True(t, appErrors.IsPermission(err))
	})

	t.Run("Empty Expanded Set", func(t *testing.T) {
		err := r.Authorize("alice", nil)
		assert.Error(t, err)
	})
}

func TestResolver_Single(t *testing.T) {
	r := domain.NewResolver()
	approvers := []string{"alice", "bob", "carol"}

	t.Run("No Votes Is Pending", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeSingle, approvers, nil)
		assert.Equal(t, models.StepOutcomePending, outcome)
	})

	t.Run("First Approve Satisfies", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeSingle, approvers, []models.Vote{
			vote("bob", models.DecisionApprove),
		})
		assert.Equal(t, models.StepOutcomeSatisfied, outcome)
	})

	t.Run("First Reject Rejects", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeSingle, approvers, []models.Vote{
			vote("carol", models.DecisionReject),
		})
		assert.Equal(t, models.StepOutcomeRejected, outcome)
	})

	t.Run("Approve Wins Over Later Reject", func(t *testing.T) {
		// Once any approve exists the step is satisfied regardless of other votes
		outcome := r.Resolve(models.ApprovalModeSingle, approvers, []models.Vote{
			vote("alice", models.DecisionApprove),
			vote("bob", models.DecisionReject),
		})
		assert.Equal(t, models.StepOutcomeSatisfied, outcome)
	})
}

func TestResolver_Unanimous(t *testing.T) {
	r := domain.NewResolver()
	approvers := []string{"alice", "bob", "carol"}

	t.Run("Partial Approvals Stay Pending", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeUnanimous, approvers, []models.Vote{
			vote("alice", models.DecisionApprove),
			vote("bob", models.DecisionApprove),
		})
		assert.Equal(t, models.StepOutcomePending, outcome)
	})

	t.Run("All Approve Satisfies", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeUnanimous, approvers, []models.Vote{
			vote("alice", models.DecisionApprove),
			vote("bob", models.DecisionApprove),
			vote("carol", models.DecisionApprove),
		})
		assert.Equal(t, models.StepOutcomeSatisfied, outcome)
	})

	t.Run("Single Reject Fails Fast", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeUnanimous, approvers, []models.Vote{
			vote("alice", models.DecisionApprove),
			vote("bob", models.DecisionReject),
		})
		assert.Equal(t, models.StepOutcomeRejected, outcome)
	})
}

func TestResolver_Majority(t *testing.T) {
	r := domain.NewResolver()

	t.Run("Strict Majority Satisfies", func(t *testing.T) {
		// 2 of 3 is a strict majority
		outcome := r.Resolve(models.ApprovalModeMajority, []string{"a", "b", "c"}, []models.Vote{
			vote("a", models.DecisionApprove),
			vote("b", models.DecisionApprove),
		})
		assert.Equal(t, models.StepOutcomeSatisfied, outcome)
	})

	t.Run("Exact Half Is Not A Majority", func(t *testing.T) {
		// 2 of 4 approvals with 2 undecided: approve + undecided = 4 > 2, still winnable
		outcome := r.Resolve(models.ApprovalModeMajority, []string{"a", "b", "c", "d"}, []models.Vote{
			vote("a", models.DecisionApprove),
			vote("b", models.DecisionApprove),
		})
		assert.Equal(t, models.StepOutcomePending, outcome)
	})

	t.Run("Rejected When Majority Unreachable", func(t *testing.T) {
		// 2 of 4 rejected: best case approve = 2, never exceeds n/2
		outcome := r.Resolve(models.ApprovalModeMajority, []string{"a", "b", "c", "d"}, []models.Vote{
			vote("a", models.DecisionReject),
			vote("b", models.DecisionReject),
		})
		assert.Equal(t, models.StepOutcomeRejected, outcome)
	})

	t.Run("Split Vote On Even Panel Rejects", func(t *testing.T) {
		// 2 approve, 2 reject on a panel of 4: approve can never exceed 2
		outcome := r.Resolve(models.ApprovalModeMajority, []string{"a", "b", "c", "d"}, []models.Vote{
			vote("a", models.DecisionApprove),
			vote("b", models.DecisionApprove),
			vote("c", models.DecisionReject),
			vote("d", models.DecisionReject),
		})
		assert.Equal(t, models.StepOutcomeRejected, outcome)
	})

	t.Run("Still Winnable Stays Pending", func(t *testing.T) {
		// 1 approve, 1 reject of 3: the last vote decides
		outcome := r.Resolve(models.ApprovalModeMajority, []string{"a", "b", "c"}, []models.Vote{
			vote("a", models.DecisionApprove),
			vote("b", models.DecisionReject),
		})
		assert.Equal(t, models.StepOutcomePending, outcome)
	})

	t.Run("Single Approver Panel", func(t *testing.T) {
		outcome := r.Resolve(models.ApprovalModeMajority, []string{"a"}, []models.Vote{
			vote("a", models.DecisionApprove),
		})
		assert.Equal(t, models.StepOutcomeSatisfied, outcome)
	})
}

func TestResolver_IgnoresVotesFromFormerMembers(t *testing.T) {
	r := domain.NewResolver()

	// dave voted while still a role member, then left; his vote must not count
	outcome := r.Resolve(models.ApprovalModeUnanimous, []string{"alice", "bob"}, []models.Vote{
		vote("dave", models.DecisionReject),
		vote("alice", models.DecisionApprove),
		vote("bob", models.DecisionApprove),
	})
	assert.Equal(t, models.StepOutcomeSatisfied, outcome)
}
