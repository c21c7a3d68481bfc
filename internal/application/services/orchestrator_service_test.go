package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/domain/events"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/auth"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

func intPtr(i int) *int { return &i }

func session(id string, admin bool) *auth.UserSession {
	return &auth.UserSession{ID: id, Name: id, Email: id + "@example.com", IsAdmin: admin}
}

func userRef(id string) models.ApproverRef {
	return models.ApproverRef{Kind: models.ApproverKindUser, ID: id}
}

type orchestratorFixture struct {
	templates *fakeTemplateStore
	instances *fakeInstanceStore
	identity  *fakeIdentityResolver
	sink      *fakeEventSink
	svc       *services.OrchestratorService
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		templates: newFakeTemplateStore(),
		instances: newFakeInstanceStore(),
		identity:  &fakeIdentityResolver{members: make(map[string][]string)},
		sink:      &fakeEventSink{},
	}
	f.svc = services.NewOrchestratorService(f.templates, f.instances, f.identity, f.sink)
	return f
}

func (f *orchestratorFixture) addActiveTemplate(id string, steps ...models.StepDefinition) *models.WorkflowTemplate {
	tpl := &models.WorkflowTemplate{
		ID:     id,
		Name:   "Template " + id,
		Status: models.TemplateStatusActive,
		Steps:  steps,
	}
	f.templates.Insert(context.Background(), tpl)
	return tpl
}

func TestOrchestrator_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("Activates First Step With Deadline", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.addActiveTemplate("tpl1",
			models.StepDefinition{ID: "s1", Name: "Manager Review", Order: 1,
				ApprovalMode: models.ApprovalModeSingle, MaxDelayHours: intPtr(24),
				Approvers: []models.ApproverRef{userRef("alice")}},
		)

		inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		require.NoError(t, err)

		assert.Equal(t, models.InstanceStatusInProgress, inst.Status)
		assert.Equal(t, 0, inst.CurrentStepIndex)
		require.Len(t, inst.StepStates, 1)
		assert.Equal(t, models.StepOutcomePending, inst.StepStates[0].Outcome)
		require.NotNil(t, inst.StepStates[0].DeadlineAt)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), *inst.StepStates[0].DeadlineAt, time.Minute)

		assert.Equal(t, []events.EventType{events.InstanceStarted, events.StepActivated}, f.sink.typesEmitted())
	})

	t.Run("Clones Steps From Template", func(t *testing.T) {
		f := newOrchestratorFixture()
		tpl := f.addActiveTemplate("tpl1",
			models.StepDefinition{ID: "s1", Name: "Review", Order: 1,
				ApprovalMode: models.ApprovalModeSingle,
				Approvers:    []models.ApproverRef{userRef("alice")}},
		)

		inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		require.NoError(t, err)

		// Mutating the template after start must not leak into the instance
		tpl.Steps[0].Name = "Renamed"
		tpl.Steps[0].Approvers[0] = userRef("mallory")

		assert.Equal(t, "Review", inst.Steps[0].Name)
		assert.Equal(t, "alice", inst.Steps[0].Approvers[0].ID)
	})

	t.Run("Rejects Inactive Template", func(t *testing.T) {
		f := newOrchestratorFixture()
		tpl := f.addActiveTemplate("tpl1",
			models.StepDefinition{ID: "s1", Order: 1, ApprovalMode: models.ApprovalModeSingle,
				Approvers: []models.ApproverRef{userRef("alice")}},
		)
		tpl.Status = models.TemplateStatusDraft

		_, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("Rejects Template Without Steps", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.addActiveTemplate("tpl1")

		_, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("Unknown Template", func(t *testing.T) {
		f := newOrchestratorFixture()
		_, err := f.svc.Start(ctx, "missing", "doc1", session("initiator", false))
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestOrchestrator_CastVote_TwoStepFlow(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture()
	f.addActiveTemplate("tpl1",
		models.StepDefinition{ID: "s1", Name: "Manager", Order: 1,
			ApprovalMode: models.ApprovalModeSingle,
			Approvers:    []models.ApproverRef{userRef("manager")}},
		models.StepDefinition{ID: "s2", Name: "Directors", Order: 2,
			ApprovalMode: models.ApprovalModeUnanimous,
			Approvers:    []models.ApproverRef{userRef("dir1"), userRef("dir2")}},
	)

	inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
	require.NoError(t, err)

	// Step 1: single approval advances to step 2
	inst, err = f.svc.CastVote(ctx, services.VoteRequest{
		InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
	}, session("manager", false))
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, inst.Status)
	assert.Equal(t, 1, inst.CurrentStepIndex)
	assert.Equal(t, models.StepOutcomeSatisfied, inst.StepStates[0].Outcome)

	// Step 2: first of two unanimous approvals keeps the step pending
	inst, err = f.svc.CastVote(ctx, services.VoteRequest{
		InstanceID: inst.ID, StepID: "s2", Decision: models.DecisionApprove,
	}, session("dir1", false))
	require.NoError(t, err)
	assert.Equal(t, 1, inst.CurrentStepIndex)
	assert.Equal(t, models.StepOutcomePending, inst.StepStates[1].Outcome)

	// Second approval completes the instance
	inst, err = f.svc.CastVote(ctx, services.VoteRequest{
		InstanceID: inst.ID, StepID: "s2", Decision: models.DecisionApprove,
	}, session("dir2", false))
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, inst.Status)
	require.NotNil(t, inst.FinishedAt)

	emitted := f.sink.typesEmitted()
	assert.Equal(t, events.InstanceCompleted, emitted[len(emitted)-1])
}

func TestOrchestrator_CastVote(t *testing.T) {
	ctx := context.Background()

	setup := func() (*orchestratorFixture, *models.WorkflowInstance) {
		f := newOrchestratorFixture()
		f.addActiveTemplate("tpl1",
			models.StepDefinition{ID: "s1", Order: 1,
				ApprovalMode: models.ApprovalModeSingle,
				Approvers:    []models.ApproverRef{userRef("alice")}},
			models.StepDefinition{ID: "s2", Order: 2,
				ApprovalMode: models.ApprovalModeSingle,
				Approvers:    []models.ApproverRef{userRef("bob")}},
		)
		inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		require.NoError(t, err)
		return f, inst
	}

	t.Run("Rejection Terminates The Instance", func(t *testing.T) {
		f, inst := setup()
		inst, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionReject, Comment: "not ready",
		}, session("alice", false))
		require.NoError(t, err)

		assert.Equal(t, models.InstanceStatusRejected, inst.Status)
		assert.Equal(t, models.StepOutcomeRejected, inst.StepStates[0].Outcome)
		require.NotNil(t, inst.FinishedAt)
		// The second step never activates
		assert.Len(t, inst.StepStates, 1)
	})

	t.Run("Vote On Stale Step Conflicts", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s2", Decision: models.DecisionApprove,
		}, session("bob", false))
		assert.True(t, appErrors.IsConflict(err))
	})

	t.Run("Vote On Terminal Instance Conflicts", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.Cancel(ctx, inst.ID, session("initiator", false))
		require.NoError(t, err)

		_, err = f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
		}, session("alice", false))
		assert.True(t, appErrors.IsConflict(err))
	})

	t.Run("Non Approver Is Forbidden", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
		}, session("mallory", false))
		assert.True(t, appErrors.IsPermission(err))
	})

	t.Run("Unknown Decision Is Invalid", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.Decision("Maybe"),
		}, session("alice", false))
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("Unknown Instance", func(t *testing.T) {
		f, _ := setup()
		_, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: "missing", StepID: "s1", Decision: models.DecisionApprove,
		}, session("alice", false))
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestOrchestrator_CastVote_RoleExpansion(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture()
	f.identity.members["role-legal"] = []string{"carol", "dave"}
	f.addActiveTemplate("tpl1",
		models.StepDefinition{ID: "s1", Order: 1,
			ApprovalMode: models.ApprovalModeUnanimous,
			Approvers:    []models.ApproverRef{{Kind: models.ApproverKindRole, ID: "role-legal"}}},
	)

	inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
	require.NoError(t, err)

	// carol is a member via the role, so the vote is accepted
	inst, err = f.svc.CastVote(ctx, services.VoteRequest{
		InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
	}, session("carol", false))
	require.NoError(t, err)
	assert.Equal(t, models.StepOutcomePending, inst.StepStates[0].Outcome)

	// Membership shrinks to carol alone: her standing vote now satisfies the step
	f.identity.members["role-legal"] = []string{"carol"}
	inst, err = f.svc.CastVote(ctx, services.VoteRequest{
		InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
	}, session("carol", false))
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, inst.Status)
}

func TestOrchestrator_Cancel(t *testing.T) {
	ctx := context.Background()

	setup := func() (*orchestratorFixture, *models.WorkflowInstance) {
		f := newOrchestratorFixture()
		f.addActiveTemplate("tpl1",
			models.StepDefinition{ID: "s1", Order: 1,
				ApprovalMode: models.ApprovalModeSingle,
				Approvers:    []models.ApproverRef{userRef("alice")}},
		)
		inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		require.NoError(t, err)
		return f, inst
	}

	t.Run("Initiator Can Cancel", func(t *testing.T) {
		f, inst := setup()
		inst, err := f.svc.Cancel(ctx, inst.ID, session("initiator", false))
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusCancelled, inst.Status)

		emitted := f.sink.typesEmitted()
		assert.Equal(t, events.InstanceCancelled, emitted[len(emitted)-1])
	})

	t.Run("Admin Can Cancel", func(t *testing.T) {
		f, inst := setup()
		inst, err := f.svc.Cancel(ctx, inst.ID, session("someone-else", true))
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusCancelled, inst.Status)
	})

	t.Run("Other Actors Are Forbidden", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.Cancel(ctx, inst.ID, session("mallory", false))
		assert.True(t, appErrors.IsPermission(err))
	})

	t.Run("Cancel Of Terminal Instance Conflicts", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.Cancel(ctx, inst.ID, session("initiator", false))
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, inst.ID, session("initiator", false))
		assert.True(t, appErrors.IsConflict(err))
	})
}

func TestOrchestrator_Escalate(t *testing.T) {
	ctx := context.Background()

	setup := func() (*orchestratorFixture, *models.WorkflowInstance) {
		f := newOrchestratorFixture()
		f.addActiveTemplate("tpl1",
			models.StepDefinition{ID: "s1", Order: 1,
				ApprovalMode: models.ApprovalModeSingle, MaxDelayHours: intPtr(1),
				Approvers: []models.ApproverRef{userRef("alice")}},
		)
		inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
		require.NoError(t, err)
		return f, inst
	}

	t.Run("Marks Step Escalated Without Changing Status", func(t *testing.T) {
		f, inst := setup()
		require.NoError(t, f.svc.Escalate(ctx, inst.ID, "s1"))

		got, err := f.svc.GetInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusInProgress, got.Status)
		assert.Equal(t, models.StepOutcomeEscalated, got.StepStates[0].Outcome)

		emitted := f.sink.typesEmitted()
		assert.Equal(t, events.StepEscalated, emitted[len(emitted)-1])
	})

	t.Run("Second Escalation Is A NoOp", func(t *testing.T) {
		f, inst := setup()
		require.NoError(t, f.svc.Escalate(ctx, inst.ID, "s1"))
		before := len(f.sink.typesEmitted())

		require.NoError(t, f.svc.Escalate(ctx, inst.ID, "s1"))
		assert.Len(t, f.sink.typesEmitted(), before)
	})

	t.Run("Votes Still Accepted After Escalation", func(t *testing.T) {
		f, inst := setup()
		require.NoError(t, f.svc.Escalate(ctx, inst.ID, "s1"))

		inst, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
		}, session("alice", false))
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusCompleted, inst.Status)
	})

	t.Run("Advanced Step Is Skipped", func(t *testing.T) {
		f, inst := setup()
		_, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
		}, session("alice", false))
		require.NoError(t, err)
		before := len(f.sink.typesEmitted())

		require.NoError(t, f.svc.Escalate(ctx, inst.ID, "s1"))
		assert.Len(t, f.sink.typesEmitted(), before)
	})
}

func TestOrchestrator_ListPendingForActor(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture()
	f.addActiveTemplate("tpl1",
		models.StepDefinition{ID: "s1", Order: 1,
			ApprovalMode: models.ApprovalModeUnanimous, MaxDelayHours: intPtr(48),
			Approvers: []models.ApproverRef{userRef("alice"), userRef("bob")}},
	)

	inst, err := f.svc.Start(ctx, "tpl1", "doc1", session("initiator", false))
	require.NoError(t, err)

	t.Run("Named Approver Sees The Step", func(t *testing.T) {
		pending, err := f.svc.ListPendingForActor(ctx, session("alice", false))
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, inst.ID, pending[0].Instance.ID)
		assert.Equal(t, "s1", pending[0].Step.ID)
		assert.NotNil(t, pending[0].Deadline)
	})

	t.Run("Non Member Sees Nothing", func(t *testing.T) {
		pending, err := f.svc.ListPendingForActor(ctx, session("mallory", false))
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("Voted Approver Drops Out", func(t *testing.T) {
		_, err := f.svc.CastVote(ctx, services.VoteRequest{
			InstanceID: inst.ID, StepID: "s1", Decision: models.DecisionApprove,
		}, session("alice", false))
		require.NoError(t, err)

		pending, err := f.svc.ListPendingForActor(ctx, session("alice", false))
		require.NoError(t, err)
		assert.Empty(t, pending)

		// bob still has the step in his inbox
		pending, err = f.svc.ListPendingForActor(ctx, session("bob", false))
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}
