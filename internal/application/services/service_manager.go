package services

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/docuflow/backend/internal/domain/events"
	"github.com/docuflow/backend/internal/infrastructure/database"
	"github.com/docuflow/backend/internal/infrastructure/persistence"
	"github.com/docuflow/backend/pkg/constants"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.Connection

	EventBus     *EventBus
	Templates    *TemplateService
	Orchestrator *OrchestratorService
	Escalation   *EscalationService
	Stats        *StatsService
	Auth         *AuthService
	Outbox       *OutboxService

	Identity *persistence.IdentityRepository
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection) (*ServiceManager, error) {
	sm := &ServiceManager{db: db}

	templateRepo := persistence.NewTemplateRepository(db.DB())
	instanceRepo := persistence.NewInstanceRepository(db.DB())
	sm.Identity = persistence.NewIdentityRepository(db.DB())

	sm.EventBus = NewEventBus()
	sm.Outbox = NewOutboxService(db.DB(), sm.EventBus)

	sm.Templates = NewTemplateService(templateRepo)
	sm.Orchestrator = NewOrchestratorService(templateRepo, instanceRepo, sm.Identity, sm.Outbox)
	sm.Stats = NewStatsService(templateRepo, instanceRepo, sm.Orchestrator)
	sm.Auth = NewAuthService(sm.Identity)

	sweepCron := os.Getenv(constants.EnvEscalationSweepCron)
	if sweepCron == "" {
		sweepCron = constants.DefaultEscalationSweepCron
	}
	escalation, err := NewEscalationService(instanceRepo, sm.Orchestrator, sweepCron)
	if err != nil {
		return nil, err
	}
	sm.Escalation = escalation

	sm.registerNotificationSink()

	return sm, nil
}

// registerNotificationSink wires the notification collaborator boundary: the
// outbox worker publishes into the bus, and this subscriber hands events to
// the external notification service. Replaced with a real transport client in
// deployments that have one; the log line doubles as an audit trail.
func (sm *ServiceManager) registerNotificationSink() {
	notify := func(ctx context.Context, payload interface{}) error {
		log.Printf("🔔 [Notify] %+v", payload)
		return nil
	}

	for _, eventType := range []events.EventType{
		events.InstanceStarted,
		events.StepActivated,
		events.VoteCast,
		events.StepResolved,
		events.StepEscalated,
		events.InstanceCompleted,
		events.InstanceRejected,
		events.InstanceCancelled,
	} {
		sm.EventBus.Subscribe(eventType, notify)
	}
}

// StartWorkers starts the outbox worker and escalation scheduler
func (sm *ServiceManager) StartWorkers() {
	sm.Outbox.StartWorker(time.Duration(constants.OutboxPollIntervalMs) * time.Millisecond)
	go sm.Escalation.Start()
}

// StopWorkers stops background workers gracefully
func (sm *ServiceManager) StopWorkers() {
	sm.Escalation.Stop()
	sm.Outbox.StopWorker()
}
