package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
)

// EscalationService is the time-driven sweep over in-flight steps. Each tick
// scans for pending steps past their deadline and raises an escalation
// through the orchestrator's serialized Escalate call, so it contends with
// concurrent votes like any other actor. Sweeps are idempotent: a failed
// iteration is simply retried at the next fire.
type EscalationService struct {
	instances    ports.InstanceStore
	orchestrator *OrchestratorService
	schedule     cron.Schedule

	stopChan chan struct{}
	mu       sync.Mutex
	running  bool
	stopped  bool // Prevents double-close of stopChan
}

// NewEscalationService creates the escalation scheduler. sweepCron is a
// 5-field cron expression controlling sweep cadence.
func NewEscalationService(instances ports.InstanceStore, orchestrator *OrchestratorService, sweepCron string) (*EscalationService, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(sweepCron)
	if err != nil {
		return nil, fmt.Errorf("invalid escalation sweep cron expression: %w", err)
	}

	return &EscalationService{
		instances:    instances,
		orchestrator: orchestrator,
		schedule:     schedule,
		stopChan:     make(chan struct{}),
	}, nil
}

// Start begins the sweep loop. Blocks until Stop is called; run it in a
// goroutine.
func (s *EscalationService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Println("⏰ Escalation scheduler starting...")

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			if err := s.SweepOnce(context.Background(), time.Now().UTC()); err != nil {
				log.Printf("⚠️ Escalation sweep failed (will retry next interval): %v", err)
			}
		case <-s.stopChan:
			timer.Stop()
			log.Println("⏰ Escalation scheduler stopped")
			return
		}
	}
}

// Stop gracefully stops the sweep loop
func (s *EscalationService) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
}

// SweepOnce scans in-progress instances for pending current steps whose
// deadline has passed and escalates each. The scan holds no instance locks;
// Escalate re-checks state under the lock, so a step that resolved between
// read and escalate is skipped there.
func (s *EscalationService) SweepOnce(ctx context.Context, now time.Time) error {
	inFlight, err := s.instances.ListByStatus(ctx, models.InstanceStatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to scan in-flight instances: %w", err)
	}

	escalated := 0
	for _, inst := range inFlight {
		step := inst.CurrentStep()
		state := inst.CurrentStepState()
		if step == nil || state == nil {
			continue
		}
		if state.Outcome != models.StepOutcomePending {
			continue
		}
		if state.DeadlineAt == nil || state.DeadlineAt.After(now) {
			continue
		}

		if err := s.orchestrator.Escalate(ctx, inst.ID, step.ID); err != nil {
			log.Printf("⚠️ Failed to escalate instance %s step %s: %v", inst.ID, step.ID, err)
			continue
		}
		escalated++
	}

	if escalated > 0 {
		log.Printf("⏰ Escalation sweep done: %d step(s) escalated", escalated)
	}
	return nil
}
