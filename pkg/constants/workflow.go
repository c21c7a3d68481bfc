package constants

// Outbox event processing
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
	OutboxMaxRetries      = 5
	OutboxBatchSize       = 100
	OutboxPollIntervalMs  = 500
)

// Escalation sweep defaults. The sweep schedule is a 5-field cron expression;
// the default runs every minute.
const (
	DefaultEscalationSweepCron = "* * * * *"
)
