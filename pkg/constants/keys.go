package constants

// Context and header keys
const (
	ContextKeyUser      = "user"
	HeaderAuthorization = "Authorization"
)

// Response envelope keys
const (
	ResponseError = "error"
	FieldMessage  = "message"
	ResponseData  = "data"
)

// Environment variable names
const (
	EnvPort                = "PORT"
	EnvDBHost              = "DB_HOST"
	EnvDBPort              = "DB_PORT"
	EnvDBUser              = "DB_USER"
	EnvDBPassword          = "DB_PASSWORD"
	EnvDBName              = "DB_NAME"
	EnvJWTSecret           = "JWT_SECRET"
	EnvEscalationSweepCron = "ESCALATION_SWEEP_CRON"
)
