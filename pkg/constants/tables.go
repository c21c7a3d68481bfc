package constants

// System table names. The leading underscore marks engine-owned tables so they
// never collide with document tables managed elsewhere.
const (
	TableWorkflowTemplate = "_Workflow_Template"
	TableWorkflowInstance = "_Workflow_Instance"
	TableWorkflowOutbox   = "_Workflow_Outbox"
	TableIdentityUser     = "_Workflow_Identity_User"
)

// Common column names shared across tables
const (
	FieldID               = "id"
	FieldName             = "name"
	FieldDescription      = "description"
	FieldStatus           = "status"
	FieldCreatedDate      = "created_date"
	FieldLastModifiedDate = "last_modified_date"
	FieldVersion          = "version"
)
