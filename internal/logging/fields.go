package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies log records for downstream filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries an operator-facing remediation hint.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the operational consequence of a warning or error.
	FieldImpact = "impact"
	// FieldBatch is the standardized key for spool batch stamps.
	FieldBatch = "batch"
	// FieldUser is the standardized key for destination account names.
	FieldUser = "user"
	// FieldDrive is the standardized key for watched drive paths.
	FieldDrive = "drive"
	// FieldState is the standardized key for transfer state names.
	FieldState = "state"
)
