package logging

// Standardized attribute keys shared across subsystems.
const (
	FieldComponent   = "component"
	FieldEventType   = "event_type"
	FieldOperationID = "operation_id"
	FieldJobID       = "job_id"
	FieldDiscoveryID = "discovery_id"
	FieldLanguage    = "language"
	FieldMomentIndex = "moment_index"
	FieldWorker      = "worker"
	FieldRequestID   = "request_id"
	FieldErrorHint   = "error_hint"
)
