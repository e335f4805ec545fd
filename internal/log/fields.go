package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldErrorKind    = "error_kind"
	FieldOperation    = "operation"
	FieldResource     = "resource"
	FieldMutationKind = "mutation_kind"
	FieldEntityID     = "entity_id"
	FieldSequence     = "seq"
	FieldRefreshed    = "refreshed"
	FieldStale        = "stale"
	FieldOrigin       = "origin"
	FieldUser         = "user"
	FieldAmount       = "amount"
	FieldCount        = "count"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentAPI          = "api"
	ComponentStore        = "store"
	ComponentOrchestrator = "orchestrator"
	ComponentIntake       = "intake"
	ComponentSession      = "session"
	ComponentJournal      = "journal"
	ComponentAMQP         = "amqp"
	ComponentCache        = "cache"
	ComponentBackend      = "backend"
	ComponentWorker       = "worker"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpReload   = "reload"
	OpPopulate = "populate"
	OpReset    = "reset"
	OpValidate = "validate"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpRecord   = "record"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
	OpRefresh  = "refresh"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithResource adds the mirrored collection name
func (f LogFields) WithResource(resource string) LogFields {
	f[FieldResource] = resource
	return f
}

// WithMutation adds mutation-related fields
func (f LogFields) WithMutation(kind, op string, entityID int64) LogFields {
	f[FieldMutationKind] = kind
	f[FieldOperation] = op
	if entityID != 0 {
		f[FieldEntityID] = entityID
	}
	return f
}

// WithHTTPResponse adds outbound request fields
func (f LogFields) WithHTTPResponse(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode >= 200 && statusCode < 300
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
