package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldImportID   = "import_id"
	FieldSource     = "source"
	FieldRecords    = "records"
	FieldErrors     = "errors"
	FieldRow        = "row"
	FieldField      = "field"
	FieldKey        = "key"
	FieldBytes      = "bytes"
	FieldVersion    = "version"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentImporter = "importer"
	ComponentService  = "service"
	ComponentStorage  = "storage"
	ComponentSource   = "source"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentCLI      = "cli"
	ComponentCache    = "cache"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpImport   = "import"
	OpRestore  = "restore"
	OpClear    = "clear"
	OpSave     = "save"
	OpLoad     = "load"
	OpReport   = "report"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
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

// WithImport adds the fields describing one import run.
func (f LogFields) WithImport(importID, source string, records, errors int) LogFields {
	if importID != "" {
		f[FieldImportID] = importID
	}
	f[FieldSource] = source
	f[FieldRecords] = records
	f[FieldErrors] = errors
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
