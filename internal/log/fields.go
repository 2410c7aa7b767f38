package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorKind     = "error_kind"
	FieldOperation     = "operation"
	FieldStage         = "stage"
	FieldInputVariant  = "input_variant"
	FieldCategory      = "category"
	FieldAmount        = "amount"
	FieldHasAmount     = "has_amount"
	FieldExternalID    = "external_id"
	FieldWarningCount  = "warnings"
	FieldReferenceURI  = "reference_uri"
	FieldNoteID        = "note_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPipeline  = "pipeline"
	ComponentInference = "inference"
	ComponentRecords   = "records"
	ComponentStorage   = "storage"
	ComponentBlob      = "blob"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentTextOps   = "textops"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpTranscribe = "transcribe"
	OpCorrect    = "correct"
	OpExtract    = "extract"
	OpPersist    = "persist"
	OpCleanup    = "cleanup"
	OpPublish    = "publish"
	OpSync       = "sync"
	OpPresign    = "presign"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithJobID adds the pipeline job id
func (f LogFields) WithJobID(jobID string) LogFields {
	f[FieldJobID] = jobID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds record fields. The amount is logged only when present.
func (f LogFields) WithRecord(category string, amount *float64, externalID string) LogFields {
	f[FieldCategory] = category
	f[FieldHasAmount] = amount != nil
	if amount != nil {
		f[FieldAmount] = *amount
	}
	if externalID != "" {
		f[FieldExternalID] = externalID
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
