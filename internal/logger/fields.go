package logger

// Standard field names for consistent structured logging.
const (
	FieldComponent = "component"
	FieldBatchID   = "batch_id"
	FieldRecordID  = "record_id"
	FieldSampleID  = "sample_id"
	FieldStatus    = "status"
	FieldCount     = "count"
	FieldFailed    = "failed"
	FieldError     = "error"
	FieldPath      = "path"
	FieldAddress   = "address"
	FieldDriver    = "driver"
	FieldDuration  = "duration_ms"
)
