package logging

// Standard field names for structured log entries.
const (
	FieldFile       = "file_path"
	FieldDocument   = "document"
	FieldIndex      = "index"
	FieldBatchID    = "batch_id"
	FieldRequestID  = "request_id"
	FieldProvider   = "provider"
	FieldModel      = "model"
	FieldKind       = "failure_kind"
	FieldOperation  = "operation"
	FieldStatus     = "status"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldCount      = "count"
	FieldPages      = "pages"
	FieldTextLength = "text_length"
	FieldWorkers    = "workers"
	FieldDelimiter  = "delimiter"
	FieldInputFile  = "input_file"
	FieldOutputFile = "output_file"
)
