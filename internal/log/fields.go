package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldRecordID    = "record_id"
	FieldRecordCount = "record_count"
	FieldNewRecords  = "new_records"
	FieldFromDate    = "from_date"
	FieldToDate      = "to_date"
	FieldCursor      = "cursor"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldCategory    = "category"
	FieldDailyRate   = "daily_rate"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentSync    = "sync"
	ComponentLedger  = "ledger"
	ComponentFeed    = "feed"
	ComponentStorage = "storage"
	ComponentNotify  = "notify"
	ComponentExport  = "export"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpMerge    = "merge"
	OpAnalyze  = "analyze"
	OpSync     = "sync"
	OpPublish  = "publish"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
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

// WithWindow adds the fetch-window fields
func (f LogFields) WithWindow(from, to string) LogFields {
	f[FieldFromDate] = from
	f[FieldToDate] = to
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
