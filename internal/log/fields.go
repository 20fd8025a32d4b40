package log

import (
	"time"

	"github.com/google/uuid"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldDuration    = "duration_ms"
	FieldBudgetID    = "budget_id"
	FieldBudgetName  = "budget_name"
	FieldWorkspaceID = "workspace_id"
	FieldPeriod      = "period"
	FieldPeriodKey   = "period_key"
	FieldThreshold   = "threshold"
	FieldThresholds  = "thresholds"
	FieldSpentPct    = "spent_percentage"
	FieldRecipients  = "recipients"
	FieldEntryCount  = "entry_count"
	FieldBudgetCount = "budget_count"
	FieldFailed      = "failed"
	FieldExceeded    = "exceeded"
	FieldNotified    = "notified"
	FieldTotal       = "total"
	FieldTotalSpent  = "total_spent"
	FieldTraceID     = "trace_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentCLI        = "cli"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
	ComponentAccounting = "accounting"
	ComponentPeriod     = "period"
	ComponentNotifier   = "notifier"
)

// Operations defines standard operation names
const (
	OpStatsOf    = "stats_of"
	OpStatsOfAll = "stats_of_all"
	OpScan       = "scan"
	OpEntries    = "entries"
	OpNotify     = "notify"
	OpClaim      = "claim"
	OpRelease    = "release"
	OpSweep      = "sweep"
	OpImport     = "import"
	OpMigrate    = "migrate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message; a nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(kind string) LogFields {
	f[FieldErrorType] = kind
	return f
}

// WithBudget adds the identifying fields of a budget.
func (f LogFields) WithBudget(id uuid.UUID, workspaceID int64, name string) LogFields {
	f[FieldBudgetID] = id.String()
	f[FieldWorkspaceID] = workspaceID
	if name != "" {
		f[FieldBudgetName] = name
	}
	return f
}

func (f LogFields) WithWorkspace(workspaceID int64) LogFields {
	f[FieldWorkspaceID] = workspaceID
	return f
}

// WithThreshold adds a threshold crossing and the period it belongs to.
func (f LogFields) WithThreshold(threshold, spentPct int, periodKey string) LogFields {
	f[FieldThreshold] = threshold
	f[FieldSpentPct] = spentPct
	f[FieldPeriodKey] = periodKey
	return f
}

func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// With adds an arbitrary field.
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
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
