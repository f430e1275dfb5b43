package log

import "fmt"

// Common field names for structured logging
const (
	FieldComponent        = "component"
	FieldRequestID        = "request_id"
	FieldClientIP         = "client_ip"
	FieldMethod           = "method"
	FieldPath             = "path"
	FieldStatusCode       = "status_code"
	FieldDuration         = "duration_ms"
	FieldSuccess          = "success"
	FieldError            = "error"
	FieldOperation        = "operation"
	FieldUserID           = "user_id"
	FieldGoalID           = "goal_id"
	FieldGoalName         = "goal_name"
	FieldAmount           = "amount"
	FieldCurrency         = "currency"
	FieldPreviousCurrency = "previous_currency"
	FieldEventType        = "event_type"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentRates   = "rates"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpContribute = "contribute"
	OpConvert    = "convert"
	OpRead       = "read"
	OpList       = "list"
	OpRestore    = "restore"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

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

// WithError adds the error message; nil errors are ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithGoal adds the identifying fields of a goal.
func (f LogFields) WithGoal(userID, goalID string) LogFields {
	f[FieldUserID] = userID
	f[FieldGoalID] = goalID
	return f
}

// WithMoney adds an amount and its currency. The amount is logged as a string
// so decimals keep their exact representation.
func (f LogFields) WithMoney(amount fmt.Stringer, currency string) LogFields {
	f[FieldAmount] = amount.String()
	f[FieldCurrency] = currency
	return f
}

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
