package log

import "github.com/shopspring/decimal"

// Attribute keys shared across packages.
const (
	FieldComponent       = "component"
	FieldRequestID       = "request_id"
	FieldSessionID       = "session_id"
	FieldClientIP        = "client_ip"
	FieldMethod          = "method"
	FieldPath            = "path"
	FieldQuery           = "query"
	FieldStatusCode      = "status_code"
	FieldDuration        = "duration_ms"
	FieldUserAgent       = "user_agent"
	FieldError           = "error"
	FieldOperation       = "operation"
	FieldTransactionID   = "transaction_id"
	FieldTransactionType = "transaction_type"
	FieldAmount          = "amount"
	FieldCategory        = "category"
	FieldGeneration      = "generation"
	FieldPage            = "page"
	FieldSubmitted       = "submitted"
	FieldPending         = "pending"
	FieldMonth           = "month"
)

const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentCoordinator = "coordinator"
	ComponentStaging     = "staging"
	ComponentRemote      = "remote"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentCharts      = "charts"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentBackend     = "backend"
	ComponentTemplate    = "template"
)

const (
	OpCreate   = "create"
	OpRefresh  = "refresh"
	OpImport   = "import"
	OpCommit   = "commit"
	OpLogin    = "login"
	OpSignup   = "signup"
	OpRender   = "render"
	OpShutdown = "shutdown"
)

// Fields is a set of log attributes keyed by the Field constants.
type Fields map[string]any

// Transaction returns the attributes identifying a transaction. The
// description is user text and is never logged.
func Transaction(id, txType string, amount decimal.Decimal, category string) Fields {
	f := Fields{
		FieldTransactionType: txType,
		FieldAmount:          amount.StringFixed(2),
		FieldCategory:        category,
	}
	if id != "" {
		f[FieldTransactionID] = id
	}
	return f
}

// Args flattens f into slog key/value pairs.
func (f Fields) Args() []any {
	args := make([]any, 0, len(f)*2)
	for k, v := range f {
		args = append(args, k, v)
	}
	return args
}
