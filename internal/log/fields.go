package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldRecurringID   = "recurring_id"
	FieldAmountCents   = "amount_cents"
	FieldCurrency      = "currency"
	FieldReason        = "reason"
	FieldFrequency     = "frequency"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentStorage  = "storage"
	ComponentLedger   = "ledger"
	ComponentMovement = "movement"
	ComponentBudget   = "budget"
	ComponentRates    = "rates"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
)

// Operations defines standard operation names
const (
	OpExpense   = "expense"
	OpIncome    = "income"
	OpTransfer  = "transfer"
	OpAdjust    = "adjust"
	OpRecompute = "recompute"
	OpSweep     = "sweep"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)
