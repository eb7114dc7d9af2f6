package observability

// Metric name prefixes
const (
	MetricPrefix = "mxiledger"
)

// Metric names
const (
	// Ledger metrics
	LedgerTransactionsTotal = MetricPrefix + ".ledger.transactions_total"
	CommissionPaidTotal     = MetricPrefix + ".commission.paid_total"
	VestingAccrualsTotal    = MetricPrefix + ".vesting.accruals_total"

	// Wager metrics
	WagersActive = MetricPrefix + ".wagers.active"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Operation metrics
	OperationsTotal   = MetricPrefix + ".operations.total"
	OperationDuration = MetricPrefix + ".operations.duration"
)

// Label keys
const (
	// Common labels
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelGameType  = "game_type"
	LabelBucket    = "bucket"

	// Operation labels
	LabelOperation = "operation"
	LabelOutcome   = "outcome"

	// Error labels
	LabelErrorCode = "error_code"
)

// Operation outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
