package constants

// Strategy types a step definition can declare.
const (
	// StrategyDefault runs children sequentially and stops at the first failure.
	StrategyDefault = "default"

	// StrategyRetryWithTimeout retries the sub-tree until success or timeout.
	StrategyRetryWithTimeout = "retry-with-timeout"

	// StrategyForEach materializes one iteration per dataset row.
	StrategyForEach = "for-each"

	// StrategyIf executes the sub-tree only when a condition holds.
	StrategyIf = "if"

	// StrategySoftAssert runs every child and downgrades failures to warnings.
	StrategySoftAssert = "soft-assert"
)

// Strategy property names.
const (
	// PropertyTimeout is the retry strategy overall duration.
	PropertyTimeout = "timeOut"

	// PropertyRetryDelay is the fixed pause between retry attempts.
	PropertyRetryDelay = "retryDelay"

	// PropertyDataset is the for-each dataset expression.
	PropertyDataset = "dataset"

	// PropertyIndex overrides the for-each index token name.
	PropertyIndex = "index"

	// PropertyCondition is the if strategy condition.
	PropertyCondition = "condition"

	// DefaultIndexName is the for-each index token used when none is declared.
	DefaultIndexName = "i"
)
