// Package domain provides shared domain types for the cadence scenario
// orchestration system.
//
// Definitions (StepDefinition, Scenario, Campaign, Dataset, Environment) are
// immutable once loaded; copies with overrides are produced through Clone.
// Reports (StepReport, ExecutionReport, CampaignExecution) are plain values
// safe to serialize and hand across goroutines.
//
// Import rules:
//   - CAN import: internal/constants, std lib
//   - MUST NOT import: any other internal package
package domain
