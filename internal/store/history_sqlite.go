package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sequences (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_executions (
	id          INTEGER PRIMARY KEY,
	scenario_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scenario_executions_scenario
	ON scenario_executions (scenario_id, id);
CREATE TABLE IF NOT EXISTS campaign_executions (
	id          INTEGER PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	execution   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campaign_executions_campaign
	ON campaign_executions (campaign_id, id);
`

// Sequence names.
const (
	scenarioSequence = "scenario_execution"
	campaignSequence = "campaign_execution"
)

// SQLiteHistory stores execution records in a sqlite database. Reports are
// kept as JSON documents next to the columns used for lookups.
type SQLiteHistory struct {
	db *sql.DB
}

var _ History = (*SQLiteHistory)(nil)

// OpenSQLiteHistory opens or creates the database at path and applies the schema.
// The special path ":memory:" opens a private in-memory database.
func OpenSQLiteHistory(ctx context.Context, path string) (*SQLiteHistory, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// NextExecutionID allocates a scenario execution id.
func (h *SQLiteHistory) NextExecutionID(ctx context.Context) (int64, error) {
	return h.next(ctx, scenarioSequence)
}

// Store saves a final scenario execution report.
func (h *SQLiteHistory) Store(ctx context.Context, report domain.ExecutionReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode execution %d: %w", report.ExecutionID, err)
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO scenario_executions (id, scenario_id, status, start_date, report)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			scenario_id = excluded.scenario_id,
			status = excluded.status,
			start_date = excluded.start_date,
			report = excluded.report`,
		report.ExecutionID, report.ScenarioID, report.Status.String(),
		report.StartDate.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("failed to store execution %d: %w", report.ExecutionID, err)
	}
	return nil
}

// Execution returns a stored report.
func (h *SQLiteHistory) Execution(ctx context.Context, scenarioID string, id int64) (domain.ExecutionReport, error) {
	var (
		r    domain.ExecutionReport
		data string
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT report FROM scenario_executions WHERE id = ? AND scenario_id = ?`, id, scenarioID).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s/%d", errors.ErrExecutionNotFound, scenarioID, id)
	}
	if err != nil {
		return r, fmt.Errorf("failed to read execution %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return r, fmt.Errorf("failed to decode execution %d: %w", id, err)
	}
	return r, nil
}

// Executions returns the reports of a scenario, newest first.
func (h *SQLiteHistory) Executions(ctx context.Context, scenarioID string) ([]domain.ExecutionReport, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT report FROM scenario_executions WHERE scenario_id = ? ORDER BY id DESC`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of %s: %w", scenarioID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ExecutionReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		var r domain.ExecutionReport
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode execution: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// NextCampaignExecutionID allocates a campaign execution id.
func (h *SQLiteHistory) NextCampaignExecutionID(ctx context.Context, _ string) (int64, error) {
	return h.next(ctx, campaignSequence)
}

// SaveCampaignExecution saves a campaign execution record.
func (h *SQLiteHistory) SaveCampaignExecution(ctx context.Context, execution domain.CampaignExecution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to encode campaign execution %d: %w", execution.ID, err)
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO campaign_executions (id, campaign_id, status, start_date, execution)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = excluded.campaign_id,
			status = excluded.status,
			start_date = excluded.start_date,
			execution = excluded.execution`,
		execution.ID, execution.CampaignID, execution.Status().String(),
		execution.StartDate.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("failed to save campaign execution %d: %w", execution.ID, err)
	}
	return nil
}

// CampaignExecution returns a stored campaign execution.
func (h *SQLiteHistory) CampaignExecution(ctx context.Context, campaignID string, id int64) (domain.CampaignExecution, error) {
	var (
		c    domain.CampaignExecution
		data string
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT execution FROM campaign_executions WHERE id = ? AND campaign_id = ?`, id, campaignID).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: %s/%d", errors.ErrCampaignExecutionNotFound, campaignID, id)
	}
	if err != nil {
		return c, fmt.Errorf("failed to read campaign execution %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return c, fmt.Errorf("failed to decode campaign execution %d: %w", id, err)
	}
	return c, nil
}

// CampaignExecutions returns the executions of a campaign, newest first.
func (h *SQLiteHistory) CampaignExecutions(ctx context.Context, campaignID string) ([]domain.CampaignExecution, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT execution FROM campaign_executions WHERE campaign_id = ? ORDER BY id DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of campaign %s: %w", campaignID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.CampaignExecution
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan campaign execution: %w", err)
		}
		var c domain.CampaignExecution
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("failed to decode campaign execution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func (h *SQLiteHistory) next(ctx context.Context, name string) (int64, error) {
	var id int64
	err := h.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", name, err)
	}
	return id, nil
}
