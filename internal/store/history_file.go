package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flock"
)

// lockFile guards the sequence file of a history directory.
const lockFile = ".lock"

// FileHistory stores execution records as JSON files:
//
//	<dir>/history/<scenarioID>/<executionID>.json
//	<dir>/campaign-history/<campaignID>/<executionID>.json
//
// Id allocation goes through a sequence file guarded by an exclusive lock,
// so several cadence processes may share one directory.
type FileHistory struct {
	dir string
}

var _ History = (*FileHistory)(nil)

// NewFileHistory creates a file history rooted at dir.
func NewFileHistory(dir string) *FileHistory {
	return &FileHistory{dir: dir}
}

// NextExecutionID allocates a scenario execution id.
func (h *FileHistory) NextExecutionID(ctx context.Context) (int64, error) {
	return h.next(ctx, filepath.Join(h.dir, constants.HistoryDir))
}

// Store saves a final scenario execution report.
func (h *FileHistory) Store(ctx context.Context, report domain.ExecutionReport) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := checkName("scenario", report.ScenarioID); err != nil {
		return err
	}
	dir := filepath.Join(h.dir, constants.HistoryDir, report.ScenarioID)
	if err := writeJSON(dir, report.ExecutionID, report); err != nil {
		return fmt.Errorf("failed to store execution %d: %w", report.ExecutionID, err)
	}
	return nil
}

// Execution returns a stored report.
func (h *FileHistory) Execution(ctx context.Context, scenarioID string, id int64) (domain.ExecutionReport, error) {
	var r domain.ExecutionReport
	if err := h.read(ctx, constants.HistoryDir, "scenario", scenarioID, id, &r); err != nil {
		if os.IsNotExist(err) {
			return r, fmt.Errorf("%w: %s/%d", errors.ErrExecutionNotFound, scenarioID, id)
		}
		return r, err
	}
	return r, nil
}

// Executions returns the reports of a scenario, newest first.
func (h *FileHistory) Executions(ctx context.Context, scenarioID string) ([]domain.ExecutionReport, error) {
	ids, err := h.list(ctx, constants.HistoryDir, "scenario", scenarioID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExecutionReport, 0, len(ids))
	for _, id := range ids {
		r, err := h.Execution(ctx, scenarioID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// NextCampaignExecutionID allocates a campaign execution id.
func (h *FileHistory) NextCampaignExecutionID(ctx context.Context, _ string) (int64, error) {
	return h.next(ctx, filepath.Join(h.dir, constants.CampaignHistoryDir))
}

// SaveCampaignExecution saves a campaign execution record.
func (h *FileHistory) SaveCampaignExecution(ctx context.Context, execution domain.CampaignExecution) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := checkName("campaign", execution.CampaignID); err != nil {
		return err
	}
	dir := filepath.Join(h.dir, constants.CampaignHistoryDir, execution.CampaignID)
	if err := writeJSON(dir, execution.ID, execution); err != nil {
		return fmt.Errorf("failed to save campaign execution %d: %w", execution.ID, err)
	}
	return nil
}

// CampaignExecution returns a stored campaign execution.
func (h *FileHistory) CampaignExecution(ctx context.Context, campaignID string, id int64) (domain.CampaignExecution, error) {
	var c domain.CampaignExecution
	if err := h.read(ctx, constants.CampaignHistoryDir, "campaign", campaignID, id, &c); err != nil {
		if os.IsNotExist(err) {
			return c, fmt.Errorf("%w: %s/%d", errors.ErrCampaignExecutionNotFound, campaignID, id)
		}
		return c, err
	}
	return c, nil
}

// CampaignExecutions returns the executions of a campaign, newest first.
func (h *FileHistory) CampaignExecutions(ctx context.Context, campaignID string) ([]domain.CampaignExecution, error) {
	ids, err := h.list(ctx, constants.CampaignHistoryDir, "campaign", campaignID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CampaignExecution, 0, len(ids))
	for _, id := range ids {
		c, err := h.CampaignExecution(ctx, campaignID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Close is a no-op.
func (h *FileHistory) Close() error {
	return nil
}

// next increments the sequence file of dir under its lock.
func (h *FileHistory) next(ctx context.Context, dir string) (int64, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create history directory: %w", err)
	}

	lock, err := flock.Acquire(ctx, filepath.Join(dir, lockFile), constants.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate execution id: %w", err)
	}
	defer func() { _ = lock.Release() }()

	path := filepath.Join(dir, constants.SequenceFileName)
	var current int64
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally
	switch {
	case err == nil:
		current, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse sequence file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return 0, fmt.Errorf("failed to read sequence file: %w", err)
	}

	current++
	if err := atomicWrite(path, []byte(strconv.FormatInt(current, 10))); err != nil {
		return 0, fmt.Errorf("failed to write sequence file: %w", err)
	}
	return current, nil
}

func (h *FileHistory) read(ctx context.Context, sub, kind, owner string, id int64, v any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := checkName(kind, owner); err != nil {
		return err
	}
	path := filepath.Join(h.dir, sub, owner, strconv.FormatInt(id, 10)+".json")
	data, err := os.ReadFile(path) //#nosec G304 -- owner is checked against safeNameRegex
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: corrupted history file: %w", path, err)
	}
	return nil
}

// list returns the stored ids of owner, highest first.
func (h *FileHistory) list(ctx context.Context, sub, kind, owner string) ([]int64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := checkName(kind, owner); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(h.dir, sub, owner))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s history: %w", kind, err)
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

func writeJSON(dir string, id int64, v any) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, strconv.FormatInt(id, 10)+".json"), data)
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
