package cli

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

func decode[T any](t *testing.T, out string) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestRunCommand(t *testing.T) {
	setupHome(t)
	dir := seedSuite(t)

	t.Run("success as json", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "-o", "json", "run", "ok")
		require.NoError(t, err)

		r := decode[domain.ExecutionReport](t, out)
		assert.Equal(t, constants.StatusSuccess, r.Status)
		assert.Equal(t, "ok", r.ScenarioID)
		assert.Equal(t, "default", r.Environment)
		assert.Positive(t, r.ExecutionID)

		hello, ok := r.Report.Find("hello")
		require.True(t, ok)
		assert.Equal(t, []string{"who : [world]"}, hello.Information)
	})

	t.Run("success as text", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "run", "ok")
		require.NoError(t, err)
		assert.Contains(t, out, "Execution #")
		assert.Contains(t, out, "SUCCESS")
		assert.Contains(t, out, "hello")
		assert.Contains(t, out, "who : [world]")
	})

	t.Run("failure", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "run", "broken")
		require.ErrorIs(t, err, errors.ErrExecutionFailed)
		assert.Equal(t, ExitError, ExitCodeForError(err))
		assert.Contains(t, out, "FAILURE")
	})

	t.Run("unknown scenario", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "run", "ghost")
		require.ErrorIs(t, err, errors.ErrScenarioNotFound)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "run", "ok", "--dataset", "ghost")
		require.ErrorIs(t, err, errors.ErrDatasetNotFound)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "run")
		require.Error(t, err)
		assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
	})
}

func TestHistoryCommand(t *testing.T) {
	setupHome(t)
	dir := seedSuite(t)

	for _, driver := range []string{constants.HistoryDriverFile, constants.HistoryDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			out, err := executeCLI(t, "--dir", dir, "--history-driver", driver, "-o", "json", "run", "ok")
			require.NoError(t, err)
			first := decode[domain.ExecutionReport](t, out)

			_, err = executeCLI(t, "--dir", dir, "--history-driver", driver, "run", "ok")
			require.NoError(t, err)

			out, err = executeCLI(t, "--dir", dir, "--history-driver", driver, "-o", "json", "history", "ok")
			require.NoError(t, err)
			reports := decode[[]domain.ExecutionReport](t, out)
			require.GreaterOrEqual(t, len(reports), 2)
			assert.Greater(t, reports[0].ExecutionID, reports[1].ExecutionID)

			out, err = executeCLI(t, "--dir", dir, "--history-driver", driver, "-o", "json",
				"history", "ok", strconv.FormatInt(first.ExecutionID, 10))
			require.NoError(t, err)
			shown := decode[domain.ExecutionReport](t, out)
			assert.Equal(t, first.ExecutionID, shown.ExecutionID)

			out, err = executeCLI(t, "--dir", dir, "--history-driver", driver, "history", "ok")
			require.NoError(t, err)
			assert.Contains(t, out, "SUCCESS")
		})
	}

	t.Run("unknown execution", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "history", "ok", "999999")
		require.ErrorIs(t, err, errors.ErrExecutionNotFound)
	})

	t.Run("invalid execution id", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "history", "ok", "abc")
		require.ErrorIs(t, err, errors.ErrInvalidArgument)
		assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
	})

	t.Run("empty", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "history", "broken")
		require.NoError(t, err)
		assert.Contains(t, out, "No executions recorded for scenario broken.")
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "--history-driver", "mongo", "history", "ok")
		require.Error(t, err)
		assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
	})
}

func TestCampaignCommands(t *testing.T) {
	setupHome(t)
	dir := seedSuite(t)

	t.Run("list", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "-o", "json", "campaign", "list")
		require.NoError(t, err)
		campaigns := decode[[]domain.Campaign](t, out)
		require.Len(t, campaigns, 2)
		assert.Equal(t, "green", campaigns[0].ID)
		assert.Equal(t, "mixed", campaigns[1].ID)

		out, err = executeCLI(t, "--dir", dir, "campaign", "ls")
		require.NoError(t, err)
		assert.Contains(t, out, "Mixed")
	})

	t.Run("list empty", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", t.TempDir(), "campaign", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No campaigns.")
	})

	t.Run("run by id then replay", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "-o", "json", "campaign", "run", "mixed")
		require.ErrorIs(t, err, errors.ErrExecutionFailed)

		executions := decode[[]domain.CampaignExecution](t, out)
		require.Len(t, executions, 1)
		exec := executions[0]
		assert.Equal(t, "mixed", exec.CampaignID)
		require.Len(t, exec.Scenarios, 2)
		assert.Equal(t, constants.StatusSuccess, exec.Scenarios[0].Status)
		assert.Equal(t, constants.StatusFailure, exec.Scenarios[1].Status)
		assert.True(t, exec.Ended())

		out, err = executeCLI(t, "--dir", dir, "-o", "json", "campaign", "replay", "mixed", strconv.FormatInt(exec.ID, 10))
		require.ErrorIs(t, err, errors.ErrExecutionFailed)
		replays := decode[[]domain.CampaignExecution](t, out)
		require.Len(t, replays, 1)
		assert.True(t, replays[0].Partial)
		require.Len(t, replays[0].Scenarios, 1)
		assert.Equal(t, "broken", replays[0].Scenarios[0].ScenarioID)

		out, err = executeCLI(t, "--dir", dir, "-o", "json", "campaign", "history", "mixed")
		require.NoError(t, err)
		recorded := decode[[]domain.CampaignExecution](t, out)
		require.Len(t, recorded, 2)
		assert.Equal(t, replays[0].ID, recorded[0].ID)

		out, err = executeCLI(t, "--dir", dir, "campaign", "history", "mixed", strconv.FormatInt(exec.ID, 10))
		require.NoError(t, err)
		assert.Contains(t, out, "broken")
		assert.Contains(t, out, "FAILURE")
	})

	t.Run("run by name", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "campaign", "run", "--name", "GR*")
		require.NoError(t, err)
		assert.Contains(t, out, "Campaign green execution #")
	})

	t.Run("replay of a green execution", func(t *testing.T) {
		out, err := executeCLI(t, "--dir", dir, "-o", "json", "campaign", "run", "green")
		require.NoError(t, err)
		exec := decode[[]domain.CampaignExecution](t, out)[0]

		_, err = executeCLI(t, "--dir", dir, "campaign", "replay", "green", strconv.FormatInt(exec.ID, 10))
		require.ErrorIs(t, err, errors.ErrNothingToReplay)
	})

	t.Run("id and name are exclusive", func(t *testing.T) {
		for _, args := range [][]string{
			{"campaign", "run"},
			{"campaign", "run", "green", "--name", "g*"},
		} {
			_, err := executeCLI(t, append([]string{"--dir", dir}, args...)...)
			require.ErrorIs(t, err, errors.ErrInvalidArgument)
			assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
		}
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, err := executeCLI(t, "--dir", dir, "campaign", "run", "ghost")
		require.ErrorIs(t, err, errors.ErrCampaignNotFound)

		_, err = executeCLI(t, "--dir", dir, "campaign", "run", "--name", "ghost*")
		require.ErrorIs(t, err, errors.ErrCampaignNotFound)
	})
}

func TestValidateCommand(t *testing.T) {
	setupHome(t)

	t.Run("valid", func(t *testing.T) {
		dir := seedSuite(t)
		out, err := executeCLI(t, "--dir", dir, "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "are valid")
	})

	t.Run("problems", func(t *testing.T) {
		dir := seedSuite(t)
		writeDefinition(t, dir, constants.CampaignsDir, "dangling.yaml", `
id: dangling
title: Dangling
scenarios:
  - scenario: ghost
`)
		out, err := executeCLI(t, "--dir", dir, "-o", "json", "validate")
		require.ErrorIs(t, err, errors.ErrDefinitionInvalid)

		resp := decode[ValidationResponse](t, out)
		assert.False(t, resp.Valid)
		assert.Equal(t, dir, resp.Dir)
		require.Len(t, resp.Problems, 1)
		assert.Contains(t, resp.Problems[0], "ghost")
	})
}
