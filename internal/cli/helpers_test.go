package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
)

// setupHome points HOME and CADENCE_HOME at a temp dir so the commands never
// read a real configuration or write to the real log file.
func setupHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CADENCE_HOME", filepath.Join(home, constants.CadenceHome))
	return home
}

func writeDefinition(t *testing.T, dir, sub, name, content string) {
	t.Helper()

	path := filepath.Join(dir, sub)
	require.NoError(t, os.MkdirAll(path, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(path, name), []byte(strings.TrimLeft(content, "\n")), 0o600))
}

// seedSuite writes a small definition tree: a passing and a failing
// scenario, one environment and two campaigns.
func seedSuite(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeDefinition(t, dir, constants.ScenariosDir, "ok.yaml", `
id: ok
title: OK
steps:
  - name: hello
    type: debug
    inputs:
      who: world
`)
	writeDefinition(t, dir, constants.ScenariosDir, "broken.yaml", `
id: broken
title: Broken
steps:
  - name: boom
    type: fail
`)
	writeDefinition(t, dir, constants.EnvironmentsDir, "default.yaml", `
name: default
`)
	writeDefinition(t, dir, constants.CampaignsDir, "mixed.yaml", `
id: mixed
title: Mixed
scenarios:
  - scenario: ok
  - scenario: broken
`)
	writeDefinition(t, dir, constants.CampaignsDir, "green.yaml", `
id: green
title: Green
scenarios:
  - scenario: ok
`)
	return dir
}

// executeCLI runs the root command with args and returns its stdout.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{Version: "test"})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--quiet"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
