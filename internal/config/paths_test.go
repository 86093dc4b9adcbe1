package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
)

func TestGlobalConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GlobalConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, constants.CadenceHome), dir)

	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, constants.CadenceHome, constants.ConfigFileName), path)
}

func TestProjectConfigPath(t *testing.T) {
	assert.Equal(t, constants.CadenceHome, ProjectConfigDir())
	assert.Equal(t, filepath.Join(".cadence", "config.yaml"), ProjectConfigPath())
	assert.False(t, filepath.IsAbs(ProjectConfigPath()))
}
