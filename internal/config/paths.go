package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

// GlobalConfigDir returns the path to the global cadence directory.
// This is typically ~/.cadence on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.CadenceHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
// This is always .cadence relative to the working directory.
func ProjectConfigDir() string {
	return constants.CadenceHome
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.cadence/config.yaml on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .cadence/config.yaml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.ConfigFileName)
}
