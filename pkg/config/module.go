// Package config merges the embedded defaults with any number of yaml or
// json overlay files, later files winning, and validates the result.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DEFAULT []byte

func readFile(config *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("does not exist")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch filepath.Ext(path) {
	case ".json":
		return json.Unmarshal(data, config)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	}

	return fmt.Errorf("not in a valid format")
}

// Process reads the provided configuration files in order on top of the
// embedded defaults. If no configuration files are provided, the default
// configuration is used.
func Process(configPaths []string) (*Config, error) {
	config := Config{}
	if err := yaml.Unmarshal(DEFAULT, &config); err != nil {
		return nil, fmt.Errorf("invalid default config file: %v", err)
	}

	for _, path := range configPaths {
		if err := readFile(&config, path); err != nil {
			return nil, fmt.Errorf(
				"could not process config file %s: %v",
				path,
				err,
			)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
