// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/gildash/pkg/gildash"
)

// Config mirrors .zipbul/project.yaml. Every field is optional; flags
// override file values.
type Config struct {
	// Project is read from the file but not passed on by openOptions;
	// the project name is always the one derived from the root directory.
	Project string `yaml:"project,omitempty"`

	// Extensions lists indexed source extensions (with leading dot).
	Extensions []string `yaml:"extensions,omitempty"`

	// Ignore adds glob patterns to the built-in exclusion floor.
	Ignore []string `yaml:"ignore,omitempty"`

	// Semantic enables the semantic bridge.
	Semantic bool `yaml:"semantic,omitempty"`
}

// LoadConfig reads the project config. A missing file yields an empty
// config, not an error.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		configPath = filepath.Join(cwd, gildash.MetaDirName, "project.yaml")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// openOptions translates the file config into runtime options.
func (c *Config) openOptions(globals GlobalFlags) *gildash.Options {
	return &gildash.Options{
		Extensions:     c.Extensions,
		IgnorePatterns: c.Ignore,
		Semantic:       c.Semantic,
		Logger:         newLogger(globals),
	}
}

// projectRoot resolves the absolute project root (the working
// directory).
func projectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Abs(cwd)
}
