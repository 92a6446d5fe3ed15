// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace ties the engine's primitives to an on-disk
// monorepo: it reads the workspace configuration, discovers member
// packages, and computes per-package file manifests.
//
// Two files describe a workspace. "strata.json" (JSONC — comments and
// trailing commas tolerated) configures hashing: global dependency
// globs, global environment variable patterns, per-task input and
// output globs. "workspaces.yaml" lists the directory globs that
// locate member packages.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the workspace configuration file, anchored at the
// workspace root.
const ConfigFileName = "strata.json"

// WorkspacesFileName is the package-glob file, anchored at the
// workspace root.
const WorkspacesFileName = "workspaces.yaml"

// TaskConfig configures hashing for one task name.
type TaskConfig struct {
	// Inputs are the glob patterns selecting the files that feed the
	// task's hash. Empty means every non-ignored file in the package.
	Inputs []string `json:"inputs,omitempty"`

	// Outputs are the glob patterns selecting files the task
	// produces, used when packing cache artifacts.
	Outputs []string `json:"outputs,omitempty"`

	// Env lists environment variable patterns whose resolved values
	// join the task's hash inputs.
	Env []string `json:"env,omitempty"`
}

// Config is the parsed strata.json.
type Config struct {
	// GlobalDependencies are glob patterns for files outside any
	// package whose change invalidates every task (lockfiles, root
	// tsconfig, CI config).
	GlobalDependencies []string `json:"globalDependencies,omitempty"`

	// GlobalEnv lists environment variable patterns that join the
	// global hash.
	GlobalEnv []string `json:"globalEnv,omitempty"`

	// Tasks maps task names to their hashing configuration.
	Tasks map[string]TaskConfig `json:"tasks,omitempty"`
}

// ParseConfig strips JSONC comments and trailing commas from data,
// then unmarshals the result. The on-disk format is JSON extended
// with // line comments, /* block comments */, and trailing commas.
func ParseConfig(data []byte) (*Config, error) {
	stripped := jsonc.ToJSON(data)

	var config Config
	if err := json.Unmarshal(stripped, &config); err != nil {
		return nil, fmt.Errorf("parsing workspace config: %w", err)
	}
	return &config, nil
}

// ReadConfig reads and parses the strata.json at path.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// workspacesFile is the YAML shape of workspaces.yaml.
type workspacesFile struct {
	Packages []string `yaml:"packages"`
}

// ReadWorkspaceGlobs reads the package directory globs from the
// workspaces.yaml at path.
func ReadWorkspaceGlobs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var parsed workspacesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(parsed.Packages) == 0 {
		return nil, fmt.Errorf("%s: no package globs declared", path)
	}
	return parsed.Packages, nil
}
