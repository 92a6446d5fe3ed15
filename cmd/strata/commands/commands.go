// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the strata CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strata-build/strata/cmd/strata/cli"
)

// version is stamped by the release process; dev builds carry the
// placeholder.
var version = "0.0.0-dev"

// Root builds and returns the complete strata CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "strata",
		Description: `Strata: deterministic hashing, globbing, and dependency-graph engine
for monorepo build orchestration.

Computes content-addressed manifests of package inputs, diffs them
against baselines, resolves glob and environment-variable selections,
and answers reachability queries over the package graph. All output is
canonical: same inputs, byte-identical results, on every machine.`,
		Subcommands: []*cli.Command{
			hashCommand(),
			diffCommand(),
			globCommand(),
			graphCommand(),
			envCommand(),
			packCommand(),
			snapshotCommand(),
			serveCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Printf("strata %s\n", version)
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Hash every package the workspace globs select",
				Command:     "strata hash packages --root .",
			},
			{
				Description: "Diff the current manifest against a stored baseline",
				Command:     "strata diff baseline.manifest current.manifest",
			},
			{
				Description: "List build inputs for one package",
				Command:     "strata glob --root packages/ui 'src/**' '!**/*.test.ts'",
			},
			{
				Description: "Everything that rebuilds when core changes",
				Command:     "strata graph closure --edges graph.yaml core",
			},
		},
	}
}
