// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/lib/diff"
)

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:    "diff",
		Summary: "Compare two manifest files",
		Usage:   "strata diff <baseline-manifest> <current-manifest>",
		Description: `Compare two manifest files (as written by "strata hash files" or
"strata hash packages --manifest") and print the changed, added, and
removed paths. Exits 0 when the manifests match, 1 when they differ.`,
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <baseline-manifest> <current-manifest>, got %d arguments", len(args))
			}

			baseline, err := readManifestFile(args[0])
			if err != nil {
				return err
			}
			current, err := readManifestFile(args[1])
			if err != nil {
				return err
			}

			result := diff.Diff(baseline, current)
			if result.Empty() {
				return nil
			}
			for _, path := range result.Changed {
				fmt.Printf("~ %s\n", path)
			}
			for _, path := range result.Added {
				fmt.Printf("+ %s\n", path)
			}
			for _, path := range result.Removed {
				fmt.Printf("- %s\n", path)
			}
			return fmt.Errorf("manifests differ: %d changed, %d added, %d removed",
				len(result.Changed), len(result.Added), len(result.Removed))
		},
		Examples: []cli.Example{
			{
				Description: "Check whether package inputs drifted from the cached baseline",
				Command:     "strata diff .strata/web.manifest current.manifest",
			},
		},
	}
}
