// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/walk"
)

func globCommand() *cli.Command {
	var root string
	var check bool

	return &cli.Command{
		Name:    "glob",
		Summary: "Select files by glob patterns",
		Usage:   "strata glob [flags] <pattern>...",
		Description: `Walk --root and print the files selected by the patterns, in sorted
order. Patterns support *, ?, ** and a leading ! for negation; the
last matching pattern wins. With --check the patterns are only
validated, nothing is walked.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("glob", pflag.ContinueOnError)
			flags.StringVar(&root, "root", ".", "directory to walk")
			flags.BoolVar(&check, "check", false, "validate patterns without walking")
			return flags
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one pattern required")
			}

			set, err := glob.Compile(args)
			if err != nil {
				return err
			}
			if check {
				return nil
			}

			result, err := walk.Match(root, set, walk.Options{Logger: logger})
			if err != nil {
				return err
			}
			for _, skipped := range result.Skipped {
				logger.Warn("skipped unreadable entry", "path", string(skipped.Path), "error", skipped.Err)
			}
			for _, file := range result.Files {
				fmt.Println(file)
			}
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Sources without their tests",
				Command:     "strata glob --root packages/ui 'src/**' '!**/*.test.ts'",
			},
			{
				Description: "Validate task output patterns from CI",
				Command:     "strata glob --check 'dist/**' '!dist/**/*.map'",
			},
		},
	}
}
