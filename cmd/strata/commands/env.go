// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/lib/envscan"
)

func envCommand() *cli.Command {
	var namesOnly bool

	return &cli.Command{
		Name:    "env",
		Summary: "Resolve environment variable patterns",
		Usage:   "strata env [flags] <pattern>...",
		Description: `Match the patterns against the current environment and print the
selected variables sorted by name. Patterns support * and ? across the
whole name; a leading ! excludes, and an exclusion always beats any
inclusion. Values feed hash inputs, so use --names when logging.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("env", pflag.ContinueOnError)
			flags.BoolVar(&namesOnly, "names", false, "print variable names without values")
			return flags
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one pattern required")
			}

			pairs, err := envscan.Resolve(args, os.Environ())
			if err != nil {
				return err
			}
			for _, pair := range pairs {
				if namesOnly {
					fmt.Println(pair.Name)
					continue
				}
				fmt.Printf("%s=%s\n", pair.Name, pair.Value)
			}
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Public build variables, secrets carved out",
				Command:     "strata env --names 'NEXT_PUBLIC_*' '!*_TOKEN' '!*_SECRET'",
			},
		},
	}
}
