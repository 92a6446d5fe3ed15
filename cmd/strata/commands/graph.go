// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/lib/depgraph"
)

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:    "graph",
		Summary: "Query the package dependency graph",
		Description: `Query a dependency graph read from a YAML edge file: a mapping from
each package to the list of packages it depends on. Packages that only
appear as dependencies need no entry of their own.`,
		Subcommands: []*cli.Command{
			graphClosureCommand(),
			graphSubgraphCommand(),
			graphChangedCommand(),
		},
	}
}

// readEdges loads a YAML edge file.
func readEdges(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph %s: %w", path, err)
	}
	var edges map[string][]string
	if err := yaml.Unmarshal(data, &edges); err != nil {
		return nil, fmt.Errorf("parsing graph %s: %w", path, err)
	}
	return edges, nil
}

func graphClosureCommand() *cli.Command {
	var edgesFile string

	return &cli.Command{
		Name:    "closure",
		Summary: "Transitive dependency closure of the seed packages",
		Usage:   "strata graph closure --edges <graph.yaml> <package>...",
		Description: `Print the seeds plus every package reachable from them, one per line
in sorted order. This is the set that may rebuild when the seeds
change. Cycles are fine; unknown seeds are an error.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("graph closure", pflag.ContinueOnError)
			flags.StringVar(&edgesFile, "edges", "", "YAML edge file (required)")
			return flags
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if edgesFile == "" {
				return fmt.Errorf("--edges is required")
			}
			if len(args) == 0 {
				return fmt.Errorf("at least one seed package required")
			}

			edges, err := readEdges(edgesFile)
			if err != nil {
				return err
			}
			graph, err := depgraph.New(edges)
			if err != nil {
				return err
			}
			closure, err := graph.TransitiveClosure(args)
			if err != nil {
				return err
			}
			for _, node := range closure {
				fmt.Println(node)
			}
			return nil
		},
	}
}

func graphSubgraphCommand() *cli.Command {
	var edgesFile string

	return &cli.Command{
		Name:    "subgraph",
		Summary: "Induced subgraph over the named packages",
		Usage:   "strata graph subgraph --edges <graph.yaml> <package>...",
		Description: `Print the subgraph induced by the named packages as YAML: exactly
those packages, and only the edges with both endpoints among them.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("graph subgraph", pflag.ContinueOnError)
			flags.StringVar(&edgesFile, "edges", "", "YAML edge file (required)")
			return flags
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if edgesFile == "" {
				return fmt.Errorf("--edges is required")
			}
			if len(args) == 0 {
				return fmt.Errorf("at least one package required")
			}

			edges, err := readEdges(edgesFile)
			if err != nil {
				return err
			}
			graph, err := depgraph.New(edges)
			if err != nil {
				return err
			}
			induced, err := graph.Subgraph(args)
			if err != nil {
				return err
			}

			// Emit in canonical node order; yaml.Marshal of a map would
			// not guarantee it.
			out := induced.Edges()
			names := make([]string, 0, len(out))
			for name := range out {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if len(out[name]) == 0 {
					fmt.Printf("%s: []\n", name)
					continue
				}
				fmt.Printf("%s:\n", name)
				for _, dep := range out[name] {
					fmt.Printf("  - %s\n", dep)
				}
			}
			return nil
		},
	}
}

func graphChangedCommand() *cli.Command {
	var beforeFile, afterFile string

	return &cli.Command{
		Name:    "changed",
		Summary: "Packages whose presence or dependencies differ between two graphs",
		Usage:   "strata graph changed --before <old.yaml> --after <new.yaml>",
		Description: `Compare two edge files and print the packages that were added,
removed, or had their direct dependencies change. A lockfile-level
rewrite shows up here even when no package content changed.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("graph changed", pflag.ContinueOnError)
			flags.StringVar(&beforeFile, "before", "", "YAML edge file before the change (required)")
			flags.StringVar(&afterFile, "after", "", "YAML edge file after the change (required)")
			return flags
		},
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
			if beforeFile == "" || afterFile == "" {
				return fmt.Errorf("--before and --after are required")
			}

			beforeEdges, err := readEdges(beforeFile)
			if err != nil {
				return err
			}
			afterEdges, err := readEdges(afterFile)
			if err != nil {
				return err
			}
			before, err := depgraph.New(beforeEdges)
			if err != nil {
				return err
			}
			after, err := depgraph.New(afterEdges)
			if err != nil {
				return err
			}

			for _, node := range depgraph.GlobalChange(before, after) {
				fmt.Println(node)
			}
			return nil
		},
	}
}
