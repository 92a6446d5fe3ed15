// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/lib/envscan"
	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/walk"
	"github.com/strata-build/strata/lib/workspace"
)

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:    "hash",
		Summary: "Compute content manifests and aggregate hashes",
		Subcommands: []*cli.Command{
			hashPackagesCommand(),
			hashFilesCommand(),
			hashGlobalCommand(),
		},
	}
}

func hashPackagesCommand() *cli.Command {
	var root string
	var ignore []string
	var manifestOut bool

	return &cli.Command{
		Name:    "packages",
		Summary: "Hash workspace packages discovered via workspaces.yaml",
		Usage:   "strata hash packages [flags] [package-dir]...",
		Description: `Hash the input files of workspace packages.

Without arguments, packages are discovered from the workspaces.yaml
globs under --root. With arguments, only the named package directories
are hashed. Each package gets one aggregate hash over the sorted
manifest of its files; node_modules, .git, and .strata are always
excluded.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("hash packages", pflag.ContinueOnError)
			flags.StringVar(&root, "root", ".", "workspace root directory")
			flags.StringSliceVar(&ignore, "ignore", nil, "glob patterns to exclude from hashing")
			flags.BoolVar(&manifestOut, "manifest", false, "print per-file manifests, not just aggregate hashes")
			return flags
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			packages, err := anchorArgs(args)
			if err != nil {
				return err
			}
			if len(packages) == 0 {
				packages, err = workspace.Discover(root)
				if err != nil {
					return err
				}
				if len(packages) == 0 {
					return fmt.Errorf("no packages found under %s", root)
				}
			}

			ignoreSet, err := glob.Compile(ignore)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range workspace.PackageManifests(root, packages, ignoreSet) {
				if result.Err != nil {
					logger.Error("package hash failed", "package", string(result.Dir), "error", result.Err)
					failed++
					continue
				}
				for _, skipped := range result.Skipped {
					logger.Warn("skipped unreadable entry", "path", string(skipped.Path), "error", skipped.Err)
				}

				digest, err := hash.Inputs{Manifest: result.Manifest}.Aggregate()
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s\n", hash.Format(digest), result.Dir)
				if manifestOut {
					if err := writeManifestTo(os.Stdout, result.Manifest); err != nil {
						return err
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d packages failed", failed, len(packages))
			}
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Hash all packages, excluding logs",
				Command:     "strata hash packages --root . --ignore '**/*.log'",
			},
			{
				Description: "Hash one package with its full manifest",
				Command:     "strata hash packages --manifest apps/web",
			},
		},
	}
}

func hashGlobalCommand() *cli.Command {
	var root string

	return &cli.Command{
		Name:    "global",
		Summary: "Hash the workspace-wide invalidation inputs",
		Usage:   "strata hash global [flags]",
		Description: `Compute the global hash of the workspace under --root: the files
matching the globalDependencies globs of strata.json, plus the resolved
values of its globalEnv variable patterns. A change in this hash
invalidates every task's cache entry.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("hash global", pflag.ContinueOnError)
			flags.StringVar(&root, "root", ".", "workspace root directory")
			return flags
		},
		Run: func(_ context.Context, _ []string, logger *slog.Logger) error {
			config, err := workspace.ReadConfig(filepath.Join(root, workspace.ConfigFileName))
			if err != nil {
				return err
			}

			var manifest *hash.FileManifest
			if len(config.GlobalDependencies) > 0 {
				set, err := glob.Compile(config.GlobalDependencies)
				if err != nil {
					return err
				}
				matched, err := walk.Match(root, set, walk.Options{Logger: logger})
				if err != nil {
					return err
				}
				for _, skipped := range matched.Skipped {
					logger.Warn("skipped unreadable entry", "path", string(skipped.Path), "error", skipped.Err)
				}
				manifest, err = hash.ManifestOfFiles(root, matched.Files)
				if err != nil {
					return err
				}
			}

			pairs, err := envscan.Resolve(config.GlobalEnv, os.Environ())
			if err != nil {
				return err
			}
			extra := make([]hash.ExtraInput, len(pairs))
			for i, pair := range pairs {
				extra[i] = hash.ExtraInput{Key: "env:" + pair.Name, Value: pair.Value}
			}

			digest, err := hash.Inputs{Manifest: manifest, Extra: extra}.Aggregate()
			if err != nil {
				return err
			}
			fmt.Printf("%s  (global)\n", hash.Format(digest))
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Global hash of the current workspace",
				Command:     "strata hash global --root .",
			},
		},
	}
}

func hashFilesCommand() *cli.Command {
	var root string

	return &cli.Command{
		Name:    "files",
		Summary: "Hash an explicit list of files into one manifest",
		Usage:   "strata hash files [flags] <path>...",
		Description: `Hash the named files (workspace-relative under --root) into a sorted
manifest, printing the manifest followed by its aggregate hash. Any
unreadable file fails the whole command; a partial manifest would hash
to a wrong cache key.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("hash files", pflag.ContinueOnError)
			flags.StringVar(&root, "root", ".", "workspace root directory")
			return flags
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one path required")
			}
			files, err := anchorArgs(args)
			if err != nil {
				return err
			}

			manifest, err := hash.ManifestOfFiles(root, files)
			if err != nil {
				return err
			}
			if err := writeManifestTo(os.Stdout, manifest); err != nil {
				return err
			}

			digest, err := hash.Inputs{Manifest: manifest}.Aggregate()
			if err != nil {
				return err
			}
			fmt.Printf("%s  (aggregate)\n", hash.Format(digest))
			return nil
		},
	}
}
