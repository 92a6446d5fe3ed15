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
	"github.com/strata-build/strata/lib/diff"
	"github.com/strata-build/strata/lib/workpath"
	"github.com/strata-build/strata/lib/workspace"
)

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Store and read back baseline file contents",
		Subcommands: []*cli.Command{
			snapshotCreateCommand(),
			snapshotCatCommand(),
		},
	}
}

func snapshotCreateCommand() *cli.Command {
	var root, dir string

	return &cli.Command{
		Name:    "create",
		Summary: "Snapshot the contents of a manifest's files",
		Usage:   "strata snapshot create [flags] <manifest-file>",
		Description: `Store the current content of every file in the manifest as
content-addressed blobs, so "snapshot cat" can read a file as of the
baseline after the working tree has moved on. Identical contents share
one blob.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("snapshot create", pflag.ContinueOnError)
			flags.StringVar(&root, "root", ".", "workspace root directory")
			flags.StringVar(&dir, "dir", "", "snapshot directory (default <root>/.strata/snapshots)")
			return flags
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one manifest file")
			}
			manifest, err := readManifestFile(args[0])
			if err != nil {
				return err
			}

			if dir == "" {
				dataDir, err := workspace.DataDir(root)
				if err != nil {
					return err
				}
				dir = filepath.Join(dataDir, "snapshots")
			}
			if _, err := diff.WriteBlobSnapshot(dir, root, manifest); err != nil {
				return err
			}

			logger.Info("snapshot written", "dir", dir, "files", manifest.Len())
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Snapshot the files of a stored baseline manifest",
				Command:     "strata snapshot create --root . baseline.manifest",
			},
		},
	}
}

func snapshotCatCommand() *cli.Command {
	var dir, manifestPath string

	return &cli.Command{
		Name:    "cat",
		Summary: "Print a file's content as of a snapshot",
		Usage:   "strata snapshot cat --dir <dir> --manifest <manifest-file> <path>",
		Description: `Print the snapshotted content of one manifest path to stdout. The
manifest names the digest to look up; a path the manifest does not
track is an error.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("snapshot cat", pflag.ContinueOnError)
			flags.StringVar(&dir, "dir", "", "snapshot directory (required)")
			flags.StringVar(&manifestPath, "manifest", "", "manifest file the snapshot was created from (required)")
			return flags
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if dir == "" || manifestPath == "" {
				return fmt.Errorf("--dir and --manifest are required")
			}
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one path")
			}

			manifest, err := readManifestFile(manifestPath)
			if err != nil {
				return err
			}
			path, err := workpath.Normalize(args[0])
			if err != nil {
				return err
			}

			content, err := diff.OpenBlobSnapshot(dir, manifest).PreviousContent(path)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
}
