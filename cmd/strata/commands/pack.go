// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/lib/cachepack"
)

func packCommand() *cli.Command {
	return &cli.Command{
		Name:    "pack",
		Summary: "Create and extract cache artifact containers",
		Subcommands: []*cli.Command{
			packCreateCommand(),
			packExtractCommand(),
		},
	}
}

// parseCompression maps a flag value to its container tag.
func parseCompression(name string) (cachepack.CompressionTag, error) {
	switch strings.ToLower(name) {
	case "none":
		return cachepack.CompressionNone, nil
	case "lz4":
		return cachepack.CompressionLZ4, nil
	case "zstd":
		return cachepack.CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, or zstd)", name)
	}
}

// readSecretFile loads a signing secret, trimming the trailing newline
// editors add.
func readSecretFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret file: %w", err)
	}
	secret := []byte(strings.TrimRight(string(data), "\r\n"))
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

func packCreateCommand() *cli.Command {
	var root, out, compression, secretFile string

	return &cli.Command{
		Name:    "create",
		Summary: "Pack task outputs into a cache artifact",
		Usage:   "strata pack create --out <artifact> [flags] <path>...",
		Description: `Pack the named files (workspace-relative under --root) into a cache
artifact. The container is byte-deterministic: the same file contents
produce the identical artifact regardless of argument order or
timestamps. With --secret-file the artifact is signed so the restore
side can verify it came from a trusted producer.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("pack create", pflag.ContinueOnError)
			flags.StringVar(&root, "root", ".", "workspace root directory")
			flags.StringVar(&out, "out", "", "artifact file to write (required)")
			flags.StringVar(&compression, "compression", "zstd", "compression: none, lz4, or zstd")
			flags.StringVar(&secretFile, "secret-file", "", "sign the artifact with the secret in this file")
			return flags
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			if len(args) == 0 {
				return fmt.Errorf("at least one path required")
			}
			files, err := anchorArgs(args)
			if err != nil {
				return err
			}
			tag, err := parseCompression(compression)
			if err != nil {
				return err
			}

			artifact, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating artifact: %w", err)
			}

			if secretFile != "" {
				var secret []byte
				secret, err = readSecretFile(secretFile)
				if err == nil {
					err = cachepack.PackSigned(artifact, root, files, tag, secret)
				}
			} else {
				err = cachepack.Pack(artifact, root, files, tag)
			}
			if err != nil {
				artifact.Close()
				os.Remove(out)
				return err
			}
			if err := artifact.Close(); err != nil {
				return fmt.Errorf("closing artifact: %w", err)
			}

			logger.Info("artifact written", "path", out, "files", len(files), "compression", tag.String())
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Pack a build's outputs, signed for shared-cache upload",
				Command:     "strata pack create --out web.strata --secret-file ~/.strata-secret dist/bundle.js dist/bundle.js.map",
			},
		},
	}
}

func packExtractCommand() *cli.Command {
	var dest, secretFile string

	return &cli.Command{
		Name:    "extract",
		Summary: "Restore a cache artifact into a directory",
		Usage:   "strata pack extract [flags] <artifact>",
		Description: `Restore the files of a cache artifact under --dest. A signed
artifact requires --secret-file; verification happens before anything
is written, so an unauthentic artifact restores nothing.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("pack extract", pflag.ContinueOnError)
			flags.StringVar(&dest, "dest", ".", "directory to restore into")
			flags.StringVar(&secretFile, "secret-file", "", "verify the artifact with the secret in this file")
			return flags
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one artifact path")
			}

			artifact, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening artifact: %w", err)
			}
			defer artifact.Close()

			var restored []string
			if secretFile != "" {
				secret, err := readSecretFile(secretFile)
				if err != nil {
					return err
				}
				paths, err := cachepack.UnpackSigned(artifact, dest, secret)
				if err != nil {
					return err
				}
				for _, path := range paths {
					restored = append(restored, string(path))
				}
			} else {
				paths, err := cachepack.Unpack(artifact, dest)
				if err != nil {
					return err
				}
				for _, path := range paths {
					restored = append(restored, string(path))
				}
			}

			logger.Info("artifact restored", "path", args[0], "files", len(restored))
			for _, path := range restored {
				fmt.Println(path)
			}
			return nil
		},
	}
}
