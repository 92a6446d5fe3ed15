// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/strata-build/strata/cmd/strata/cli"
	"github.com/strata-build/strata/engine"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Summary: "Serve engine operations over stdin/stdout",
		Description: `Run the engine as a subprocess service: length-prefixed CBOR request
envelopes on stdin, one response envelope per request on stdout. This
is how an orchestrator in another process (or language) drives the
engine. The loop ends at EOF.`,
		Run: func(_ context.Context, _ []string, logger *slog.Logger) error {
			e := engine.New(engine.Options{Logger: logger})
			return e.Serve(os.Stdin, os.Stdout)
		},
	}
}
