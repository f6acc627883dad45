package main

import (
	"context"
	"fmt"
	"io"
)

// runGenesisCmd implements `landledger genesis`. Running it on an initialized chain is a no-op.
func runGenesisCmd(_ []string, stdout, stderr io.Writer) int {
	return withApp(stderr, func(ctx context.Context, a *app) int {
		block, err := a.chain.EnsureGenesis(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Genesis block: %s\n", block.Hash)
		return 0
	})
}
