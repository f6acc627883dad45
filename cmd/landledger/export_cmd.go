package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
)

// runExportCmd implements `landledger export --out FILE [--archive]`.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		out     string
		archive bool
	)
	cmd.StringVar(&out, "out", "", "Bundle output file (REQUIRED)")
	cmd.BoolVar(&archive, "archive", false, "Also store the bundle in artifact storage")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if out == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		return 2
	}

	return withApp(stderr, func(ctx context.Context, a *app) int {
		bundle, err := a.audit.Export(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		data, err := bundle.Marshal()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if err := os.WriteFile(out, data, 0o600); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot write bundle: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Exported %d blocks to %s\n", bundle.TotalBlocks, out)

		if archive {
			ref, err := audit.Archive(ctx, a.store, bundle)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: archive bundle: %v\n", err)
				return 2
			}
			_, _ = fmt.Fprintf(stdout, "Archived as %s\n", ref)
		}
		if !bundle.Report.Valid {
			_, _ = fmt.Fprintf(stdout, "Warning: exported chain does not verify: %s\n", bundle.Report.Reason)
		}
		return 0
	})
}
