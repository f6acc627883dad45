package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
)

// runDisputeCmd implements `landledger dispute <create|transition|evidence>`.
// Every action records a ledger block; the updated case is printed as JSON.
func runDisputeCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: landledger dispute <create|transition|evidence> [flags]")
		return 2
	}
	cmd := flag.NewFlagSet("dispute "+args[0], flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		actor, doc, id, status, note, file string
	)
	cmd.StringVar(&actor, "actor", "", "Acting user id (REQUIRED)")

	switch args[0] {
	case "create":
		cmd.StringVar(&doc, "doc", "", "Dispute JSON document (REQUIRED)")
	case "transition":
		cmd.StringVar(&id, "id", "", "Dispute id (REQUIRED)")
		cmd.StringVar(&status, "status", "", "Target status (REQUIRED)")
		cmd.StringVar(&note, "note", "", "Transition note; kept as the resolution note when RESOLVED")
	case "evidence":
		cmd.StringVar(&id, "id", "", "Dispute id (REQUIRED)")
		cmd.StringVar(&file, "file", "", "Evidence file to attach (REQUIRED)")
		cmd.StringVar(&note, "note", "", "Evidence note")
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown dispute action: %s\n", args[0])
		return 2
	}
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if actor == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --actor is required")
		return 2
	}

	switch args[0] {
	case "create":
		f, code := readDocument(doc, stderr, snapshot.DisputeFieldsFromDocument)
		if f == nil {
			return code
		}
		return withApp(stderr, func(ctx context.Context, a *app) int {
			d, err := a.disputes.Create(ctx, actor, *f)
			return printResult(stdout, stderr, d, err)
		})
	case "transition":
		if id == "" || status == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --id and --status are required")
			return 2
		}
		return withApp(stderr, func(ctx context.Context, a *app) int {
			d, err := a.disputes.Transition(ctx, id, actor, status, note)
			return printResult(stdout, stderr, d, err)
		})
	default:
		if id == "" || file == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --id and --file are required")
			return 2
		}
		data, err := os.ReadFile(file)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return withApp(stderr, func(ctx context.Context, a *app) int {
			d, ref, err := a.disputes.AttachEvidence(ctx, id, actor, data, note)
			if err == nil {
				_, _ = fmt.Fprintf(stderr, "Evidence stored as %s\n", ref)
			}
			return printResult(stdout, stderr, d, err)
		})
	}
}

// runParcelCmd implements `landledger parcel <register|update-boundary>`.
func runParcelCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: landledger parcel <register|update-boundary> [flags]")
		return 2
	}
	cmd := flag.NewFlagSet("parcel "+args[0], flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var actor, doc, id string
	cmd.StringVar(&actor, "actor", "", "Acting user id (REQUIRED)")
	cmd.StringVar(&doc, "doc", "", "Parcel or boundary JSON document (REQUIRED)")

	switch args[0] {
	case "register":
	case "update-boundary":
		cmd.StringVar(&id, "id", "", "Parcel id (REQUIRED)")
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown parcel action: %s\n", args[0])
		return 2
	}
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if actor == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --actor is required")
		return 2
	}

	if args[0] == "register" {
		f, code := readDocument(doc, stderr, snapshot.ParcelFieldsFromDocument)
		if f == nil {
			return code
		}
		return withApp(stderr, func(ctx context.Context, a *app) int {
			p, err := a.parcels.Register(ctx, actor, *f)
			return printResult(stdout, stderr, p, err)
		})
	}

	if id == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --id is required")
		return 2
	}
	u, code := readDocument(doc, stderr, snapshot.BoundaryUpdateFromDocument)
	if u == nil {
		return code
	}
	return withApp(stderr, func(ctx context.Context, a *app) int {
		p, err := a.parcels.UpdateBoundary(ctx, id, actor, u.Boundary, u.AreaSqm)
		return printResult(stdout, stderr, p, err)
	})
}

// readDocument loads and schema-validates a JSON document before any database work.
func readDocument[T any](path string, stderr io.Writer, decode func([]byte) (*T, error)) (*T, int) {
	if path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --doc is required")
		return nil, 2
	}
	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 2
	}
	v, err := decode(data)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 2
	}
	return v, 0
}

func printResult(stdout, stderr io.Writer, v any, err error) int {
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	writeIndented(stdout, v)
	return 0
}
