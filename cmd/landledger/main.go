package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable so tests can replace the long-running server.
var startServer = runServer

// Run dispatches a subcommand and returns the process exit code:
// 0 success or verification passed, 1 verification failed, 2 usage or runtime error.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return startServer(nil, stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return startServer(args[2:], stdout, stderr)
	case "genesis":
		return runGenesisCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "verify-entity":
		return runVerifyEntityCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "verify-bundle":
		return runVerifyBundleCmd(args[2:], stdout, stderr)
	case "dispute":
		return runDisputeCmd(args[2:], stdout, stderr)
	case "parcel":
		return runParcelCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return startServer(args[1:], stdout, stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "landledger: tamper-evident land records ledger")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  landledger <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	printCommand(w, "serve", "Run the reporting API server (default)")
	printCommand(w, "genesis", "Create the genesis block if the chain is empty")
	printCommand(w, "verify", "Verify the whole chain (--json)")
	printCommand(w, "verify-entity", "Verify one entity's history (--type, --id, --json)")
	printCommand(w, "export", "Write the chain to an export bundle (--out)")
	printCommand(w, "verify-bundle", "Verify an export bundle offline (--bundle, --json)")
	printCommand(w, "dispute", "create --doc | transition --id --status | evidence --id --file (--actor)")
	printCommand(w, "parcel", "register --doc | update-boundary --id --doc (--actor)")
	printCommand(w, "help", "Show this help")
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %-15s %s\n", name, desc)
}
