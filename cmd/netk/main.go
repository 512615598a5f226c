package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/crash-analysis/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "analyze":
		err = handleAnalyze(ctx, args, os.Stdout)
	case "runs":
		err = handleRuns(ctx, args, os.Stdout)
	case "export":
		err = handleExport(ctx, args, os.Stdout)
	case "version":
		fmt.Printf("netk version %s\n", version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "netk %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`netk - network K-function clustering analysis of crash locations

Usage: netk <command> [options]

Commands:
  analyze    Run a K-function analysis over recorded OD cost matrices
  runs       List the runs stored in a database
  export     Export the OD cost matrices of a stored run as CSV
  version    Show netk version
  help       Show this help message

Examples:
  # Analyse an exported OD cost matrix with the parameters in a config file
  netk analyze --config config/analysis.example.yaml --odcm odcm.csv --html k.html

  # Re-bin a stored run with 50 m bands and store the result
  netk analyze --db netk.db --replay-run 3f1c... --increment 50

  # List stored runs
  netk runs --db netk.db`)
}
