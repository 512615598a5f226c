package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/crash-analysis/internal/config"
	"github.com/banshee-data/crash-analysis/internal/db"
	"github.com/banshee-data/crash-analysis/internal/kfunction"
	"github.com/banshee-data/crash-analysis/internal/monitoring"
	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/permutation"
	"github.com/banshee-data/crash-analysis/internal/replay"
	"github.com/banshee-data/crash-analysis/internal/report"
)

func handleAnalyze(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	configPath := fs.String("config", "", "Analysis config file (.json, .yaml or .yml)")
	odcmPath := fs.String("odcm", "", "OD cost matrix CSV (Iteration_Number,OriginID,DestinationID,Total_Length)")
	dbPath := fs.String("db", "", "SQLite database for results (and for --replay-run)")
	replayRun := fs.String("replay-run", "", "Stored run whose OD cost matrices are analysed again")
	permutations := fs.Int("permutations", -1, "Number of permutations (default: config, else every recorded one)")
	increment := fs.Float64("increment", 0, "Distance increment, overrides the config")
	networkLength := fs.Float64("network-length", 0, "Network length, overrides the config")
	points := fs.Int("points", 0, "Number of crashes behind the density, overrides the config")
	workers := fs.Int("workers", 0, "Permutations computed at once, overrides the config")
	htmlPath := fs.String("html", "", "Write an interactive chart to this file")
	pngPath := fs.String("png", "", "Write a static plot to this file")
	quiet := fs.Bool("quiet", false, "Do not log progress")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (*odcmPath == "") == (*replayRun == "") {
		return errors.New("exactly one of --odcm and --replay-run is required")
	}
	if *replayRun != "" && *dbPath == "" {
		return errors.New("--replay-run needs --db")
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg := &config.AnalysisConfig{}
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadAnalysisConfig(*configPath); err != nil {
			return err
		}
	}

	var store *db.Store
	if *dbPath != "" {
		var err error
		if store, err = db.Open(*dbPath); err != nil {
			return err
		}
		defer store.Close()
	}

	var table *replay.Table
	if *odcmPath != "" {
		f, err := os.Open(*odcmPath)
		if err != nil {
			return err
		}
		table, err = replay.ReadCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", *odcmPath, err)
		}
	} else {
		var (
			run *kfunction.Run
			err error
		)
		if table, run, err = replay.LoadRun(ctx, store, *replayRun); err != nil {
			return err
		}
		// The recorded run fixes what the distances were measured on.
		if cfg.AnalysisType == nil {
			t := string(run.AnalysisType)
			cfg.AnalysisType = &t
		}
		if cfg.Network == nil {
			cfg.Network = &run.Network
		}
		if cfg.NumPoints == nil && run.NumPoints > 0 {
			cfg.NumPoints = &run.NumPoints
		}
	}

	opts := cfg.Options()
	if cfg.NumPermutations == nil {
		opts.NumPermutations = table.Permutations()
	}
	if *permutations >= 0 {
		opts.NumPermutations = *permutations
	}
	if *increment > 0 {
		opts.DistanceIncrement = *increment
	}
	if *networkLength > 0 {
		opts.NetworkLength = *networkLength
	}
	if *points > 0 {
		opts.NumPoints = *points
	}
	opts.Sources = permutation.NamedPoints("observed")
	if opts.AnalysisType == netk.Cross {
		opts.Destinations = permutation.NamedPoints("destinations")
	}

	n := cfg.GetWorkers()
	if *workers > 0 {
		n = *workers
	}
	svcCfg := kfunction.Config{Orchestrator: permutation.Config{Workers: n}}
	if store != nil {
		svcCfg.Writer = store
	}
	svc := kfunction.NewService(table, table, table, svcCfg)

	rep, err := svc.Run(ctx, opts)
	if err != nil {
		return err
	}
	if err := printReport(stdout, rep); err != nil {
		return err
	}

	if *htmlPath != "" {
		f, err := os.Create(*htmlPath)
		if err != nil {
			return err
		}
		if err := report.WriteHTML(f, rep); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", *htmlPath, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if *pngPath != "" {
		if err := report.SavePNG(*pngPath, rep); err != nil {
			return err
		}
	}
	return nil
}

func printReport(w io.Writer, rep *kfunction.Report) error {
	run := rep.Run
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  %s on %s (%s length units)\n", run.AnalysisType.Description(), run.Network, humanize.CommafWithDigits(run.NetworkLength, 1))
	fmt.Fprintf(w, "  %s points, %s observed distances, %d bands, %s permutations in %s\n",
		humanize.Comma(int64(run.NumPoints)),
		humanize.Comma(int64(len(rep.Observed.Distances()))),
		run.NumBands,
		humanize.Comma(int64(run.NumPermutations)),
		run.Elapsed.Round(time.Millisecond))

	var stats []report.BandStats
	if len(rep.Trials) > 1 {
		var err error
		if stats, err = report.PermutationStats(rep.Trials); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	header := "band\tcount\tK\t"
	for _, env := range rep.Envelopes {
		header += kfunction.EnvelopeDescription(env.Confidence, false) + "\t" + kfunction.EnvelopeDescription(env.Confidence, true) + "\t"
	}
	if stats != nil {
		header += "mean\tp\t"
	}
	fmt.Fprintln(tw, header)

	for i, b := range rep.Observed.DistanceBands() {
		line := fmt.Sprintf("%g\t%d\t%.4g\t", b.DistanceBand, b.Count, b.KFunction)
		for _, env := range rep.Envelopes {
			line += fmt.Sprintf("%.4g\t%.4g\t", env.Lower[i].KFunction, env.Upper[i].KFunction)
		}
		if stats != nil {
			line += fmt.Sprintf("%.1f\t%.3f\t", stats[i].Mean, stats[i].PValue)
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func handleRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("--db is required")
	}

	store, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNETWORK\tBANDS\tPERMUTATIONS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.AnalysisType, r.Network, r.NumBands,
			humanize.Comma(int64(r.NumPermutations)), humanize.Time(r.StartedAt))
	}
	return tw.Flush()
}

func handleExport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database (required)")
	runID := fs.String("run", "", "Run ID (required)")
	out := fs.String("out", "", "Output CSV (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || *runID == "" {
		return errors.New("--db and --run are required")
	}

	store, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	table, _, err := replay.LoadRun(ctx, store, *runID)
	if err != nil {
		return err
	}
	if *out == "" {
		return table.WriteCSV(stdout)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
