package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/record"
	"github.com/sarchlab/csim/replay"
	"github.com/sarchlab/csim/trace"
)

// errMissingArgument is returned when the geometry is incomplete.
var errMissingArgument = errors.New("missing required argument")

type options struct {
	setIndexBits    int
	associativity   int
	blockOffsetBits int
	tracePath       string
	verbose         bool
	configPath      string
	dbPath          string
	recordAccesses  bool
	resultsPath     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "csim -s <s> -E <E> -b <b> -t <tracefile>",
		Short: "Replay a valgrind memory trace against a set-associative cache.",
		Long: `csim simulates a set-associative cache with LRU replacement and ` +
			`reports the hits, misses and evictions of a valgrind memory trace.`,
		Example: "  csim -s 4 -E 1 -b 4 -t traces/yi.trace\n" +
			"  csim -v -s 8 -E 2 -b 4 -t traces/yi.trace",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.setIndexBits, "set-bits", "s", 0,
		"Number of set index bits (S = 2^s is the number of sets)")
	flags.IntVarP(&opts.associativity, "lines", "E", 0,
		"Associativity (number of lines per set)")
	flags.IntVarP(&opts.blockOffsetBits, "block-bits", "b", 0,
		"Number of block bits (B = 2^b is the block size)")
	flags.StringVarP(&opts.tracePath, "trace", "t", "",
		"Name of the valgrind trace to replay")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Display trace info")
	flags.StringVar(&opts.configPath, "config", "",
		"JSON file with the cache geometry; -s, -E and -b override it")
	flags.StringVar(&opts.dbPath, "db", os.Getenv("CSIM_DB"),
		"SQLite file to record the run into (default $CSIM_DB)")
	flags.BoolVar(&opts.recordAccesses, "record-accesses", false,
		"Also record every access into the database")
	flags.StringVar(&opts.resultsPath, "results", ".csim_results",
		"File to write \"hits misses evictions\" into; empty to skip")

	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

// resolveGeometry merges the geometry file with explicitly set flags.
func resolveGeometry(cmd *cobra.Command, opts *options) (cache.Geometry, error) {
	var g cache.Geometry

	if opts.configPath != "" {
		var err error
		g, err = cache.LoadGeometry(opts.configPath)
		if err != nil {
			return g, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("set-bits") {
		g.SetIndexBits = opts.setIndexBits
	}
	if flags.Changed("lines") {
		g.Associativity = opts.associativity
	}
	if flags.Changed("block-bits") {
		g.BlockOffsetBits = opts.blockOffsetBits
	}

	if g.SetIndexBits <= 0 || g.Associativity <= 0 || g.BlockOffsetBits <= 0 {
		return g, fmt.Errorf("%w: -s, -E and -b must all be positive (got %s)",
			errMissingArgument, g)
	}

	return g, g.Validate()
}

func run(cmd *cobra.Command, opts *options) error {
	g, err := resolveGeometry(cmd, opts)
	if err != nil {
		return err
	}

	c, err := cache.New(g)
	if err != nil {
		return err
	}

	// Arguments are fine from here on; later failures are not usage errors.
	cmd.SilenceUsage = true

	f, err := trace.Open(opts.tracePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	simulator := replay.NewSimulator(c)
	if opts.verbose {
		simulator.AcceptHook(replay.NewVerboseHook(cmd.OutOrStdout()))
	}

	var (
		recorder *record.Recorder
		runID    string
	)
	if opts.dbPath != "" {
		recorder, err = record.New(opts.dbPath, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = recorder.Close() }()

		runID = recorder.NewRunID()
		if opts.recordAccesses {
			simulator.AcceptHook(recorder.Hook(runID))
		}
	}

	stats, runErr := simulator.Run(f)

	var incomplete *replay.IncompleteError
	if runErr != nil {
		if !errors.As(runErr, &incomplete) {
			return runErr
		}
		stats = incomplete.Partial
	}

	if recorder != nil {
		err := recorder.RecordRun(record.RunEntry{
			ID:              runID,
			Trace:           opts.tracePath,
			SetIndexBits:    g.SetIndexBits,
			Associativity:   g.Associativity,
			BlockOffsetBits: g.BlockOffsetBits,
			Hits:            stats.Hits,
			Misses:          stats.Misses,
			Evictions:       stats.Evictions,
			Accesses:        stats.Accesses,
			Complete:        runErr == nil,
		})
		if err != nil {
			return err
		}

		if err := recorder.Flush(); err != nil {
			return err
		}
	}

	if runErr != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (incomplete)\n", stats)
		return runErr
	}

	return printSummary(cmd, opts, stats)
}

// printSummary prints the final counters and writes them to the results
// file.
func printSummary(cmd *cobra.Command, opts *options, stats replay.Statistics) error {
	fmt.Fprintln(cmd.OutOrStdout(), stats)

	if opts.resultsPath == "" {
		return nil
	}

	data := fmt.Sprintf("%d %d %d\n", stats.Hits, stats.Misses, stats.Evictions)
	if err := os.WriteFile(opts.resultsPath, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	return nil
}
