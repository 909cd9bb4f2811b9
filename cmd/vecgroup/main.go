// Command vecgroup groups catalog metadata items into bounded-size
// sub-groups and writes the community definitions and reports.
//
// Usage:
//
//	vecgroup -config vecgroup.yaml
//	vecgroup -input catalog.db -out ./out -fresh
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/vecgroup"
	"github.com/hupe1980/vecgroup/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML configuration file")
		input      = flag.String("input", "", "Candidate source (.db SQLite catalog or .jsonl file); overrides the config")
		out        = flag.String("out", "", "Local output directory; overrides the config storage")
		fresh      = flag.Bool("fresh", false, "Discard checkpoints before running")
		logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		metrics    = flag.Bool("metrics", false, "Print per-stage timings after the run")
	)

	flag.Parse()

	cfg := config.Default()

	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	if *input != "" {
		cfg.Input.Path = *input
		cfg.Input.FromStorage = false

		cfg.Input.Kind = config.InputSQLite
		if strings.HasSuffix(*input, ".jsonl") {
			cfg.Input.Kind = config.InputJSONL
		}
	}

	if *out != "" {
		cfg.Storage = config.Storage{Kind: config.StorageLocal, Path: *out}
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if cfg.Input.Path == "" {
		fmt.Fprintln(os.Stderr, "vecgroup: no input given")
		flag.Usage()
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *fresh, *metrics); err != nil {
		stop()
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, fresh, printMetrics bool) error {
	store, err := cfg.Storage.OpenStore(ctx)
	if err != nil {
		return err
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	l, err := cfg.Input.OpenLoader(store, logger.Logger)
	if err != nil {
		return err
	}

	collector := &vecgroup.BasicMetricsCollector{}
	opts = append(opts, vecgroup.WithLogger(logger), vecgroup.WithMetricsCollector(collector))

	p, err := vecgroup.New(l, store, opts...)
	if err != nil {
		return err
	}

	if fresh {
		if err := p.Invalidate(ctx); err != nil {
			return err
		}
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("items=%d communities=%d sub_groups=%d hub_and_spoke=%d orphan=%d modularity=%.4f graph_checkpoint=%t\n",
		res.Items,
		res.Summary.Communities,
		res.Summary.SubGroups,
		res.Summary.HubAndSpokeGroups,
		res.Summary.OrphanGroups,
		res.Modularity,
		res.GraphFromCheckpoint,
	)

	if printMetrics {
		stats := collector.GetStats()
		for _, stage := range []string{
			vecgroup.StageLoad,
			vecgroup.StageEmbed,
			vecgroup.StageGraph,
			vecgroup.StageCommunity,
			vecgroup.StagePartition,
			vecgroup.StageOutput,
		} {
			if s, ok := stats[stage]; ok {
				fmt.Printf("%-10s %12dns\n", stage, s.TotalNanos)
			}
		}

		fmt.Printf("checkpoint hits=%d misses=%d\n", collector.CheckpointHits.Load(), collector.CheckpointMisses.Load())
	}

	return nil
}
