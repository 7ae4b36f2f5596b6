// Command eventsync runs one budgeted load generation and prints whether
// the durable sink kept pace with the local counter.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/Protocol-Lattice/eventsync"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "eventsync:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	defaults := eventsync.DefaultConfig()

	fs := flag.NewFlagSet("eventsync", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "YAML config file")
		maxEvents   = fs.Int("max-events", defaults.MaxEvents, "per-kind event budget")
		interval    = fs.Duration("interval", defaults.Interval, "time between ticks")
		latency     = fs.Duration("latency", defaults.SyncLatency, "durable sink latency")
		minBurst    = fs.Int("min-burst", defaults.MinBurst, "smallest burst per tick")
		maxBurst    = fs.Int("max-burst", defaults.MaxBurst, "largest burst per tick")
		threshold   = fs.Float64("threshold", defaults.Threshold, "required success rate per kind")
		logLevel    = fs.String("log-level", "info", "debug, info, warn or error")
		dumpMetrics = fs.Bool("metrics", false, "print collected metrics at exit")
		drain       = fs.Duration("drain", 0, "after scoring, wait up to this long for the sink to catch up")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// === config: defaults -> file -> env -> flags ===
	cfg := defaults
	var err error
	if *configPath != "" {
		if cfg, err = eventsync.LoadFile(*configPath, cfg); err != nil {
			return err
		}
	}
	if cfg, err = eventsync.FromEnv(cfg); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-events":
			cfg.MaxEvents = *maxEvents
		case "interval":
			cfg.Interval = *interval
		case "latency":
			cfg.SyncLatency = *latency
		case "min-burst":
			cfg.MinBurst = *minBurst
		case "max-burst":
			cfg.MaxBurst = *maxBurst
		case "threshold":
			cfg.Threshold = *threshold
		}
	})

	// === logger ===
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// === metrics ===
	reg := prometheus.NewRegistry()

	es, err := eventsync.New(cfg,
		eventsync.WithLogger(log),
		eventsync.WithOutput(os.Stdout),
		eventsync.WithMetrics(eventsync.NewPrometheusMetrics(reg)),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	outcome, err := es.Run(ctx)
	if err != nil {
		return err
	}
	if outcome == nil {
		log.Warn("run interrupted before both budgets were spent")
	}

	if *drain > 0 {
		dctx, dcancel := context.WithTimeout(ctx, *drain)
		err := es.Drain(dctx)
		dcancel()
		if err != nil {
			log.Warn("sink did not catch up", slog.Int("pending", es.Repository().Pending()), slog.Any("err", err))
		}
		stats := es.Stats()
		for _, k := range eventsync.Kinds() {
			rate, _ := eventsync.SuccessRate(stats.Synced.Get(k), stats.Recorded.Get(k))
			fmt.Printf("Event %s after drain: In handler %d, In repo %d (rate %.2f)\n",
				k, stats.Recorded.Get(k), stats.Synced.Get(k), rate)
		}
	}

	if *dumpMetrics {
		return printMetrics(os.Stdout, reg)
	}
	return nil
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	fmt.Fprintln(w, "\n------ METRICS ------")
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
