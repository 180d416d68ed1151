package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nemanja-m/workpool/internal/shared/config"
	"github.com/nemanja-m/workpool/internal/shared/logging"
	"github.com/nemanja-m/workpool/internal/telemetry"
	"github.com/nemanja-m/workpool/local"
	"github.com/nemanja-m/workpool/pkg/pool"
)

// params collects repeated -param key=value flags.
type params map[string]string

func (p params) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p params) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	p[key] = val
	return nil
}

func main() {
	jobParams := params{}
	var (
		configPath = flag.String("config", "", "path to config file")
		jobName    = flag.String("job", "", "job to run (e.g., wordcount, grep)")
		input      = flag.String("input", "", "input files glob pattern (supports **)")
		output     = flag.String("output", "", "output directory")
		mappers    = flag.Int("mappers", 0, "number of map workers (overrides config)")
		reducers   = flag.Int("reducers", 0, "number of reduce workers (overrides config)")
		listJobs   = flag.Bool("list", false, "list available jobs and exit")
	)
	flag.Var(jobParams, "param", "job parameter as key=value (repeatable)")
	flag.Parse()

	if *listJobs {
		for _, name := range local.Jobs() {
			description, _ := local.Describe(name)
			fmt.Printf("%-12s %s\n", name, description)
		}
		return
	}

	cfg, err := config.LoadLocal(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *mappers > 0 {
		cfg.Pool.Mappers = *mappers
	}
	if *reducers > 0 {
		cfg.Pool.Reducers = *reducers
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger, err := logging.New(os.Stdout, level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if *input == "" {
		logger.Fatal("Input pattern must be specified using the -input flag")
	}
	if *output == "" {
		logger.Fatal("Output directory must be specified using the -output flag")
	}

	job, err := local.NewJob(*jobName, jobParams)
	if err != nil {
		logger.Fatal("Invalid job", "job", *jobName, "error", err, "available", local.Jobs())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, job, *input, *output, logger); err != nil {
		stop()
		logger.Fatal("Job failed", "job", job.Name(), "error", err)
	}
}

func run(ctx context.Context, cfg *config.LocalConfig, job local.Job, input, output string, logger logging.Logger) (err error) {
	var metrics *pool.Metrics
	if cfg.Metrics.Enabled {
		reg := telemetry.NewRegistry()
		metrics = pool.NewMetrics(reg, cfg.Metrics.Namespace)

		server, err := telemetry.Start(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			err = errors.Join(err, server.Close())
		}()
	}

	engine, err := local.NewEngine(local.Config{
		Job:           job,
		Input:         input,
		Output:        output,
		NumMappers:    cfg.Pool.Mappers,
		NumReducers:   cfg.Pool.Reducers,
		IsolatePanics: cfg.Pool.IsolatePanics,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	return engine.Run(ctx)
}
