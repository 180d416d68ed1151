package local

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/nemanja-m/workpool/internal/shared/logging"
	"github.com/nemanja-m/workpool/pkg/pool"
)

type Config struct {
	Job    Job
	Input  string
	Output string

	// Shuffle holds intermediate map output. When empty, a temporary
	// directory is used and removed after the run.
	Shuffle string

	NumMappers  int
	NumReducers int

	// IsolatePanics turns a panicking map or reduce task into a task error
	// instead of crashing the process.
	IsolatePanics bool

	Logger  logging.Logger
	Metrics *pool.Metrics
}

type Engine struct {
	config Config
	logger logging.Logger
}

func NewEngine(config Config) (*Engine, error) {
	if config.Job == nil {
		return nil, errors.New("job is required")
	}
	if config.Input == "" {
		return nil, errors.New("input pattern is required")
	}
	if config.Output == "" {
		return nil, errors.New("output directory is required")
	}
	if config.NumMappers < 1 || config.NumReducers < 1 {
		return nil, fmt.Errorf("mappers and reducers must be >= 1, got %d and %d",
			config.NumMappers, config.NumReducers)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{config: config, logger: logger}, nil
}

// Run executes the map phase and then the reduce phase, each on its own
// worker pool. Failed tasks do not stop the others; all task errors are
// returned joined.
func (e *Engine) Run(ctx context.Context) (err error) {
	runID := uuid.New()
	logger := e.logger.With("run_id", runID.String(), "job", e.config.Job.Name())

	shuffleDir := e.config.Shuffle
	if shuffleDir == "" {
		shuffleDir, err = os.MkdirTemp("", "workpool-"+runID.String()+"-*")
		if err != nil {
			return fmt.Errorf("create shuffle dir: %w", err)
		}
		defer os.RemoveAll(shuffleDir)
	}

	inputFiles, err := FindFiles(e.config.Input)
	if err != nil {
		return err
	}
	if len(inputFiles) == 0 {
		return fmt.Errorf("no files matched the input pattern: %s", e.config.Input)
	}

	// Round-robin the input so there are at most NumMappers map tasks.
	splits := make([][]string, min(e.config.NumMappers, len(inputFiles)))
	for i, file := range inputFiles {
		splits[i%len(splits)] = append(splits[i%len(splits)], file)
	}

	logger.Info("Starting job",
		"input_files", len(inputFiles),
		"map_tasks", len(splits),
		"reduce_tasks", e.config.NumReducers,
	)

	mapTasks := make([]func() error, len(splits))
	for i, files := range splits {
		mapTasks[i] = func() error {
			return e.runMapTask(i, shuffleDir, files)
		}
	}
	if err := e.runPhase(ctx, logger, "map", e.config.NumMappers, mapTasks); err != nil {
		return err
	}

	reduceTasks := make([]func() error, e.config.NumReducers)
	for i := range reduceTasks {
		reduceTasks[i] = func() error {
			return e.runReduceTask(i, shuffleDir)
		}
	}
	if err := e.runPhase(ctx, logger, "reduce", e.config.NumReducers, reduceTasks); err != nil {
		return err
	}

	logger.Info("Job completed", "output", e.config.Output)
	return nil
}

// runPhase runs tasks on a fresh pool and waits for the pool to drain.
// Each worker records failures in its own slot, indexed by worker ID.
func (e *Engine) runPhase(ctx context.Context, logger logging.Logger, phase string, workers int, tasks []func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s phase: %w", phase, err)
	}

	failures := make([][]error, workers)
	opts := []pool.Option{
		pool.WithName(phase),
		pool.WithLogger(logger),
		pool.WithMetrics(e.config.Metrics),
	}
	if e.config.IsolatePanics {
		opts = append(opts, pool.WithPanicHandler(func(workerID int, recovered any) {
			failures[workerID] = append(failures[workerID], fmt.Errorf("%s task panicked: %v", phase, recovered))
		}))
	}

	p, err := pool.New(workers, opts...)
	if err != nil {
		return fmt.Errorf("%s phase: %w", phase, err)
	}

	for id, task := range tasks {
		err := p.Submit(func(workerID int) {
			if err := ctx.Err(); err != nil {
				failures[workerID] = append(failures[workerID], fmt.Errorf("%s task %d: %w", phase, id, err))
				return
			}

			logger.Debug("Starting task", "phase", phase, "task", id, "worker_id", workerID)
			if err := task(); err != nil {
				logger.Error("Task failed", "phase", phase, "task", id, "worker_id", workerID, "error", err)
				failures[workerID] = append(failures[workerID], fmt.Errorf("%s task %d: %w", phase, id, err))
				return
			}
			logger.Debug("Completed task", "phase", phase, "task", id, "worker_id", workerID)
		})
		if err != nil {
			p.Shutdown()
			return fmt.Errorf("%s phase: submit task %d: %w", phase, id, err)
		}
	}
	p.Shutdown()

	return errors.Join(slices.Concat(failures...)...)
}

func (e *Engine) runMapTask(mapperID int, shuffleDir string, filePaths []string) error {
	partitioned := make(map[int][]KeyValue)
	for _, filePath := range filePaths {
		lines, err := ReadLines(filePath)
		if err != nil {
			return err
		}
		for _, line := range lines {
			key := fmt.Sprintf("%s:%d", line.Filename, line.Number)
			for _, kv := range e.config.Job.Map(key, line.Text) {
				part := Partition(kv.Key, e.config.NumReducers)
				partitioned[part] = append(partitioned[part], kv)
			}
		}
	}

	// Each mapper writes one file per reducer; each reducer later reads its
	// file from every mapper directory.
	return WritePartitions(filepath.Join(shuffleDir, fmt.Sprintf("map-%04d", mapperID)), partitioned)
}

func (e *Engine) runReduceTask(reducerID int, shuffleDir string) error {
	matches, err := FindFiles(filepath.Join(shuffleDir, "**", partitionFile(reducerID)))
	if err != nil {
		return err
	}

	var records []KeyValue
	for _, file := range matches {
		fileRecords, err := ReadRecords(file)
		if err != nil {
			return err
		}
		records = append(records, fileRecords...)
	}
	slices.SortStableFunc(records, func(left, right KeyValue) int {
		return cmp.Compare(left.Key, right.Key)
	})

	var results []KeyValue
	for i := 0; i < len(records); {
		key := records[i].Key
		var values []string
		for ; i < len(records) && records[i].Key == key; i++ {
			values = append(values, records[i].Value)
		}
		results = append(results, e.config.Job.Reduce(key, values))
	}

	// Reducers with no input still produce an empty part file.
	return WritePartitions(e.config.Output, map[int][]KeyValue{reducerID: results})
}
