package local

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/workpool/pkg/pool"
)

// lineCountJob counts words per file.
type lineCountJob struct {
	panicOn string
}

func (j *lineCountJob) Map(key, value string) []KeyValue {
	if j.panicOn != "" && strings.Contains(value, j.panicOn) {
		panic("poisoned line")
	}
	fileName, _, _ := strings.Cut(filepath.Base(key), ":")
	return []KeyValue{{Key: fileName, Value: strconv.Itoa(len(strings.Fields(value)))}}
}

func (j *lineCountJob) Reduce(key string, values []string) KeyValue {
	sum := 0
	for _, v := range values {
		n, _ := strconv.Atoi(v)
		sum += n
	}
	return KeyValue{Key: key, Value: strconv.Itoa(sum)}
}

func (j *lineCountJob) Configure(map[string]string) error { return nil }
func (j *lineCountJob) Validate() error                   { return nil }
func (j *lineCountJob) Name() string                      { return "linecount" }
func (j *lineCountJob) Describe() string                  { return "words per file" }

func writeInputs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readOutput(t *testing.T, outputDir string) map[string]string {
	t.Helper()
	files, err := FindFiles(filepath.Join(outputDir, "part-*.txt"))
	require.NoError(t, err)

	out := make(map[string]string)
	for _, file := range files {
		records, err := ReadRecords(file)
		require.NoError(t, err)
		for _, r := range records {
			out[r.Key] = r.Value
		}
	}
	return out
}

func TestEngine_Run_WordsPerFile(t *testing.T) {
	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "input")
	outputDir := filepath.Join(tmpDir, "output")
	writeInputs(t, inputDir, map[string]string{
		"a.txt":     "hello world\nthis is a test\n",
		"sub/b.txt": "another test\nwith words\n",
	})

	shuffleDir := filepath.Join(tmpDir, "shuffle")
	e, err := NewEngine(Config{
		Job:         &lineCountJob{},
		Input:       filepath.Join(inputDir, "**", "*.txt"),
		Output:      outputDir,
		Shuffle:     shuffleDir,
		NumMappers:  2,
		NumReducers: 1,
	})
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	require.Equal(t, map[string]string{"a.txt": "6", "b.txt": "4"}, readOutput(t, outputDir))

	mapOutputs, err := FindFiles(filepath.Join(shuffleDir, "map-*", "part-0000.txt"))
	require.NoError(t, err)
	require.Len(t, mapOutputs, 2)
}

func TestEngine_Run_WordCountAcrossReducers(t *testing.T) {
	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "input")
	outputDir := filepath.Join(tmpDir, "output")

	files := make(map[string]string)
	for i := range 10 {
		files["doc"+strconv.Itoa(i)+".txt"] = "The quick fox.\nthe lazy dog, the END\n"
	}
	writeInputs(t, inputDir, files)

	job, err := NewJob("wordcount", nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := pool.NewMetrics(reg, "test")

	e, err := NewEngine(Config{
		Job:         job,
		Input:       filepath.Join(inputDir, "*.txt"),
		Output:      outputDir,
		NumMappers:  3,
		NumReducers: 4,
		Metrics:     metrics,
	})
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	require.Equal(t, map[string]string{
		"the":   "30",
		"quick": "10",
		"fox":   "10",
		"lazy":  "10",
		"dog":   "10",
		"end":   "10",
	}, readOutput(t, outputDir))

	// Every reducer writes a part file, even an empty one.
	parts, err := FindFiles(filepath.Join(outputDir, "part-*.txt"))
	require.NoError(t, err)
	require.Len(t, parts, 4)

	require.Equal(t, float64(3), testutil.ToFloat64(metrics.TasksCompleted.WithLabelValues("map")))
	require.Equal(t, float64(4), testutil.ToFloat64(metrics.TasksCompleted.WithLabelValues("reduce")))
}

func TestEngine_Run_IsolatedPanicBecomesError(t *testing.T) {
	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "input")
	writeInputs(t, inputDir, map[string]string{
		"good.txt": "fine line\n",
		"bad.txt":  "poison here\n",
	})

	e, err := NewEngine(Config{
		Job:           &lineCountJob{panicOn: "poison"},
		Input:         filepath.Join(inputDir, "*.txt"),
		Output:        filepath.Join(tmpDir, "output"),
		NumMappers:    2,
		NumReducers:   1,
		IsolatePanics: true,
	})
	require.NoError(t, err)

	err = e.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "map task panicked: poisoned line")
}

func TestEngine_Run_CanceledContext(t *testing.T) {
	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "input")
	writeInputs(t, inputDir, map[string]string{"a.txt": "x\n"})

	e, err := NewEngine(Config{
		Job:         &lineCountJob{},
		Input:       filepath.Join(inputDir, "*.txt"),
		Output:      filepath.Join(tmpDir, "output"),
		NumMappers:  1,
		NumReducers: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Run(ctx), context.Canceled)
}

func TestEngine_Run_NoInputFiles(t *testing.T) {
	tmpDir := t.TempDir()
	e, err := NewEngine(Config{
		Job:         &lineCountJob{},
		Input:       filepath.Join(tmpDir, "*.txt"),
		Output:      filepath.Join(tmpDir, "output"),
		NumMappers:  1,
		NumReducers: 1,
	})
	require.NoError(t, err)
	require.ErrorContains(t, e.Run(context.Background()), "no files matched")
}

func TestNewEngine_Validation(t *testing.T) {
	valid := Config{Job: &lineCountJob{}, Input: "*.txt", Output: "out", NumMappers: 1, NumReducers: 1}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing job", mutate: func(c *Config) { c.Job = nil }},
		{name: "missing input", mutate: func(c *Config) { c.Input = "" }},
		{name: "missing output", mutate: func(c *Config) { c.Output = "" }},
		{name: "zero mappers", mutate: func(c *Config) { c.NumMappers = 0 }},
		{name: "zero reducers", mutate: func(c *Config) { c.NumReducers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewEngine(cfg)
			require.Error(t, err)
		})
	}

	_, err := NewEngine(valid)
	require.NoError(t, err)
}
