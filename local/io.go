package local

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	DefaultBufferSize = 1024 * 1024 // 1MB

	recordSeparator = "\t"
)

type Line struct {
	Filename string
	Number   int
	Text     string
}

// FindFiles expands a glob pattern (with ** support) to regular files,
// sorted by path.
func FindFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	slices.Sort(matches)
	return matches, nil
}

func ReadLines(filePath string, bufferSize ...int) ([]Line, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	size := DefaultBufferSize
	if len(bufferSize) > 0 {
		size = bufferSize[0]
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, min(size, 64*1024)), size)

	var lines []Line
	for i := 1; scanner.Scan(); i++ {
		lines = append(lines, Line{
			Filename: filePath,
			Number:   i,
			Text:     scanner.Text(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	return lines, nil
}

// ReadRecords reads tab separated key/value records.
func ReadRecords(filePath string) ([]KeyValue, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), DefaultBufferSize)

	var records []KeyValue
	for n := 1; scanner.Scan(); n++ {
		key, value, ok := strings.Cut(scanner.Text(), recordSeparator)
		if !ok {
			return nil, fmt.Errorf("%s:%d: malformed record", filePath, n)
		}
		records = append(records, KeyValue{Key: key, Value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	return records, nil
}

func WriteRecords(filePath string, records iter.Seq[KeyValue]) (err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(file)
	for record := range records {
		if _, err := w.WriteString(record.Key + recordSeparator + record.Value + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WritePartitions writes each partition to part-NNNN.txt under outputDir.
func WritePartitions(outputDir string, partitions map[int][]KeyValue) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	for part, records := range partitions {
		path := filepath.Join(outputDir, partitionFile(part))
		if err := WriteRecords(path, slices.Values(records)); err != nil {
			return err
		}
	}
	return nil
}

func partitionFile(part int) string {
	return fmt.Sprintf("part-%04d.txt", part)
}
