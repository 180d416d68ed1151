package local

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

func init() {
	MustRegister("wordcount", func() Job {
		return &WordCountJob{}
	})
}

var nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// WordCountJob counts occurrences of each word.
//
// Parameters: case-sensitive, min-length.
type WordCountJob struct {
	caseSensitive bool
	minLength     int
}

func (wc *WordCountJob) Name() string {
	return "wordcount"
}

func (wc *WordCountJob) Describe() string {
	return "counts occurrences of each word in the input text"
}

func (wc *WordCountJob) Configure(config map[string]string) error {
	var err error
	if wc.caseSensitive, err = boolParam(config, "case-sensitive"); err != nil {
		return err
	}

	wc.minLength = 1
	if raw, ok := config["min-length"]; ok && raw != "" {
		if wc.minLength, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("invalid min-length value %q: %w", raw, err)
		}
	}
	return nil
}

func (wc *WordCountJob) Validate() error {
	if wc.minLength < 1 {
		return fmt.Errorf("min-length must be >= 1, got %d", wc.minLength)
	}
	return nil
}

func (wc *WordCountJob) Map(_, line string) []KeyValue {
	var kvs []KeyValue
	for field := range strings.FieldsSeq(line) {
		word := nonWordChars.ReplaceAllString(field, "")
		if len([]rune(word)) < wc.minLength {
			continue
		}
		if !wc.caseSensitive {
			word = strings.ToLower(word)
		}
		kvs = append(kvs, KeyValue{Key: word, Value: "1"})
	}
	return kvs
}

func (wc *WordCountJob) Reduce(word string, counts []string) KeyValue {
	total := 0
	for _, count := range counts {
		n, _ := strconv.Atoi(count)
		total += n
	}
	return KeyValue{Key: word, Value: strconv.Itoa(total)}
}
