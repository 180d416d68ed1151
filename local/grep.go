package local

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

func init() {
	MustRegister("grep", func() Job {
		return &GrepJob{}
	})
}

// GrepJob emits every input line matching a regular expression, keyed by
// "file:line".
//
// Parameters: pattern (required), ignore-case, invert.
type GrepJob struct {
	pattern *regexp.Regexp
	invert  bool
}

func (g *GrepJob) Name() string {
	return "grep"
}

func (g *GrepJob) Describe() string {
	return "prints lines matching a regular expression"
}

func (g *GrepJob) Configure(config map[string]string) error {
	expr, ok := config["pattern"]
	if !ok || expr == "" {
		return errors.New("pattern parameter is required")
	}

	ignoreCase, err := boolParam(config, "ignore-case")
	if err != nil {
		return err
	}
	if ignoreCase {
		expr = "(?i)" + expr
	}

	if g.invert, err = boolParam(config, "invert"); err != nil {
		return err
	}

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}
	g.pattern = pattern
	return nil
}

func (g *GrepJob) Validate() error {
	if g.pattern == nil {
		return errors.New("grep job is not configured")
	}
	return nil
}

func (g *GrepJob) Map(key, line string) []KeyValue {
	if g.pattern.MatchString(line) == g.invert {
		return nil
	}
	return []KeyValue{{Key: key, Value: strings.TrimRight(line, " \t\r")}}
}

// Reduce keeps the first line; keys are unique per input line.
func (g *GrepJob) Reduce(key string, values []string) KeyValue {
	return KeyValue{Key: key, Value: values[0]}
}

func boolParam(config map[string]string, name string) (bool, error) {
	raw, ok := config[name]
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	return v, nil
}
