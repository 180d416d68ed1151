package local

import (
	"fmt"
	"slices"
	"sync"
)

// Factory creates an unconfigured job.
type Factory func() Job

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

func Register(name string, factory Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	registry[name] = factory
	return nil
}

func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// NewJob creates, configures and validates the job registered under name.
func NewJob(name string, params map[string]string) (Job, error) {
	registryMu.RLock()
	factory, exists := registry[name]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("job not found: %s", name)
	}

	job := factory()
	if err := job.Configure(params); err != nil {
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	return job, nil
}

// Describe returns the description of the job registered under name.
func Describe(name string) (string, error) {
	registryMu.RLock()
	factory, exists := registry[name]
	registryMu.RUnlock()
	if !exists {
		return "", fmt.Errorf("job not found: %s", name)
	}
	return factory().Describe(), nil
}

// Jobs returns the registered job names in sorted order.
func Jobs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
