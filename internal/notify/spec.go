// Package notify defines notification specs, their runtime instances,
// and per-actuator subscription resolution.
package notify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/notifyd/internal/pattern"
)

// DefaultPriority is used when a spec omits its priority.
const DefaultPriority = 1000

// ConfigError reports an unloadable notification spec. Specs failing
// validation are never activatable; the error is surfaced at load time.
type ConfigError struct {
	SpecID string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("notification spec %q: %v", e.SpecID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Spec is the immutable definition of a notification. Instances hold a
// reference; nothing mutates a Spec after load.
type Spec struct {
	ID          string
	Priority    int
	Pattern     pattern.Pattern
	Timeout     *time.Duration // nil = never auto-clears; 0 = clear when pattern completes
	TempDisplay bool
	Resume      bool // reactivation resumes the parked cursor instead of restarting
	Pools       []string
}

// specFile is the YAML shape of the notification specs file.
type specFile struct {
	Specs []specEntry `yaml:"specs"`
}

type specEntry struct {
	ID          string   `yaml:"id"`
	Priority    *int     `yaml:"priority"`
	Pattern     []string `yaml:"pattern"`
	Timeout     *string  `yaml:"timeout"`
	TempDisplay bool     `yaml:"temp_display"`
	Resume      bool     `yaml:"resume"`
	Pools       []string `yaml:"pools"`
}

// LoadSpecs reads and validates the notification specs file. Patterns
// are compiled here; a malformed pattern fails the load, not the runtime.
func LoadSpecs(path string) (map[string]*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read specs file: %w", err)
	}
	return ParseSpecs(data)
}

// ParseSpecs parses specs from raw YAML. Split from LoadSpecs so the
// fsnotify reload path can validate new content before swapping it in.
func ParseSpecs(data []byte) (map[string]*Spec, error) {
	var file specFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse specs file: %w", err)
	}

	specs := make(map[string]*Spec, len(file.Specs))
	for _, entry := range file.Specs {
		spec, err := buildSpec(entry)
		if err != nil {
			return nil, err
		}
		if _, exists := specs[spec.ID]; exists {
			return nil, &ConfigError{SpecID: spec.ID, Err: fmt.Errorf("duplicate id")}
		}
		specs[spec.ID] = spec
	}
	return specs, nil
}

func buildSpec(entry specEntry) (*Spec, error) {
	if entry.ID == "" {
		return nil, &ConfigError{SpecID: "?", Err: fmt.Errorf("missing id")}
	}
	if len(entry.Pattern) == 0 {
		return nil, &ConfigError{SpecID: entry.ID, Err: fmt.Errorf("pattern is empty")}
	}

	compiled, err := pattern.Parse(entry.Pattern)
	if err != nil {
		return nil, &ConfigError{SpecID: entry.ID, Err: err}
	}

	priority := DefaultPriority
	if entry.Priority != nil {
		priority = *entry.Priority
	}

	var timeout *time.Duration
	if entry.Timeout != nil {
		d, err := time.ParseDuration(*entry.Timeout)
		if err != nil {
			return nil, &ConfigError{SpecID: entry.ID, Err: fmt.Errorf("invalid timeout: %w", err)}
		}
		if d < 0 {
			return nil, &ConfigError{SpecID: entry.ID, Err: fmt.Errorf("timeout must not be negative")}
		}
		timeout = &d
	}

	return &Spec{
		ID:          entry.ID,
		Priority:    priority,
		Pattern:     compiled,
		Timeout:     timeout,
		TempDisplay: entry.TempDisplay,
		Resume:      entry.Resume,
		Pools:       entry.Pools,
	}, nil
}
