package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hue             HueConfig         `yaml:"hue"`
	Database        DatabaseConfig    `yaml:"database"`
	Specs           SpecsConfig       `yaml:"specs"`
	Log             LogConfig         `yaml:"log"`
	Webhook         WebhookConfig     `yaml:"webhook"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Actuators       []ActuatorConfig  `yaml:"actuators"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge       string   `yaml:"bridge"`
	Token        string   `yaml:"token"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for Hue API requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Per-light bridge call budget (default: 10)
}

// DatabaseConfig contains snapshot database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SpecsConfig locates the notification specs file
type SpecsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // Hot-reload specs on file changes
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// WebhookConfig contains webhook server settings
type WebhookConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// ActuatorConfig describes one controlled light and its engine behavior
type ActuatorConfig struct {
	ID    string `yaml:"id"`
	Light int    `yaml:"light"` // Hue light id on the bridge

	RestorePower  bool   `yaml:"restore_power"`   // Dispatch restored frame on startup
	ColorModePref string `yaml:"color_mode_pref"` // "", "rgb", or "color_temp"
	MinKelvin     int    `yaml:"min_kelvin"`
	MaxKelvin     int    `yaml:"max_kelvin"`

	DynamicPriority *bool `yaml:"dynamic_priority"` // default: true
	ManualPriority  int   `yaml:"manual_priority"`
	ManualRGB       []int `yaml:"manual_rgb"` // Default manual-on color (warm white if unset)

	AutoCycle    bool     `yaml:"auto_cycle"`
	CycleDelay   Duration `yaml:"cycle_delay"`
	PeekDuration Duration `yaml:"peek_duration"`

	TickInterval    Duration `yaml:"tick_interval"`
	DispatchTimeout Duration `yaml:"dispatch_timeout"`

	Subscriptions SubscriptionConfig `yaml:"subscriptions"`
}

// SubscriptionConfig lists the notifications an actuator reacts to
type SubscriptionConfig struct {
	Specs []string `yaml:"specs"`
	Pools []string `yaml:"pools"`
}

// DynamicManual returns the dynamic_priority flag with its default
func (a *ActuatorConfig) DynamicManual() bool {
	if a.DynamicPriority == nil {
		return true
	}
	return *a.DynamicPriority
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./notifyd.sqlite"
	}
	if cfg.Specs.Path == "" {
		cfg.Specs.Path = "./specs.yaml"
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(30 * time.Second)
	}
	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0
	}

	// Webhook defaults
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 8080
	}
	if cfg.Webhook.Host == "" {
		cfg.Webhook.Host = "0.0.0.0"
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	if err := validateActuators(cfg.Actuators); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateActuators(actuators []ActuatorConfig) error {
	seen := make(map[string]struct{}, len(actuators))
	for i, a := range actuators {
		if a.ID == "" {
			return fmt.Errorf("actuator #%d: missing id", i+1)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("actuator %q: duplicate id", a.ID)
		}
		seen[a.ID] = struct{}{}

		if a.Light <= 0 {
			return fmt.Errorf("actuator %q: missing light id", a.ID)
		}
		switch a.ColorModePref {
		case "", "rgb", "color_temp":
		default:
			return fmt.Errorf("actuator %q: invalid color_mode_pref %q", a.ID, a.ColorModePref)
		}
		if a.ManualRGB != nil && len(a.ManualRGB) != 3 {
			return fmt.Errorf("actuator %q: manual_rgb needs 3 channels", a.ID)
		}
		for _, ch := range a.ManualRGB {
			if ch < 0 || ch > 255 {
				return fmt.Errorf("actuator %q: manual_rgb channel %d out of range", a.ID, ch)
			}
		}
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
