package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/airspace-simulator/internal/logging"
	"github.com/signalsfoundry/airspace-simulator/internal/observability"
)

// EnvPrefix prefixes every environment override, e.g. AIRSPACE_SIM_STEPS.
const EnvPrefix = "AIRSPACE_SIM"

// Config holds all configuration for a simulator run.
type Config struct {
	ScenarioPath string
	// Capacity is asked for at the prompt when zero.
	Capacity    int
	NumAircraft int
	Steps       int
	// StepsSet reports whether steps came from a flag, env or file. Otherwise
	// the scenario decides, or the operator is asked.
	StepsSet           bool
	Tick               time.Duration
	Accelerated        bool
	CollisionThreshold float64
	CollisionWorkers   int
	UniqueIDs          bool
	Pilot              PilotConfig
	Events             EventsConfig
	Log                LogConfig
	Metrics            MetricsConfig
	Tracing            TracingConfig
}

// PilotConfig selects the velocity-correction source.
type PilotConfig struct {
	Mode string // noop, scripted, interactive
}

// EventsConfig controls event reporting.
type EventsConfig struct {
	Format string // text or json
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// MetricsConfig holds the prometheus listener address; empty disables it.
type MetricsConfig struct {
	Addr string
}

// TracingConfig holds span export settings.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	SampleRatio float64
	ServiceName string
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"scenario":          "scenario_path",
	"capacity":          "capacity",
	"num-aircraft":      "num_aircraft",
	"steps":             "steps",
	"tick":              "tick",
	"accelerated":       "accelerated",
	"collision-workers": "collision_workers",
	"unique-ids":        "unique_ids",
	"pilot":             "pilot.mode",
	"events-format":     "events.format",
	"log-level":         "log.level",
	"metrics-addr":      "metrics.addr",
}

// RegisterFlags defines the simulator's command-line flags on fs. Flags
// only override configuration when they are set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("scenario", "", "path to a YAML scenario file")
	fs.Int("capacity", 0, "registry capacity when no scenario file is given; asked for when unset")
	fs.Int("num-aircraft", 0, "aircraft to enter interactively when no scenario file is given")
	fs.Int("steps", 0, "number of simulation steps; overrides the scenario, asked for when neither sets it")
	fs.Duration("tick", time.Second, "simulated time per step")
	fs.Bool("accelerated", true, "run steps back to back instead of in real time")
	fs.Int("collision-workers", 1, "goroutines used for the collision scan")
	fs.Bool("unique-ids", false, "reject duplicate aircraft ids")
	fs.String("pilot", "noop", "velocity correction source: noop, scripted, or interactive")
	fs.String("events-format", "text", "event output format: text or json")
	fs.String("log-level", "info", "log level: debug, info, warn, or error")
	fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
}

// Load builds a Config from defaults, an optional YAML file, environment
// variables and explicitly set flags, in increasing order of precedence.
// path overrides both the AIRSPACE_SIM_CONFIG_PATH variable and the default
// search locations. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetConfigName("airspace")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/airspace-simulator")
	v.AddConfigPath(".")

	if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		ScenarioPath:       v.GetString("scenario_path"),
		Capacity:           v.GetInt("capacity"),
		NumAircraft:        v.GetInt("num_aircraft"),
		Steps:              v.GetInt("steps"),
		StepsSet:           v.IsSet("steps"),
		Tick:               v.GetDuration("tick"),
		Accelerated:        v.GetBool("accelerated"),
		CollisionThreshold: v.GetFloat64("collision_threshold"),
		CollisionWorkers:   v.GetInt("collision_workers"),
		UniqueIDs:          v.GetBool("unique_ids"),
		Pilot: PilotConfig{
			Mode: strings.ToLower(v.GetString("pilot.mode")),
		},
		Events: EventsConfig{
			Format: strings.ToLower(v.GetString("events.format")),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}

	if v.IsSet("capacity") && cfg.Capacity == 0 {
		return nil, fmt.Errorf("invalid configuration: capacity must be greater than 0")
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scenario_path", "")
	v.SetDefault("num_aircraft", 0)
	v.SetDefault("tick", time.Second)
	v.SetDefault("accelerated", true)
	v.SetDefault("collision_threshold", 1.0)
	v.SetDefault("collision_workers", 1)
	v.SetDefault("unique_ids", false)
	v.SetDefault("pilot.mode", "noop")
	v.SetDefault("events.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", "airspace-simulator")
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	if cfg.NumAircraft < 0 {
		return fmt.Errorf("num_aircraft must not be negative")
	}
	if cfg.Steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}
	if cfg.Tick <= 0 {
		return fmt.Errorf("tick must be greater than 0")
	}
	if cfg.CollisionThreshold <= 0 {
		return fmt.Errorf("collision_threshold must be greater than 0")
	}
	if cfg.CollisionWorkers <= 0 {
		return fmt.Errorf("collision_workers must be greater than 0")
	}

	validPilotModes := map[string]bool{
		"noop":        true,
		"scripted":    true,
		"interactive": true,
	}
	if !validPilotModes[cfg.Pilot.Mode] {
		return fmt.Errorf("invalid pilot mode: %s (must be noop, scripted, or interactive)", cfg.Pilot.Mode)
	}
	if cfg.Pilot.Mode == "scripted" && cfg.ScenarioPath == "" {
		return fmt.Errorf("pilot mode scripted requires scenario_path")
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[cfg.Events.Format] {
		return fmt.Errorf("invalid events format: %s (must be text or json)", cfg.Events.Format)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}
	if !validFormats[strings.ToLower(cfg.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if cfg.Tracing.Endpoint == "" {
				return fmt.Errorf("tracing.endpoint is required for the otlp exporter")
			}
		default:
			return fmt.Errorf("invalid tracing exporter: %s (must be stdout or otlp)", cfg.Tracing.Exporter)
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}

	return nil
}

// Logging converts the log section into a logging.Config.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File:   c.Log.File,
	}
}

// Tracer converts the tracing section into an observability.TracingConfig.
// The run attributes known before the scenario loads are filled in here.
func (c *Config) Tracer() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
		Run: observability.RunAttributes{
			Scenario: c.ScenarioPath,
			Pilot:    c.Pilot.Mode,
			Capacity: c.Capacity,
			Steps:    c.Steps,
		},
	}
}
