// Package config provides unified configuration loading for lifnet.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/engine"
	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/raster"
	"gopkg.in/yaml.v3"
)

// LifnetConfig contains all lifnet configuration settings.
type LifnetConfig struct {
	// Network contains population size and wiring.
	Network NetworkConfig `json:"network" yaml:"network"`

	// Neuron contains the membrane and synapse constants.
	Neuron NeuronConfig `json:"neuron" yaml:"neuron"`

	// Simulation contains timestep, duration and seeding.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output contains spike export settings.
	Output OutputConfig `json:"output" yaml:"output"`

	// Store contains run persistence settings.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// NetworkConfig describes the population.
type NetworkConfig struct {
	Neurons int `json:"neurons" yaml:"neurons"`

	// ConnectionProb is the probability of each directed edge. Range: 0.0 to 1.0
	ConnectionProb float64 `json:"connection_prob" yaml:"connection_prob"`
}

// NeuronConfig holds the neuron constants. Potentials in mV, times in ms.
type NeuronConfig struct {
	VRest           float64 `json:"v_rest" yaml:"v_rest"`
	VThreshold      float64 `json:"v_threshold" yaml:"v_threshold"`
	ERev            float64 `json:"e_rev" yaml:"e_rev"`
	RM              float64 `json:"r_m" yaml:"r_m"`
	TauM            float64 `json:"tau_m" yaml:"tau_m"`
	TauS            float64 `json:"tau_s" yaml:"tau_s"`
	TauRef          float64 `json:"tau_ref" yaml:"tau_ref"`
	GStep           float64 `json:"g_s" yaml:"g_s"`
	IStep           float64 `json:"i_s" yaml:"i_s"`
	SpontaneousProb float64 `json:"p_s" yaml:"p_s"`

	// Synapse is "conductance" (default) or "current".
	Synapse string `json:"synapse" yaml:"synapse"`
}

// SimulationConfig controls the time loop.
type SimulationConfig struct {
	Dt       float64 `json:"dt" yaml:"dt"`
	Duration float64 `json:"duration" yaml:"duration"`

	// ProgressInterval is the number of steps between progress reports.
	ProgressInterval int `json:"progress_interval" yaml:"progress_interval"`

	// Seed fixes the random stream. When unset each run draws a fresh seed
	// and records it so the run can be replayed.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// OutputConfig configures spike export.
type OutputConfig struct {
	// Path is the export destination, relative to the working directory.
	Path string `json:"path" yaml:"path"`

	// Format is csv, jsonl, arrow or parquet. Empty infers it from Path.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// StoreConfig configures the run database under .lifnet/.
type StoreConfig struct {
	// Enabled records every run in .lifnet/lifnet.db.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LoggingConfig configures lifnet's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to .lifnet/events.jsonl.
	// "trace" additionally logs every progress report.
	Level string `json:"level" yaml:"level"`
}

// Default returns a LifnetConfig for the reference network.
func Default() *LifnetConfig {
	return &LifnetConfig{
		Network: NetworkConfig{
			Neurons:        constants.DefaultNeurons,
			ConnectionProb: constants.DefaultConnectionProb,
		},
		Neuron: NeuronConfig{
			VRest:           constants.DefaultVRest,
			VThreshold:      constants.DefaultVThreshold,
			ERev:            constants.DefaultERev,
			RM:              constants.DefaultRM,
			TauM:            constants.DefaultTauM,
			TauS:            constants.DefaultTauS,
			TauRef:          constants.DefaultTauRef,
			GStep:           constants.DefaultGStep,
			IStep:           constants.DefaultIStep,
			SpontaneousProb: constants.DefaultSpontaneousProb,
			Synapse:         neuron.ConductanceBased.String(),
		},
		Simulation: SimulationConfig{
			Dt:               constants.DefaultDt,
			Duration:         constants.DefaultDuration,
			ProgressInterval: constants.DefaultProgressInterval,
		},
		Output: OutputConfig{
			Path: constants.DefaultOutputPath,
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.lifnet/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.lifnet/config.yaml -> environment variables
func Load() (*LifnetConfig, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads path instead of the default file, then applies
// environment overrides. An empty path behaves like Load.
func LoadPath(path string) (*LifnetConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*LifnetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *LifnetConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *LifnetConfig) Validate() error {
	if c.Simulation.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive, got %d", c.Simulation.ProgressInterval)
	}

	if _, err := neuron.ParseMode(c.Neuron.Synapse); err != nil {
		return err
	}

	if c.Output.Format != "" {
		if _, err := raster.ParseFormat(c.Output.Format); err != nil {
			return err
		}
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	cfg, err := c.EngineConfig()
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// NeuronParams converts the neuron and timestep settings to neuron.Params
// with derived constants filled in.
func (c *LifnetConfig) NeuronParams() (neuron.Params, error) {
	mode, err := neuron.ParseMode(c.Neuron.Synapse)
	if err != nil {
		return neuron.Params{}, err
	}
	p := neuron.Params{
		VRest:           c.Neuron.VRest,
		VThreshold:      c.Neuron.VThreshold,
		ERev:            c.Neuron.ERev,
		RM:              c.Neuron.RM,
		TauM:            c.Neuron.TauM,
		TauS:            c.Neuron.TauS,
		TauRef:          c.Neuron.TauRef,
		GStep:           c.Neuron.GStep,
		IStep:           c.Neuron.IStep,
		SpontaneousProb: c.Neuron.SpontaneousProb,
		Dt:              c.Simulation.Dt,
		Synapse:         mode,
	}
	p.Update()
	return p, nil
}

// EngineConfig converts the configuration to an engine.Config.
func (c *LifnetConfig) EngineConfig() (engine.Config, error) {
	p, err := c.NeuronParams()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Neurons:          c.Network.Neurons,
		ConnectionProb:   c.Network.ConnectionProb,
		Duration:         c.Simulation.Duration,
		ProgressInterval: c.Simulation.ProgressInterval,
		Params:           p,
	}, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func applyEnvOverrides(config *LifnetConfig) {
	if v := os.Getenv("LIFNET_NEURONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Network.Neurons = n
		}
	}

	if v := os.Getenv("LIFNET_CONNECTION_PROB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Network.ConnectionProb = f
		}
	}

	if v := os.Getenv("LIFNET_SPONTANEOUS_PROB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Neuron.SpontaneousProb = f
		}
	}

	if v := os.Getenv("LIFNET_SYNAPSE"); v != "" {
		config.Neuron.Synapse = v
	}

	if v := os.Getenv("LIFNET_DT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.Dt = f
		}
	}

	if v := os.Getenv("LIFNET_DURATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.Duration = f
		}
	}

	if v := os.Getenv("LIFNET_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = &n
		}
	}

	if v := os.Getenv("LIFNET_OUTPUT"); v != "" {
		config.Output.Path = v
	}

	if v := os.Getenv("LIFNET_FORMAT"); v != "" {
		config.Output.Format = v
	}

	if v := os.Getenv("LIFNET_STORE"); v != "" {
		config.Store.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("LIFNET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
