// Package agent implements the HashPlane worker agent: configuration, the
// mining and inference worker loops, and the supervisor that runs both.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hashplane-network/hashplane/internal/inference"
)

// Config holds all agent configuration. Immutable after Load; every component
// receives the values it needs explicitly — nothing reads the environment
// after startup.
type Config struct {
	Agent       AgentConfig       `toml:"agent"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Backend     BackendConfig     `toml:"backend"`
	Mining      MiningConfig      `toml:"mining"`
	Jobs        JobsConfig        `toml:"jobs"`
	API         APIConfig         `toml:"api"`
}

// AgentConfig identifies this agent to the coordinator.
type AgentConfig struct {
	Wallet   string `toml:"wallet"`
	HostID   string `toml:"host_id"`
	DeviceID string `toml:"device_id"`
	GPUModel string `toml:"gpu_model"` // manual override for detection
}

// CoordinatorConfig locates the coordinator.
type CoordinatorConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// BackendConfig locates the local inference backend and its model routing.
type BackendConfig struct {
	URL          string            `toml:"url"`
	Timeout      string            `toml:"timeout"`
	DefaultModel string            `toml:"default_model"`
	Routes       []inference.Route `toml:"routes"`
}

// MiningConfig controls the share generator.
type MiningConfig struct {
	Difficulty         float64 `toml:"difficulty"`
	WorkInterval       string  `toml:"work_interval"`
	IdleInterval       string  `toml:"idle_interval"`
	RecheckProbability float64 `toml:"recheck_probability"`
}

// JobsConfig controls the inference job executor.
type JobsConfig struct {
	PollInterval string `toml:"poll_interval"`
	IdleInterval string `toml:"idle_interval"`
}

// APIConfig controls the local status server.
type APIConfig struct {
	Addr string `toml:"addr"`
}

// DefaultConfig returns the built-in defaults. The wallet is deliberately
// empty: it must come from the file or the environment.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "device-unknown"
	}
	return Config{
		Agent: AgentConfig{
			HostID:   "host-unassigned",
			DeviceID: hostname,
		},
		Coordinator: CoordinatorConfig{
			URL:     "http://127.0.0.1:9090",
			Timeout: "15s",
		},
		Backend: BackendConfig{
			URL:          "http://127.0.0.1:11434",
			Timeout:      "120s",
			DefaultModel: "llama3.2",
			Routes: []inference.Route{
				{Contains: "deepseek", Model: "deepseek-r1:7b"},
				{Contains: "llama", Model: "llama3.2"},
			},
		},
		Mining: MiningConfig{
			Difficulty:         4.0,
			WorkInterval:       "2s",
			IdleInterval:       "15s",
			RecheckProbability: 0.25,
		},
		Jobs: JobsConfig{
			PollInterval: "5s",
			IdleInterval: "10s",
		},
		API: APIConfig{
			Addr: "127.0.0.1:7066",
		},
	}
}

// Load builds the effective configuration: defaults, then
// ~/.hashplane/config.toml, then a .env file (best effort), then the process
// environment. Returns an error for a missing wallet or an invalid
// difficulty — the only startup-fatal conditions.
func Load() (Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(hashplaneHome(), "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Dev convenience: a .env in the working directory, if present.
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays HASHPLANE_* environment variables onto cfg. A malformed
// difficulty is startup-fatal, same as a negative one.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("HASHPLANE_WALLET", &cfg.Agent.Wallet)
	setString("HASHPLANE_HOST_ID", &cfg.Agent.HostID)
	setString("HASHPLANE_DEVICE_ID", &cfg.Agent.DeviceID)
	setString("HASHPLANE_GPU_MODEL", &cfg.Agent.GPUModel)
	setString("HASHPLANE_COORDINATOR_URL", &cfg.Coordinator.URL)
	setString("HASHPLANE_BACKEND_URL", &cfg.Backend.URL)
	setString("HASHPLANE_STATUS_ADDR", &cfg.API.Addr)

	if v := os.Getenv("HASHPLANE_DIFFICULTY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid HASHPLANE_DIFFICULTY %q: %w", v, err)
		}
		cfg.Mining.Difficulty = f
	}
	return nil
}

// Validate checks the startup-fatal conditions.
func (c Config) Validate() error {
	if c.Agent.Wallet == "" {
		return fmt.Errorf("wallet is required: set HASHPLANE_WALLET or agent.wallet in config.toml")
	}
	if c.Mining.Difficulty < 0 {
		return fmt.Errorf("mining difficulty must be >= 0, got %v", c.Mining.Difficulty)
	}
	return nil
}

// hashplaneHome returns the agent data directory.
func hashplaneHome() string {
	if env := os.Getenv("HASHPLANE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hashplane")
}

// Home is exported for use by other packages.
func Home() string {
	return hashplaneHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
