package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.Wallet != "" {
		t.Errorf("Agent.Wallet = %q, want empty (must come from env or file)", cfg.Agent.Wallet)
	}
	if cfg.Agent.HostID != "host-unassigned" {
		t.Errorf("Agent.HostID = %q, want %q", cfg.Agent.HostID, "host-unassigned")
	}
	hostname, _ := os.Hostname()
	if hostname != "" && cfg.Agent.DeviceID != hostname {
		t.Errorf("Agent.DeviceID = %q, want local machine name %q", cfg.Agent.DeviceID, hostname)
	}
	if cfg.Coordinator.URL != "http://127.0.0.1:9090" {
		t.Errorf("Coordinator.URL = %q", cfg.Coordinator.URL)
	}
	if cfg.Backend.URL != "http://127.0.0.1:11434" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Mining.Difficulty != 4.0 {
		t.Errorf("Mining.Difficulty = %v, want 4.0", cfg.Mining.Difficulty)
	}
}

func TestLoad_MissingWalletIsFatal(t *testing.T) {
	t.Setenv("HASHPLANE_HOME", t.TempDir())
	t.Setenv("HASHPLANE_WALLET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without a wallet should fail")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HASHPLANE_HOME", t.TempDir())
	t.Setenv("HASHPLANE_WALLET", "0xW")
	t.Setenv("HASHPLANE_HOST_ID", "host-9")
	t.Setenv("HASHPLANE_DEVICE_ID", "dev-9")
	t.Setenv("HASHPLANE_COORDINATOR_URL", "http://10.0.0.5:9090")
	t.Setenv("HASHPLANE_DIFFICULTY", "2.5")
	t.Setenv("HASHPLANE_GPU_MODEL", "RTX 3060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Agent.Wallet != "0xW" || cfg.Agent.HostID != "host-9" || cfg.Agent.DeviceID != "dev-9" {
		t.Errorf("identity = %+v", cfg.Agent)
	}
	if cfg.Coordinator.URL != "http://10.0.0.5:9090" {
		t.Errorf("Coordinator.URL = %q", cfg.Coordinator.URL)
	}
	if cfg.Mining.Difficulty != 2.5 {
		t.Errorf("Mining.Difficulty = %v, want 2.5", cfg.Mining.Difficulty)
	}
	if cfg.Agent.GPUModel != "RTX 3060" {
		t.Errorf("Agent.GPUModel = %q", cfg.Agent.GPUModel)
	}
}

func TestLoad_TOMLFileThenEnvWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HASHPLANE_HOME", home)
	t.Setenv("HASHPLANE_WALLET", "0xENV")

	toml := `
[agent]
wallet = "0xFILE"
host_id = "host-file"

[mining]
difficulty = 1.5
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Agent.Wallet != "0xENV" {
		t.Errorf("Wallet = %q, want env to win over file", cfg.Agent.Wallet)
	}
	if cfg.Agent.HostID != "host-file" {
		t.Errorf("HostID = %q, want file value", cfg.Agent.HostID)
	}
	if cfg.Mining.Difficulty != 1.5 {
		t.Errorf("Difficulty = %v, want file value 1.5", cfg.Mining.Difficulty)
	}
}

func TestLoad_MalformedDifficultyIsFatal(t *testing.T) {
	t.Setenv("HASHPLANE_HOME", t.TempDir())
	t.Setenv("HASHPLANE_WALLET", "0xW")
	t.Setenv("HASHPLANE_DIFFICULTY", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with a malformed difficulty should fail")
	}
}

func TestValidate_NegativeDifficulty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.Wallet = "0xW"
	cfg.Mining.Difficulty = -0.5

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject negative difficulty")
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("3s", time.Second); got != 3*time.Second {
		t.Errorf("parseDuration(3s) = %v", got)
	}
	if got := parseDuration("", time.Second); got != time.Second {
		t.Errorf("parseDuration(empty) = %v, want fallback", got)
	}
	if got := parseDuration("bogus", 2*time.Second); got != 2*time.Second {
		t.Errorf("parseDuration(bogus) = %v, want fallback", got)
	}
}
