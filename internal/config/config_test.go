package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  producer_addr: 127.0.0.1:9084
  consumer_addr: 127.0.0.1:9085
  heartbeat_interval: 5000000000
queue:
  capacity: 128
journal:
  dir: /var/lib/plumber/qsync
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.ProducerAddr != "127.0.0.1:9084" {
		t.Errorf("unexpected producer addr %q", cfg.Server.ProducerAddr)
	}
	if cfg.Server.HeartbeatInterval != 5*time.Second {
		t.Errorf("unexpected heartbeat interval %v", cfg.Server.HeartbeatInterval)
	}
	if cfg.Queue.Capacity != 128 {
		t.Errorf("unexpected capacity %d", cfg.Queue.Capacity)
	}
}

func TestLoadConfigJSONFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"queue": {"capacity": 42}, "server": {"producer_addr": "127.0.0.1:7000"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Queue.Capacity != 42 {
		t.Errorf("unexpected capacity %d", cfg.Queue.Capacity)
	}
	if cfg.Server.ProducerAddr != "127.0.0.1:7000" {
		t.Errorf("unexpected producer addr %q", cfg.Server.ProducerAddr)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("PLUMBER_TEST_ADDR", "10.0.0.1:8084")

	out := SubstituteEnvVars("addr: ${PLUMBER_TEST_ADDR}")
	if out != "addr: 10.0.0.1:8084" {
		t.Errorf("unexpected substitution %q", out)
	}

	out = SubstituteEnvVars("dir: ${PLUMBER_TEST_MISSING:-/tmp/qtest}")
	if out != "dir: /tmp/qtest" {
		t.Errorf("unexpected default substitution %q", out)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize("")

	if cfg.Server.ProducerAddr != DefaultProducerAddr {
		t.Errorf("unexpected producer addr %q", cfg.Server.ProducerAddr)
	}
	if cfg.Queue.Capacity != DefaultCapacity {
		t.Errorf("unexpected capacity %d", cfg.Queue.Capacity)
	}
	if cfg.Journal.Dir != filepath.Join(DefaultBaseDir, "qsync") {
		t.Errorf("unexpected journal dir %q", cfg.Journal.Dir)
	}
	if cfg.Snapshot.Interval != time.Second {
		t.Errorf("unexpected snapshot interval %v", cfg.Snapshot.Interval)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Queue.Capacity = 7
	cfg.Server.HeartbeatInterval = time.Minute
	cfg.Normalize("/data")

	if cfg.Queue.Capacity != 7 {
		t.Errorf("capacity overwritten: %d", cfg.Queue.Capacity)
	}
	if cfg.Server.HeartbeatInterval != time.Minute {
		t.Errorf("heartbeat overwritten: %v", cfg.Server.HeartbeatInterval)
	}
	if cfg.Journal.Dir != "/data/qsync" {
		t.Errorf("unexpected journal dir %q", cfg.Journal.Dir)
	}
}
