package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Queue    QueueConfig    `json:"queue" yaml:"queue"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
}

type ServerConfig struct {
	ProducerAddr      string        `json:"producer_addr" yaml:"producer_addr"`
	ConsumerAddr      string        `json:"consumer_addr" yaml:"consumer_addr"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`
}

type QueueConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

type JournalConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	HandoffSize int    `json:"handoff_size" yaml:"handoff_size"`
	BackupPath  string `json:"backup_path" yaml:"backup_path"`
}

type SnapshotConfig struct {
	Path     string        `json:"path" yaml:"path"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Default settings match the historical deployment: loopback listeners
// on 8084/8085 and all state under /tmp/qtest.
const (
	DefaultProducerAddr      = "127.0.0.1:8084"
	DefaultConsumerAddr      = "127.0.0.1:8085"
	DefaultBaseDir           = "/tmp/qtest"
	DefaultCapacity          = 1_000_000
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultReadTimeout       = 3 * time.Second
)

// DefaultConfig returns the configuration used when no file or flags
// override it, with all filesystem paths rooted at baseDir.
func DefaultConfig(baseDir string) *Config {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return &Config{
		Server: ServerConfig{
			ProducerAddr:      DefaultProducerAddr,
			ConsumerAddr:      DefaultConsumerAddr,
			HeartbeatInterval: DefaultHeartbeatInterval,
			ReadTimeout:       DefaultReadTimeout,
		},
		Queue: QueueConfig{Capacity: DefaultCapacity},
		Journal: JournalConfig{
			Dir:        filepath.Join(baseDir, "qsync"),
			BackupPath: filepath.Join(baseDir, "test_backup"),
		},
		Snapshot: SnapshotConfig{
			Path:     filepath.Join(baseDir, "consumer.offset"),
			Interval: time.Second,
		},
	}
}

// Normalize fills any zero-valued field from the defaults so partial
// config files keep working.
func (c *Config) Normalize(baseDir string) {
	def := DefaultConfig(baseDir)
	if c.Server.ProducerAddr == "" {
		c.Server.ProducerAddr = def.Server.ProducerAddr
	}
	if c.Server.ConsumerAddr == "" {
		c.Server.ConsumerAddr = def.Server.ConsumerAddr
	}
	if c.Server.HeartbeatInterval <= 0 {
		c.Server.HeartbeatInterval = def.Server.HeartbeatInterval
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Queue.Capacity <= 0 {
		c.Queue.Capacity = def.Queue.Capacity
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = def.Journal.Dir
	}
	if c.Journal.BackupPath == "" {
		c.Journal.BackupPath = def.Journal.BackupPath
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = def.Snapshot.Path
	}
	if c.Snapshot.Interval <= 0 {
		c.Snapshot.Interval = def.Snapshot.Interval
	}
}

// LoadConfig reads path, expands environment references in its body
// and decodes it. YAML is tried first, then JSON, so either format
// works with the same tag set.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := []byte(SubstituteEnvVars(string(raw)))

	cfg := &Config{}
	if yamlErr := yaml.Unmarshal(expanded, cfg); yamlErr != nil {
		if jsonErr := json.Unmarshal(expanded, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config %s is neither valid YAML nor JSON: %w", path, yamlErr)
		}
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// envPattern matches ${NAME} and ${NAME:-fallback}.
var envPattern = regexp.MustCompile(`\$\{(\w+)(:-([^}]*))?\}`)

// SubstituteEnvVars expands environment references in a config file
// body. An unset variable resolves to its fallback when one is given
// and is otherwise left untouched, so the decode error points at the
// unresolved reference.
func SubstituteEnvVars(in string) string {
	return envPattern.ReplaceAllStringFunc(in, func(ref string) string {
		groups := envPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		if groups[2] != "" {
			return groups[3]
		}
		return ref
	})
}
