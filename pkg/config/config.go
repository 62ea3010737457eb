// Package config loads the typed YAML configuration document read by the
// executor and shard-manager binaries. Process-level overrides (log level,
// config file path) stay on cobra flags; everything with a larger surface
// lives in the YAML document, the same split the teacher draws between
// cobra.Command flags and its manager.Config struct.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageBackend names the oplog/promise persistence engine a node uses.
// Only BoltDB is implemented; the others are accepted in config documents
// so deployments can declare intent ahead of the engine landing, but
// selecting them fails validation until then.
type StorageBackend string

const (
	StorageBackendBoltDB   StorageBackend = "boltdb"
	StorageBackendSqlite   StorageBackend = "sqlite"
	StorageBackendPostgres StorageBackend = "postgres"
	StorageBackendS3       StorageBackend = "s3"
)

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`
	DataDir string         `yaml:"data_dir"`
	DSN     string         `yaml:"dsn,omitempty"`
}

// RetryPolicyConfig is the YAML-facing mirror of oplog.RetryPolicy, kept as
// a distinct type so the document can be decoded without importing pkg/oplog.
type RetryPolicyConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	MinDelay    time.Duration `yaml:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

// ExecutorConfig is the full configuration surface of a golem-executor pod.
type ExecutorConfig struct {
	Storage                  StorageConfig     `yaml:"storage"`
	MemoryCapBytes           uint64            `yaml:"memory_cap_bytes"`
	RetryPolicy              RetryPolicyConfig `yaml:"retry_policy"`
	TotalShards              uint32            `yaml:"total_shards"`
	ShardManagerEndpoint     string            `yaml:"shard_manager_endpoint"`
	GRPCPort                 int               `yaml:"grpc_port"`
	HTTPPort                 int               `yaml:"http_port"`
	TelemetryEndpoint        string            `yaml:"telemetry_endpoint,omitempty"`
	ComponentServiceEndpoint string            `yaml:"component_service_endpoint"`
	CompilationCacheEnabled  bool              `yaml:"compilation_cache_enabled"`
}

// ShardManagerConfig is the full configuration surface of a golem-shard-manager node.
type ShardManagerConfig struct {
	Storage     StorageConfig `yaml:"storage"`
	NodeID      string        `yaml:"node_id"`
	BindAddr    string        `yaml:"bind_addr"`
	GRPCPort    int           `yaml:"grpc_port"`
	HTTPPort    int           `yaml:"http_port"`
	TotalShards uint32        `yaml:"total_shards"`
}

// DefaultExecutorConfig returns the baseline an executor runs with when no
// document field overrides it.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Storage: StorageConfig{
			Backend: StorageBackendBoltDB,
			DataDir: "./golem-data/executor",
		},
		MemoryCapBytes: 512 * 1024 * 1024,
		TotalShards:    64,
		RetryPolicy: RetryPolicyConfig{
			MaxAttempts: 3,
			MinDelay:    time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		ShardManagerEndpoint:     "127.0.0.1:9091",
		GRPCPort:                 9090,
		HTTPPort:                 9100,
		ComponentServiceEndpoint: "127.0.0.1:9200",
		CompilationCacheEnabled:  true,
	}
}

// DefaultShardManagerConfig returns the baseline a shard manager runs with
// when no document field overrides it.
func DefaultShardManagerConfig() ShardManagerConfig {
	return ShardManagerConfig{
		Storage: StorageConfig{
			Backend: StorageBackendBoltDB,
			DataDir: "./golem-data/shard-manager",
		},
		NodeID:      "shard-manager-1",
		BindAddr:    "127.0.0.1:7946",
		GRPCPort:    9091,
		HTTPPort:    9101,
		TotalShards: 64,
	}
}

// LoadExecutorConfig reads and decodes an executor configuration document
// from path, filling unset fields from DefaultExecutorConfig.
func LoadExecutorConfig(path string) (ExecutorConfig, error) {
	cfg := DefaultExecutorConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ExecutorConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ExecutorConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoadShardManagerConfig reads and decodes a shard-manager configuration
// document from path, filling unset fields from DefaultShardManagerConfig.
func LoadShardManagerConfig(path string) (ShardManagerConfig, error) {
	cfg := DefaultShardManagerConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ShardManagerConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ShardManagerConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects documents that name a storage backend with no engine yet,
// or that leave a required field empty.
func (c ExecutorConfig) Validate() error {
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.GRPCPort <= 0 {
		return fmt.Errorf("config: grpc_port must be positive")
	}
	if c.ShardManagerEndpoint == "" {
		return fmt.Errorf("config: shard_manager_endpoint is required")
	}
	if c.TotalShards == 0 {
		return fmt.Errorf("config: total_shards must be positive")
	}
	return nil
}

// Validate rejects documents that name a storage backend with no engine yet,
// or that leave a required field empty.
func (c ShardManagerConfig) Validate() error {
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.GRPCPort <= 0 {
		return fmt.Errorf("config: grpc_port must be positive")
	}
	if c.TotalShards == 0 {
		return fmt.Errorf("config: total_shards must be positive")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case StorageBackendBoltDB:
		if s.DataDir == "" {
			return fmt.Errorf("config: storage.data_dir is required for backend %q", s.Backend)
		}
		return nil
	case StorageBackendSqlite, StorageBackendPostgres, StorageBackendS3:
		return fmt.Errorf("config: storage backend %q is not implemented yet", s.Backend)
	default:
		return fmt.Errorf("config: unknown storage backend %q", s.Backend)
	}
}
