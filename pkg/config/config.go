package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BootstrapServer is one entry of the initial cluster membership list a
// fresh node bootstraps with.
type BootstrapServer struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
	Role    string `yaml:"role"` // voter | standby | spare
}

// Engine holds the consensus engine's tunable timings and batching limits.
// Field names mirror the vocabulary of §4 of the design rather than any
// single hashicorp/raft-style field name, since this engine's timers
// (catch-up rounds, snapshot trailing, prepared-segment pool size) have
// no equivalent there.
type Engine struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	ElectionTimeoutMin  time.Duration `yaml:"election_timeout_min"`
	ElectionTimeoutMax  time.Duration `yaml:"election_timeout_max"`
	MaxAppendEntries    int           `yaml:"max_append_entries"`
	MaxAppendEntryBytes int           `yaml:"max_append_entry_bytes"`

	SnapshotThreshold int    `yaml:"snapshot_threshold"`
	SnapshotTrailing  uint64 `yaml:"snapshot_trailing"`

	CatchUpRoundsMax int           `yaml:"catchup_rounds_max"`
	TransferTimeout  time.Duration `yaml:"transfer_timeout"`

	PreparedSegmentPoolSize int `yaml:"prepared_segment_pool_size"`
}

// Config is the top-level document loaded from a node's YAML config file.
type Config struct {
	NodeID      uint64            `yaml:"node_id"`
	BindAddress string            `yaml:"bind_address"`
	DataDir     string            `yaml:"data_dir"`
	MetricsAddr string            `yaml:"metrics_address"`
	Bootstrap   []BootstrapServer `yaml:"bootstrap"`
	Engine      Engine            `yaml:"engine"`
}

// Default returns an Engine populated with the reference tunings: a
// heartbeat at a fixed fraction of the minimum election timeout, as §5
// requires ("heartbeat fires at a fixed fraction of the minimum election
// timeout").
func Default() Engine {
	const electionMin = 500 * time.Millisecond
	return Engine{
		HeartbeatInterval:       electionMin / 2,
		ElectionTimeoutMin:      electionMin,
		ElectionTimeoutMax:      1000 * time.Millisecond,
		MaxAppendEntries:        64,
		MaxAppendEntryBytes:     1 << 20,
		SnapshotThreshold:       8192,
		SnapshotTrailing:        256,
		CatchUpRoundsMax:        10,
		TransferTimeout:         electionMin * 2,
		PreparedSegmentPoolSize: 2,
	}
}

// Load reads and parses a YAML config file, filling any unset Engine
// fields from Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{Engine: Default()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Engine = mergeDefaults(cfg.Engine)
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("config: data_dir is required")
	}
	if cfg.NodeID == 0 {
		return nil, fmt.Errorf("config: node_id is required and must be nonzero")
	}
	return cfg, nil
}

func mergeDefaults(e Engine) Engine {
	d := Default()
	if e.HeartbeatInterval == 0 {
		e.HeartbeatInterval = d.HeartbeatInterval
	}
	if e.ElectionTimeoutMin == 0 {
		e.ElectionTimeoutMin = d.ElectionTimeoutMin
	}
	if e.ElectionTimeoutMax == 0 {
		e.ElectionTimeoutMax = d.ElectionTimeoutMax
	}
	if e.MaxAppendEntries == 0 {
		e.MaxAppendEntries = d.MaxAppendEntries
	}
	if e.MaxAppendEntryBytes == 0 {
		e.MaxAppendEntryBytes = d.MaxAppendEntryBytes
	}
	if e.SnapshotThreshold == 0 {
		e.SnapshotThreshold = d.SnapshotThreshold
	}
	if e.SnapshotTrailing == 0 {
		e.SnapshotTrailing = d.SnapshotTrailing
	}
	if e.CatchUpRoundsMax == 0 {
		e.CatchUpRoundsMax = d.CatchUpRoundsMax
	}
	if e.TransferTimeout == 0 {
		e.TransferTimeout = d.TransferTimeout
	}
	if e.PreparedSegmentPoolSize == 0 {
		e.PreparedSegmentPoolSize = d.PreparedSegmentPoolSize
	}
	return e
}
