/*
Package config loads the YAML configuration a raftd node starts from: the
initial cluster bootstrap list plus the engine's tunable timings
(election/heartbeat intervals, append-entries batching, snapshot
thresholds, catch-up bounds). It follows the same
yaml.v3-unmarshal-into-struct pattern used throughout this codebase for
reading manifests off disk.
*/
package config
