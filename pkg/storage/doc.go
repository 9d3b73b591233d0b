/*
Package storage defines the persistent-storage contract the consensus
engine (pkg/raft) is built against.

The engine is storage-backend agnostic: it only ever calls through the
Backend interface below, and every durable write completes
asynchronously via a callback the backend posts back onto the engine's
own dispatcher goroutine — the backend itself may use as many worker
goroutines as it likes internally, but it must never call back
synchronously from within the method that queued the work.

pkg/storage/filestore provides the reference, file-backed implementation
whose on-disk layout (two alternating metadata files, closed/open log
segments, snapshot metadata+data files) is part of this module's
compatibility contract.
*/
package storage
