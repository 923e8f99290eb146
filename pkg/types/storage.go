package types

import "time"

// StorageStatus is the lifecycle status of a StoredChunk.
type StorageStatus string

const (
	StorageStored StorageStatus = "STORED"
	StorageFailed StorageStatus = "FAILED"
)

// StoredChunk records one durably-written replica and the metadata needed to
// read it back and verify it.
//
// Invariant: bytes at StoragePath hash to Checksum immediately after write
// (enforced when VerifyOnWrite is configured).
type StoredChunk struct {
	ChunkID      string
	StoragePath  string
	Checksum     string
	SizeBytes    int64
	StoredAt     time.Time
	NodeID       string
	Provider     Provider
	ReplicaPaths []string
	Status       StorageStatus
	Metadata     map[string]string
}

// Checkpoint is an immutable snapshot of the stored-chunks index, created
// every CheckpointInterval successful stores.
type Checkpoint struct {
	CheckpointID string
	Timestamp    time.Time
	Count        int
	TotalBytes   int64
	ChunkIDs     []string
}
