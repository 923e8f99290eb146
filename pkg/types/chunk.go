package types

import "fmt"

// DataChunk is a fixed-size byte segment of an ingested object, the unit of
// scheduling through the rest of the pipeline.
type DataChunk struct {
	ChunkID        string
	SourceObject   string
	ChunkIndex     int
	SizeBytes      int64
	Checksum       string
	SourceProvider Provider
	Payload        []byte
}

// ChunkID builds the canonical chunk identifier: source_object || "_chunk_" || index.
func ChunkID(sourceObject string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceObject, index)
}
