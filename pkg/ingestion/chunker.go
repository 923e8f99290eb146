package ingestion

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/cloudmesh/pipeline/pkg/types"
)

// ChunkObject splits data into fixed-size chunks of chunkSizeBytes,
// mirroring the original's chunk_large_file: the final chunk may be
// shorter, and an empty object yields zero chunks.
func ChunkObject(sourceObject string, data []byte, chunkSizeBytes int64, provider types.Provider) []types.DataChunk {
	if chunkSizeBytes <= 0 {
		chunkSizeBytes = 100 * 1024 * 1024
	}

	var chunks []types.DataChunk
	for i, offset := 0, int64(0); offset < int64(len(data)); i, offset = i+1, offset+chunkSizeBytes {
		end := offset + chunkSizeBytes
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		payload := data[offset:end]
		sum := md5.Sum(payload)

		chunks = append(chunks, types.DataChunk{
			ChunkID:        types.ChunkID(sourceObject, i),
			SourceObject:   sourceObject,
			ChunkIndex:     i,
			SizeBytes:      int64(len(payload)),
			Checksum:       hex.EncodeToString(sum[:]),
			SourceProvider: provider,
			Payload:        payload,
		})
	}
	return chunks
}
