package types

import (
	"fmt"
	"time"
)

// MessageType enumerates the inter-node message kinds carried over the wire
// protocol (spec section 6).
type MessageType string

const (
	MessageDataChunk       MessageType = "data_chunk"
	MessageProcessedChunk  MessageType = "processed_chunk"
	MessageReplicaTransfer MessageType = "replica_transfer"
)

// Message is the structured record exchanged between nodes over
// POST /message. Payload is an opaque map so callers aren't coupled to a
// single message schema.
type Message struct {
	SenderID    string         `json:"sender_id"`
	RecipientID string         `json:"recipient_id"`
	MessageType MessageType    `json:"message_type"`
	Payload     map[string]any `json:"payload"`
	Timestamp   time.Time      `json:"timestamp"`
	MessageID   string         `json:"message_id"`
}

// NewMessageID builds the canonical message_id: sender || "_" || monotonic_ms.
func NewMessageID(sender string, monotonicMS int64) string {
	return fmt.Sprintf("%s_%d", sender, monotonicMS)
}
