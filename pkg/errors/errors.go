// Package errors defines the pipeline's single error type and the closed set
// of error kinds the orchestrator, stages, and transport classify failures
// into (see spec section 7, Error Handling Design).
package errors

import (
	"fmt"
	"time"
)

// Kind is the closed set of classified failure kinds the pipeline raises.
type Kind string

const (
	KindConfigInvalid            Kind = "CONFIG_INVALID"
	KindNodeUnreachable          Kind = "NODE_UNREACHABLE"
	KindHealthCheckTimeout       Kind = "HEALTH_CHECK_TIMEOUT"
	KindRateLimited              Kind = "RATE_LIMITED"
	KindTransportError           Kind = "TRANSPORT_ERROR"
	KindProcessingStepFailed     Kind = "PROCESSING_STEP_FAILED"
	KindProcessingStepTimeout    Kind = "PROCESSING_STEP_TIMEOUT"
	KindDistributionError        Kind = "DISTRIBUTION_ERROR"
	KindPlacementInsufficient    Kind = "PLACEMENT_INSUFFICIENT_NODES"
	KindReplicaTransferFailed    Kind = "REPLICA_TRANSFER_FAILED"
	KindIntegrityFailure         Kind = "INTEGRITY_FAILURE"
	KindStorageWriteFailed       Kind = "STORAGE_WRITE_FAILED"
	KindRetrievalNotFound        Kind = "RETRIEVAL_NOT_FOUND"
	KindStageFatal               Kind = "STAGE_FATAL"
)

// Severity classifies how serious an error is for reporting/alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PipelineError is the single error type raised across the pipeline. It
// carries enough context to populate a structured failure-log record without
// the caller re-deriving it.
type PipelineError struct {
	Kind      Kind
	Severity  Severity
	Message   string
	NodeID    string
	ChunkID   string
	Cause     error
	Retryable bool
	RetryAfter time.Duration
	Timestamp time.Time
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches PipelineErrors by Kind, the only identity that callers in this
// codebase ever need to switch on.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides a fluent way to assemble a PipelineError at the point a
// failure is classified, mirroring the upstream project's ErrorBuilder.
type Builder struct {
	err *PipelineError
}

// New starts building a PipelineError of the given kind.
func New(kind Kind, message string) *Builder {
	return &Builder{
		err: &PipelineError{
			Kind:      kind,
			Message:   message,
			Severity:  SeverityMedium,
			Timestamp: time.Now(),
		},
	}
}

func (b *Builder) WithSeverity(s Severity) *Builder {
	b.err.Severity = s
	return b
}

func (b *Builder) WithNode(nodeID string) *Builder {
	b.err.NodeID = nodeID
	return b
}

func (b *Builder) WithChunk(chunkID string) *Builder {
	b.err.ChunkID = chunkID
	return b
}

func (b *Builder) WithCause(cause error) *Builder {
	b.err.Cause = cause
	return b
}

func (b *Builder) Retryable(after time.Duration) *Builder {
	b.err.Retryable = true
	b.err.RetryAfter = after
	return b
}

func (b *Builder) Build() *PipelineError {
	return b.err
}

// As attempts to extract a *PipelineError from a generic error chain.
func As(err error) (*PipelineError, bool) {
	pe, ok := err.(*PipelineError)
	if ok {
		return pe, true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return As(u.Unwrap())
	}
	return nil, false
}
