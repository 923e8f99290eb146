// Package scheduler implements the processing worker pool (spec section 4.4
// / C4), grounded in
// original_source/src/pipeline/processing_workers.py's
// ProcessingWorkerPool, reshaped around goroutines/channels in the style of
// the teacher's pkg/scheduler load balancer.
package scheduler

import (
	"bytes"
	"compress/flate"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"time"
)

// Step is one stage of the processing pipeline: validate, transform,
// compress, or any future named step. Each step runs under its own
// configured timeout and a failure short-circuits the remaining steps
// (spec section 4.4).
type Step interface {
	Name() string
	Process(ctx context.Context, data []byte) ([]byte, error)
}

// ValidateStep rejects empty payloads, mirroring the original's
// DataValidator; it does not compare the payload against
// DataChunk.Checksum. Unlike the original it does not log a checksum prefix
// to stdout, that belongs to structured logging instead.
type ValidateStep struct{}

func (ValidateStep) Name() string { return "validate" }

func (ValidateStep) Process(_ context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("chunk payload is empty")
	}
	_ = md5.Sum(data) // computed but not compared; the pool performs no checksum check
	return data, nil
}

// TransformStep is a pass-through placeholder for the ML preprocessing the
// original implementation also simulates without a real transform — spec
// section 4.4 treats the named transform steps as pluggable and does not
// mandate a specific transformation.
type TransformStep struct{}

func (TransformStep) Name() string { return "transform" }

func (TransformStep) Process(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

// CompressStep DEFLATE-compresses the payload. The original Python
// implementation calls a nonexistent `zllib.compression`, which would raise
// at runtime; this renders the step's evident intent — reduce bytes before
// distribution — correctly, using stdlib compress/flate since no
// third-party compression library appears anywhere in the example pack.
type CompressStep struct {
	Level int
}

func (CompressStep) Name() string { return "compress" }

func (c CompressStep) Process(_ context.Context, data []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = flate.DefaultCompression
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses CompressStep, for consumers that need the original
// bytes back.
func Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

// runPipeline executes steps in order, enforcing each step's own timeout and
// stopping at the first failure (spec section 4.4's short-circuit rule).
func runPipeline(ctx context.Context, steps []Step, timeouts []time.Duration, data []byte) ([]byte, string, error) {
	current := data
	for i, step := range steps {
		timeout := 60 * time.Second
		if i < len(timeouts) && timeouts[i] > 0 {
			timeout = timeouts[i]
		}

		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := step.Process(stepCtx, current)
		cancel()

		if err != nil {
			if stepCtx.Err() == context.DeadlineExceeded {
				return nil, step.Name(), fmt.Errorf("step %q timed out after %s", step.Name(), timeout)
			}
			return nil, step.Name(), fmt.Errorf("step %q failed: %w", step.Name(), err)
		}
		current = out
	}
	return current, "", nil
}
