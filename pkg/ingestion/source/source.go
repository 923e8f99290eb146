// Package source defines the data-source adapter interface ingestion reads
// from, grounded in
// original_source/src/pipeline/ingestion_engine.py's DataSourceAdaptor.
// Only a local-filesystem implementation is provided — the original's cloud
// adapters were never filled in past a docstring stub, and SPEC_FULL.md
// section 1 scopes this repo's ingestion to local and simulated sources.
package source

import (
	"context"
)

// Source lists and reads objects from one data source (a local directory, a
// cloud bucket, or a test fixture).
type Source interface {
	ListObjects(ctx context.Context) ([]string, error)
	ReadObject(ctx context.Context, path string) ([]byte, error)
}
