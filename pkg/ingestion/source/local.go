package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local lists and reads files under a root directory, mirroring the
// original's list_files_local_simulation/read_file_local_simulation.
type Local struct {
	Root string
}

// NewLocal constructs a Local source rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{Root: dir}
}

// ListObjects walks Root and returns every regular file's path relative to
// nothing — callers pass these paths straight back to ReadObject.
func (l *Local) ListObjects(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(l.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects under %s: %w", l.Root, err)
	}
	return out, nil
}

// ReadObject reads one file's full contents.
func (l *Local) ReadObject(ctx context.Context, path string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}
