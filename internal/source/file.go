package source

import (
	"context"
	"fmt"
	"os"
)

// File reads a local file.
type File struct {
	Path string
}

func (f *File) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", f.Path, err)
	}
	return data, nil
}

func (f *File) String() string { return f.Path }
