// Package artifact persists downloaded run results to the local
// filesystem.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Sink writes exported datasets to a fixed path on disk.
type Sink struct {
	path   string
	logger *zap.Logger
}

// NewSink returns a sink targeting path. An existing file at that path
// is replaced on Save.
func NewSink(path string, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{path: path, logger: logger}, nil
}

// Save streams the dataset to the configured path, overwriting any
// previous file of that name, and returns the path written.
func (s *Sink) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", s.path, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", s.path, err)
	}
	s.logger.Info("results saved", zap.String("path", s.path), zap.Int64("bytes", n))
	return s.path, nil
}
