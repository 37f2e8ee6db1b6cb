package scope

import (
	"context"
	"fmt"
	"os"
)

// OpenFile opens path for reading and closes it when the scope ends.
func OpenFile(ctx context.Context, s *Scope, path string) (*os.File, error) {
	return AutoClose(ctx, s, func(context.Context) (*os.File, error) {
		return os.Open(path) //nolint:gosec // Path is validated by the caller
	})
}

// CreateFile creates or truncates path and closes it when the scope ends.
func CreateFile(ctx context.Context, s *Scope, path string) (*os.File, error) {
	return AutoClose(ctx, s, func(context.Context) (*os.File, error) {
		return os.Create(path) //nolint:gosec // Path is validated by the caller
	})
}

// TempDir creates a temporary directory that is removed, with its contents,
// when the scope ends.
func TempDir(ctx context.Context, s *Scope, dir, pattern string) (string, error) {
	return Acquire(ctx, s,
		func(context.Context) (string, error) {
			return os.MkdirTemp(dir, pattern)
		},
		func(_ context.Context, path string, _ ExitCase) error {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to remove temporary directory %q: %w", path, err)
			}

			return nil
		})
}

// TempFile creates a temporary file that is closed and removed when the
// scope ends.
func TempFile(ctx context.Context, s *Scope, dir, pattern string) (*os.File, error) {
	return Acquire(ctx, s,
		func(context.Context) (*os.File, error) {
			return os.CreateTemp(dir, pattern)
		},
		func(_ context.Context, file *os.File, _ ExitCase) error {
			name := file.Name()

			if err := file.Close(); err != nil {
				return fmt.Errorf("error closing temp file %q: %w", name, err)
			}

			if err := os.Remove(name); err != nil {
				return fmt.Errorf("error removing temp file %q: %w", name, err)
			}

			return nil
		})
}
