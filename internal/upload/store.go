package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"braingemma/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store validates uploads and writes them into Dir.
type Store struct {
	Dir    string
	Policy Policy
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, policy Policy) *Store {
	return &Store{Dir: dir, Policy: policy}
}

// Save validates f and writes it as <uuid-hex><ext>. It returns the written path.
func (s *Store) Save(f File) (string, error) {
	if err := s.Policy.Validate(f); err != nil {
		logging.UploadWarn("rejected upload %q: %v", f.Name, err)
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := strings.ReplaceAll(uuid.New().String(), "-", "") + f.Ext()
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, f.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to save upload %q: %w", f.Name, err)
	}
	logging.UploadDebug("saved %q (%d bytes) to %s", f.Name, f.Size(), path)
	return path, nil
}

// SaveAll saves files concurrently. Returned paths keep the input order.
// Nothing is returned if any file fails.
func (s *Store) SaveAll(ctx context.Context, files []File) ([]string, error) {
	paths := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := s.Save(f)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
