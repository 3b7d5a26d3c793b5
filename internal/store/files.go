package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/notegraph/notegraph/internal/taskerr"
)

// LocalFileStore serves raw document bytes from a directory. Files are named
// <documentID><ext>; the extension selects the parser.
type LocalFileStore struct {
	Dir string
}

func NewLocalFileStore(dir string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &LocalFileStore{Dir: dir}, nil
}

func (s *LocalFileStore) Fetch(ctx context.Context, documentID string) (string, []byte, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", nil, fmt.Errorf("read document dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != documentID {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		if err != nil {
			return "", nil, err
		}
		return name, data, nil
	}
	return "", nil, taskerr.ErrDocumentNotFound
}

// Put stores document bytes under the id, keeping the original extension.
// Re-uploading replaces any prior file for the same id.
func (s *LocalFileStore) Put(documentID, filename string, data []byte) error {
	if strings.ContainsAny(documentID, "/\\") {
		return taskerr.Validation("document id must not contain path separators")
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		return taskerr.Validation("filename %q has no extension", filename)
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("read document dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.TrimSuffix(name, filepath.Ext(name)) == documentID && name != documentID+ext {
			if err := os.Remove(filepath.Join(s.Dir, name)); err != nil {
				return err
			}
		}
	}
	return os.WriteFile(filepath.Join(s.Dir, documentID+ext), data, 0o644)
}
