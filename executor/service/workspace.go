package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the per-submission temp directory holding the source file.
// Callers must Release it on every path.
type Workspace struct {
	Dir        string
	SourcePath string
}

func NewWorkspace(root, sourceFile string) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("create workspace root failed: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "oj-submission-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace failed: %w", err)
	}
	return &Workspace{
		Dir:        dir,
		SourcePath: filepath.Join(dir, sourceFile),
	}, nil
}

func (w *Workspace) WriteSource(code string) error {
	if err := os.WriteFile(w.SourcePath, []byte(code), 0644); err != nil {
		return fmt.Errorf("write source failed: %w", err)
	}
	return nil
}

func (w *Workspace) Release() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("remove workspace failed: %w", err)
	}
	return nil
}
