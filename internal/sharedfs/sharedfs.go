// Package sharedfs implements sandboxed read/write/list/delete access to a
// single directory tree. Every path argument is resolved against the root
// and rejected if it would escape it, including via symlinks.
package sharedfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/glob"
)

// FS is a sandboxed view of one directory on disk.
type FS struct {
	root string
}

// New creates an FS rooted at root, creating the directory if it does not
// exist yet.
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve shared dir %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create shared dir %q: %w", abs, err)
	}
	return &FS{root: abs}, nil
}

// Entry is one row of a List result.
type Entry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	IsDir     bool      `json:"isDir"`
	ModTime   time.Time `json:"modTime"`
}

// resolve joins relPath onto the root and verifies the result cannot escape
// it, either via ".." segments, an absolute path, or a symlink that resolves
// outside the root.
func (fs *FS) resolve(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%q: %w", relPath, core.ErrPathEscape)
	}
	joined := filepath.Join(fs.root, relPath)
	cleanRoot := filepath.Clean(fs.root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", relPath, core.ErrPathEscape)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			// Target doesn't exist yet (a pending write); validate the
			// nearest existing ancestor instead so a symlinked parent
			// directory can't be used to escape the root either.
			return fs.resolveMissingAncestor(joined, cleanRoot)
		}
		return "", fmt.Errorf("resolve %q: %w", relPath, err)
	}
	if resolved != cleanRoot && !strings.HasPrefix(resolved, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", relPath, core.ErrPathEscape)
	}
	return joined, nil
}

func (fs *FS) resolveMissingAncestor(joined, cleanRoot string) (string, error) {
	dir := filepath.Dir(joined)
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			if resolved != cleanRoot && !strings.HasPrefix(resolved, cleanRoot+string(filepath.Separator)) {
				return "", fmt.Errorf("%q: %w", joined, core.ErrPathEscape)
			}
			return joined, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve ancestor of %q: %w", joined, err)
		}
		if dir == cleanRoot || dir == filepath.Dir(dir) {
			return joined, nil
		}
		dir = filepath.Dir(dir)
	}
}

// Read returns the contents of relPath.
func (fs *FS) Read(_ context.Context, relPath string) ([]byte, error) {
	abs, err := fs.resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Write stores data at relPath, creating any missing parent directories.
func (fs *FS) Write(_ context.Context, relPath string, data []byte) error {
	abs, err := fs.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("create parent dirs for %q: %w", relPath, err)
	}
	return os.WriteFile(abs, data, 0644)
}

// Delete removes the file or directory at relPath.
func (fs *FS) Delete(_ context.Context, relPath string) error {
	abs, err := fs.resolve(relPath)
	if err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

// List returns every entry under relPath (non-recursive), optionally
// filtered to those whose name matches pattern. An empty relPath lists the
// root itself.
func (fs *FS) List(_ context.Context, relPath, pattern string) ([]Entry, error) {
	if pattern != "" {
		if err := glob.ValidateComplexity(pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	abs, err := fs.resolve(relPath)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if pattern != "" {
			matched, matchErr := filepath.Match(pattern, de.Name())
			if matchErr != nil {
				return nil, fmt.Errorf("match pattern %q: %w", pattern, matchErr)
			}
			if !matched {
				continue
			}
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Path:      filepath.ToSlash(filepath.Join(relPath, de.Name())),
			Size:      info.Size(),
			SizeHuman: humanize.Bytes(uint64(info.Size())),
			IsDir:     de.IsDir(),
			ModTime:   info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
