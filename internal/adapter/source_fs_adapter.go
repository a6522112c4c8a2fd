// Package adapter contains the infrastructure adapters of the snare CLI:
// source discovery, front-ends, oracle and report persistence, file watching.
package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	m "snare.dev/pkg/snare/internal/model"
)

// RecursiveSuffix marks a path pattern that descends into subdirectories.
const RecursiveSuffix = "/..."

// SourceFSAdapter abstracts filesystem-specific operations that the domain layer
// relies on when discovering fixtures. It hides direct `os` access so the
// workflow logic can be tested without touching the disk.
type SourceFSAdapter interface {
	// Get resolves path patterns into files. "dir/..." descends into
	// subdirectories, a bare directory lists only its own files, and a file
	// path is taken as is. Exclude holds regular expressions matched against
	// the short path of every candidate.
	Get(ctx context.Context, paths []m.Path, exclude []string) ([]m.File, error)

	// Walk traverses the provided root path. When recursive is false the
	// implementation should limit itself to the root directory (no sub-dirs).
	Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// HashFile returns a stable fingerprint (SHA-256) for the file at path.
	HashFile(path m.Path) (string, error)

	// FileInfo returns metadata for a path so the domain can check existence or
	// distinguish between files and directories when necessary.
	FileInfo(path m.Path) (os.FileInfo, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error
}

// FilepathWalkFunc mirrors the callback shape used by filepath.Walk. It is
// defined here to avoid leaking the standard-library type directly into the
// domain layer.
type FilepathWalkFunc func(path string, info os.FileInfo, err error) error

// LocalSourceFSAdapter backs SourceFSAdapter with the local disk.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter instance ready to
// be wired into the workflow.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// Get resolves every pattern and returns the files sorted by short path.
// A file reachable from two patterns is returned once.
func (a *LocalSourceFSAdapter) Get(ctx context.Context, paths []m.Path, exclude []string) ([]m.File, error) {
	excludes, err := compileExcludes(exclude)
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		paths = []m.Path{"." + RecursiveSuffix}
	}

	seen := make(map[m.Path]struct{})

	var files []m.File

	for _, pattern := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := a.resolve(ctx, pattern)
		if err != nil {
			return nil, err
		}

		for _, file := range found {
			if _, ok := seen[file.FullPath]; ok {
				continue
			}

			if excluded(excludes, string(file.ShortPath)) {
				continue
			}

			seen[file.FullPath] = struct{}{}

			hash, err := a.HashFile(file.FullPath)
			if err != nil {
				return nil, fmt.Errorf("hash %s: %w", file.FullPath, err)
			}

			file.Hash = hash
			files = append(files, file)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ShortPath < files[j].ShortPath
	})

	return files, nil
}

func (a *LocalSourceFSAdapter) resolve(ctx context.Context, pattern m.Path) ([]m.File, error) {
	root := filepath.FromSlash(string(pattern))

	recursive := strings.HasSuffix(string(pattern), RecursiveSuffix) || string(pattern) == "..."
	if recursive {
		root = strings.TrimSuffix(strings.TrimSuffix(string(pattern), "..."), "/")
		if root == "" {
			root = "."
		}
	}

	info, err := a.FileInfo(m.Path(root))
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", pattern, err)
	}

	if !info.IsDir() {
		return []m.File{{
			ShortPath: m.Path(filepath.Base(root)),
			FullPath:  m.Path(root),
		}}, nil
	}

	var files []m.File

	err = a.Walk(m.Path(root), recursive, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if info.IsDir() {
			if path != root && skipDir(info.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, m.File{
			ShortPath: m.Path(filepath.ToSlash(rel)),
			FullPath:  m.Path(path),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

// Walk iterates over files under root, optionally descending into subdirectories.
func (a *LocalSourceFSAdapter) Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error {
	rootStr := string(root)

	return filepath.Walk(rootStr, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(path, info, err)
		}

		if info.IsDir() && !recursive && path != rootStr {
			return filepath.SkipDir
		}

		return fn(path, info, nil)
	})
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalSourceFSAdapter) HashFile(path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// WriteFile writes content to a file with the given permissions, creating
// parent directories as needed.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

func skipDir(name string) bool {
	if name == "vendor" || name == "node_modules" {
		return true
	}

	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}

		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}

		out = append(out, re)
	}

	return out, nil
}

func excluded(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}
