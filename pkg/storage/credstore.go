// Package storage manages the on-disk credential root: one directory per
// session holding the browser profile and auth material written by the
// automation driver. It enforces that destructive operations stay inside
// the credential root, preventing path traversal escapes.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirPrefix is the naming pattern for session credential directories.
const DirPrefix = "session-"

// removeRetryDelay is the pause before retrying a file removal that failed
// with a transient lock or permission error from a driver process that has
// not fully exited yet.
const removeRetryDelay = 200 * time.Millisecond

// ErrPathOutsideRoot is returned when a resolved credential directory path
// escapes the credential root.
var ErrPathOutsideRoot = errors.New("path is outside the credential root")

// CredentialStore tracks session credential directories under a single root.
type CredentialStore struct {
	root string // Absolute, symlink-resolved credential root
}

// NewCredentialStore creates the credential root if needed and returns a
// store bound to its resolved absolute path.
func NewCredentialStore(root string) (*CredentialStore, error) {
	if root == "" {
		return nil, fmt.Errorf("credential root cannot be empty")
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential root: %w", err)
	}

	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create credential root: %w", err)
	}

	// Evaluate symlinks so later containment checks compare real paths
	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate credential root symlinks: %w", err)
	}

	return &CredentialStore{root: evalPath}, nil
}

// Root returns the absolute path of the credential root.
func (s *CredentialStore) Root() string {
	return s.root
}

// Dir returns the credential directory path for a session id.
// The path is cleaned but not checked for existence.
func (s *CredentialStore) Dir(id string) string {
	return filepath.Join(s.root, DirPrefix+id)
}

// Exists reports whether a credential directory is present for the id.
func (s *CredentialStore) Exists(id string) bool {
	info, err := os.Stat(s.Dir(id))
	return err == nil && info.IsDir()
}

// List returns the session ids that have a credential directory under the
// root, sorted for deterministic iteration.
func (s *CredentialStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential root: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, DirPrefix) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(name, DirPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the credential directory for a session id. The directory
// path is resolved to its real location first and must sit strictly inside
// the credential root; anything else is rejected with ErrPathOutsideRoot
// before any file is touched. Individual file removals are retried once
// after a short delay to ride out transient locks held by a driver process
// that is still shutting down. A missing directory is not an error.
func (s *CredentialStore) Delete(id string) error {
	dir := s.Dir(id)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to resolve credential directory: %w", err)
	}

	if err := s.checkWithinRoot(resolved); err != nil {
		return err
	}

	// Collect files and directories; remove files first, then the now-empty
	// directories deepest-first.
	var files, dirs []string
	err = filepath.WalkDir(resolved, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan credential directory: %w", err)
	}

	for _, f := range files {
		if err := removeWithRetry(f); err != nil {
			return fmt.Errorf("failed to delete %s: %w", f, err)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		if err := removeWithRetry(d); err != nil {
			return fmt.Errorf("failed to remove directory %s: %w", d, err)
		}
	}

	return nil
}

// checkWithinRoot verifies that path is strictly inside the credential root.
// The trailing separator prevents a sibling directory sharing the root as a
// string prefix (e.g. /data/sessions-old) from passing the check.
func (s *CredentialStore) checkWithinRoot(path string) error {
	sep := string(filepath.Separator)
	if !strings.HasPrefix(path, s.root+sep) {
		return fmt.Errorf("%w: %s", ErrPathOutsideRoot, path)
	}
	return nil
}

// removeWithRetry removes a file or empty directory, retrying once on
// transient lock/permission errors.
func removeWithRetry(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}

	time.Sleep(removeRetryDelay)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
