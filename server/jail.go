package server

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Jail confines path resolution and filesystem access to one account root.
//
// Paths handed out by Resolve are absolute host paths that are lexically
// inside the root. All I/O goes through an os.Root handle, so a symlink that
// points outside the root cannot be followed either.
type Jail struct {
	root   string
	handle *os.Root
}

// OpenJail canonicalizes rootPath (absolute, symlinks resolved) and opens it.
func OpenJail(rootPath string) (*Jail, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	handle, err := os.OpenRoot(canonical)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	return &Jail{root: canonical, handle: handle}, nil
}

// Root returns the canonical root directory.
func (j *Jail) Root() string {
	return j.root
}

// Close releases the root handle.
func (j *Jail) Close() error {
	return j.handle.Close()
}

// Resolve computes the target of segment relative to cwd.
//
// ".." is the parent of cwd, "." or "" is cwd itself and a leading "/"
// anchors the segment at the jail root. The result is cleaned and must be the
// root or one of its descendants, otherwise ErrOutsideRoot is returned.
func (j *Jail) Resolve(cwd, segment string) (string, error) {
	var candidate string
	switch {
	case segment == "" || segment == ".":
		candidate = cwd
	case segment == "..":
		candidate = filepath.Dir(cwd)
	case strings.HasPrefix(segment, "/"):
		candidate = filepath.Join(j.root, filepath.FromSlash(segment))
	default:
		candidate = filepath.Join(cwd, filepath.FromSlash(segment))
	}
	candidate = filepath.Clean(candidate)
	if !j.Contains(candidate) {
		return "", ErrOutsideRoot
	}
	return candidate, nil
}

// Contains reports whether p is the root or lies beneath it.
func (j *Jail) Contains(p string) bool {
	if !filepath.IsAbs(p) {
		return false
	}
	rel, err := filepath.Rel(j.root, filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Virtual returns p as seen by the client: slash separated and rooted at "/".
func (j *Jail) Virtual(p string) string {
	rel, err := filepath.Rel(j.root, p)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

func (j *Jail) rel(p string) (string, error) {
	if !j.Contains(p) {
		return "", ErrOutsideRoot
	}
	rel, err := filepath.Rel(j.root, p)
	if err != nil {
		return "", ErrOutsideRoot
	}
	return rel, nil
}

// Stat follows symlinks that stay inside the jail.
func (j *Jail) Stat(p string) (fs.FileInfo, error) {
	rel, err := j.rel(p)
	if err != nil {
		return nil, err
	}
	return j.handle.Stat(rel)
}

// ReadDir returns the entries of directory p sorted by name.
func (j *Jail) ReadDir(p string) ([]fs.DirEntry, error) {
	f, err := j.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// Open opens p for reading.
func (j *Jail) Open(p string) (*os.File, error) {
	rel, err := j.rel(p)
	if err != nil {
		return nil, err
	}
	return j.handle.Open(rel)
}

// Create truncates or creates p for writing.
func (j *Jail) Create(p string) (*os.File, error) {
	return j.openFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// CreateNew creates p, failing if it already exists.
func (j *Jail) CreateNew(p string) (*os.File, error) {
	return j.openFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

// Append opens p for appending, creating it if needed.
func (j *Jail) Append(p string) (*os.File, error) {
	return j.openFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (j *Jail) openFile(p string, flag int) (*os.File, error) {
	rel, err := j.rel(p)
	if err != nil {
		return nil, err
	}
	return j.handle.OpenFile(rel, flag, 0o644)
}

// MkdirAll creates p and any missing parents.
func (j *Jail) MkdirAll(p string) error {
	rel, err := j.rel(p)
	if err != nil {
		return err
	}
	return j.handle.MkdirAll(rel, 0o755)
}

// Remove removes a file or an empty directory. The root itself is never removed.
func (j *Jail) Remove(p string) error {
	rel, err := j.rel(p)
	if err != nil {
		return err
	}
	if rel == "." {
		return &fs.PathError{Op: "remove", Path: "/", Err: fs.ErrPermission}
	}
	return j.handle.Remove(rel)
}

// Rename moves from to to; both must be inside the jail.
func (j *Jail) Rename(from, to string) error {
	relFrom, err := j.rel(from)
	if err != nil {
		return err
	}
	relTo, err := j.rel(to)
	if err != nil {
		return err
	}
	if relFrom == "." || relTo == "." {
		return &fs.PathError{Op: "rename", Path: "/", Err: fs.ErrPermission}
	}
	return j.handle.Rename(relFrom, relTo)
}
