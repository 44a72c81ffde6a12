// Package resolve locates the child executable on the search path without
// trusting the path's contents.
package resolve

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Executable is the outcome of a successful lookup.
type Executable struct {
	// Path is absolute and contains no traversal segments.
	Path string
	// Executable confirms at least one execute permission bit was set when
	// the candidate was accepted.
	Executable bool
}

// NotFoundError reports that no safe PATH entry held the named executable.
type NotFoundError struct {
	Name    string
	Skipped []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s binary not found in PATH", e.Name)
}

// UnsafePathError reports a path that failed validation.
type UnsafePathError struct {
	Path string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe path detected: %s", e.Path)
}

// Resolver searches a PATH-style list of directories.
type Resolver struct {
	fs      afero.Fs
	pathEnv string
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFs replaces the filesystem used for lookups.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) { r.fs = fs }
}

// WithPathList replaces the value normally read from $PATH.
func WithPathList(list string) Option {
	return func(r *Resolver) { r.pathEnv = list }
}

// New returns a Resolver over the OS filesystem and the current $PATH.
func New(logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	r := &Resolver{
		fs:      afero.NewOsFs(),
		pathEnv: os.Getenv("PATH"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first safe PATH entry containing an executable regular
// file called name. Entries that fail IsSafePath are skipped with a warning.
func (r *Resolver) Resolve(name string) (Executable, error) {
	var skipped []string
	for _, dir := range filepath.SplitList(r.pathEnv) {
		if !IsSafePath(dir) {
			r.logger.Warn(fmt.Sprintf("Skipping unsafe PATH entry: %s", dir))
			skipped = append(skipped, dir)
			continue
		}
		candidate := filepath.Join(dir, name)
		ok, err := r.isExecutable(candidate)
		if err != nil {
			r.logger.Warn(fmt.Sprintf("Error checking PATH entry %s: %v", dir, err))
			continue
		}
		if ok {
			r.logger.Info(fmt.Sprintf("Found executable %s at: %s", name, candidate))
			return Executable{Path: candidate, Executable: true}, nil
		}
	}
	return Executable{}, &NotFoundError{Name: name, Skipped: skipped}
}

// Verify re-checks a previously resolved executable just before it is used.
func (r *Resolver) Verify(exe Executable) error {
	if !IsSafePath(exe.Path) {
		return &UnsafePathError{Path: exe.Path}
	}
	ok, err := r.isExecutable(exe.Path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", exe.Path, err)
	}
	if !ok {
		return &NotFoundError{Name: filepath.Base(exe.Path)}
	}
	return nil
}

func (r *Resolver) isExecutable(path string) (bool, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0, nil
}

// IsSafePath reports whether p is absolute, free of ".." segments, and equal
// to its cleaned form. A single trailing separator is tolerated.
func IsSafePath(p string) bool {
	if p == "" || !filepath.IsAbs(p) {
		return false
	}
	for _, segment := range strings.FieldsFunc(p, isSeparator) {
		if segment == ".." {
			return false
		}
	}
	trimmed := p
	if len(trimmed) > 1 && os.IsPathSeparator(trimmed[len(trimmed)-1]) {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return filepath.Clean(trimmed) == trimmed
}

func isSeparator(r rune) bool {
	return r < 0x80 && os.IsPathSeparator(uint8(r))
}
