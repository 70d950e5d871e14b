// Package pathvalidate canonicalises user-supplied paths against a base
// directory, rejecting escapes and known system paths. Every tool that
// touches the filesystem flows through here.
package pathvalidate

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// systemPaths are prefixes that are always blocked, even if they happen to
// sit underneath the configured base directory.
var systemPaths = func() []string {
	if runtime.GOOS == "windows" {
		return []string{`C:\Windows`, `C:\Program Files`}
	}
	return []string{"/etc", "/root", "/sys", "/proc", "/boot", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/var"}
}()

// Error reports why a path failed validation.
type Error struct {
	Reason string
	Path   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

const (
	ReasonOutsideBase           = "path escapes base directory"
	ReasonSystemPathBlocked     = "system path blocked"
	ReasonCanonicalizationFail  = "failed to canonicalize path"
	ReasonInvalidBaseDirectory  = "invalid base directory"
)

// Validator resolves paths relative to a canonicalised base directory.
type Validator struct {
	base string
}

// New creates a Validator rooted at baseDir. baseDir must already be an
// absolute, existing directory; it is canonicalised (symlinks resolved) once
// at construction time.
func New(baseDir string) (*Validator, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, &Error{Reason: ReasonInvalidBaseDirectory, Path: baseDir}
	}
	canon, err := canonicalize(baseDir)
	if err != nil {
		return nil, &Error{Reason: ReasonInvalidBaseDirectory, Path: baseDir}
	}
	return &Validator{base: canon}, nil
}

// Base returns the canonicalised base directory.
func (v *Validator) Base() string { return v.base }

// Resolve validates userPath (relative or absolute) against the base
// directory and returns the canonical absolute path. It never performs I/O
// beyond what canonicalization requires (symlink resolution).
func (v *Validator) Resolve(userPath string) (string, error) {
	if strings.TrimSpace(userPath) == "" {
		return "", &Error{Reason: ReasonInvalidBaseDirectory, Path: userPath}
	}

	var joined string
	if filepath.IsAbs(userPath) {
		joined = filepath.Clean(userPath)
	} else {
		joined = filepath.Join(v.base, userPath)
	}

	canon, err := canonicalize(joined)
	if err != nil {
		return "", &Error{Reason: ReasonCanonicalizationFail, Path: userPath}
	}

	rel, err := filepath.Rel(v.base, canon)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &Error{Reason: ReasonOutsideBase, Path: userPath}
	}

	for _, blocked := range systemPaths {
		if canon == blocked || strings.HasPrefix(canon, blocked+string(filepath.Separator)) {
			return "", &Error{Reason: ReasonSystemPathBlocked, Path: userPath}
		}
	}

	return canon, nil
}

// canonicalize resolves ".." segments and symlinks. It tolerates paths whose
// final component doesn't exist yet (e.g. a file about to be written),
// falling back to cleaning the parent directory and resolving symlinks only
// on the existing prefix.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return filepath.Clean(resolved), nil
	}

	// Walk up until we find an existing ancestor to resolve symlinks on,
	// then re-append the remaining (not-yet-existing) suffix.
	dir := filepath.Dir(abs)
	base := filepath.Base(abs)
	for {
		resolvedDir, derr := filepath.EvalSymlinks(dir)
		if derr == nil {
			return filepath.Clean(filepath.Join(resolvedDir, base)), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Clean(abs), nil
		}
		base = filepath.Join(filepath.Base(dir), base)
		dir = parent
	}
}
