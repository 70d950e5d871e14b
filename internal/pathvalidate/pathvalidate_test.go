package pathvalidate

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) (*Validator, string) {
	t.Helper()
	base := t.TempDir()
	v, err := New(base)
	require.NoError(t, err)
	return v, base
}

func TestResolveRelativePath(t *testing.T) {
	v, base := newValidator(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("x"), 0o644))

	got, err := v.Resolve("a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v.Base(), "a.txt"), got)
}

func TestResolveNotYetExistingFile(t *testing.T) {
	v, _ := newValidator(t)
	got, err := v.Resolve("new/dir/file.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestResolveRejectsTraversal(t *testing.T) {
	v, _ := newValidator(t)
	_, err := v.Resolve("../../etc/passwd")
	require.Error(t, err)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, []string{ReasonOutsideBase, ReasonSystemPathBlocked}, pe.Reason)
}

func TestResolveRejectsAbsoluteSystemPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix system path list")
	}
	v, _ := newValidator(t)
	_, err := v.Resolve("/etc/passwd")
	require.Error(t, err)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks")
	}
	v, base := newValidator(t)
	outside := t.TempDir()
	link := filepath.Join(base, "escape")
	require.NoError(t, os.Symlink(outside, link))

	_, err := v.Resolve("escape/x.txt")
	require.Error(t, err, "a symlink pointing outside the base must not validate")
}

func TestNewRejectsEmptyBase(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}

func TestResolveRejectsEmptyPath(t *testing.T) {
	v, _ := newValidator(t)
	_, err := v.Resolve("")
	require.Error(t, err)
}
