package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Access is the permission set a check requires.
type Access uint32

const (
	AccessRead      Access = unix.R_OK | unix.X_OK
	AccessReadWrite Access = unix.R_OK | unix.W_OK | unix.X_OK
)

func (a Access) label() string {
	if a&unix.W_OK != 0 {
		return "read/write"
	}
	return "read"
}

// CheckDirectoryAccess verifies that the directory exists and grants the
// requested access.
func CheckDirectoryAccess(name, path string, access Access) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, uint32(access)); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s ok)", path, access.label())}
}

// CheckOptionalDirectory is CheckDirectoryAccess for a directory the run may
// create. A missing directory passes when its nearest existing ancestor is
// writable, or unconditionally in dry-run mode where nothing is created.
func CheckOptionalDirectory(name, path string, access Access, dryRun bool) Result {
	if _, err := os.Stat(path); err != nil && errors.Is(err, fs.ErrNotExist) {
		if dryRun {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (missing; not created in dry run)", path)}
		}
		parent := nearestExisting(filepath.Dir(path))
		if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	}
	return CheckDirectoryAccess(name, path, access)
}

// CheckQueueFile verifies that a queue file, when present, is a regular file
// with the requested access.
func CheckQueueFile(name, path string, access Access) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (absent)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	mode := uint32(unix.R_OK)
	if access&unix.W_OK != 0 {
		mode |= unix.W_OK
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s ok)", path, access.label())}
}

func nearestExisting(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
