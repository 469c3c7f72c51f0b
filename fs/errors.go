package fs

import (
	"errors"
	"os"
	"syscall"

	. "github.com/warpfork/go-errcat"
)

type ErrorCategory string

const (
	ErrIOUnknown     = ErrorCategory("fs-io-unknown")     // Catchall.  Any other category may be more informative.
	ErrNotExists     = ErrorCategory("fs-not-exists")     // The path does not exist.
	ErrAlreadyExists = ErrorCategory("fs-already-exists") // Something is already at the path and we refuse to clobber it.
	ErrNotDir        = ErrorCategory("fs-not-dir")        // A directory was expected, and something else was found.
	ErrPermission    = ErrorCategory("fs-permission")     // The OS refused the operation.
	ErrShortWrite    = ErrorCategory("fs-short-write")    // A write accepted fewer bytes than offered.
	ErrUnhandledType = ErrorCategory("fs-unhandled-type") // The file is of a kind we do not place or scan (symlinks, devices, etc).

	/*
		Error returned when operating in a confined filesystem slice, but doing
		the requested operation would leave that slice (a ".." path, or a
		symlink traversed on the way to the target).

		Checks for this are best-effort: concurrent modifications of the
		operational area by other processes are a TOCTOU we cannot close.
	*/
	ErrBreakout = ErrorCategory("fs-breakout")
)

// NormalizeIOError categorizes errors returned by the os package.
// Nil stays nil.
func NormalizeIOError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return Errorf(ErrNotExists, "%s", err)
	case os.IsExist(err):
		return Errorf(ErrAlreadyExists, "%s", err)
	case os.IsPermission(err):
		return Errorf(ErrPermission, "%s", err)
	case errors.Is(err, syscall.ENOTDIR):
		return Errorf(ErrNotDir, "%s", err)
	case errors.Is(err, syscall.ENOSPC):
		return Errorf(ErrShortWrite, "%s", err)
	default:
		return Errorf(ErrIOUnknown, "%s", err)
	}
}
