package fsOp

import (
	"fmt"
	"io"
	"os"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/fs"
)

// Payloads are moved in chunks of this size.
const chunkSize = 64 << 10

/*
	Places a file on the filesystem.
	Replicates the permissions and times described in the metadata.

	The path within the filesystem is `fmeta.Name` (conventionally, this means
	the filesystem will join the `fmeta.Name` with the absolute base path
	it was constructed with).

	Only files and dirs are placed; any other type is ErrUnhandledType.

	No changes are allowed to occur outside of the filesystem's base path:
	symlinks may *not* be traversed during any part of `fmeta.Name`;
	this is considered malformed input and will result in ErrBreakout.

	Please note that like all filesystem operations within a lightyear of
	symlinks, all validations are best-effort, but are only capable of
	correctness in the absense of concurrent modifications inside the base path.

	Placing a dir that already exists is not an error; its permissions and
	times are stamped again.
*/
func PlaceFile(afs fs.FS, fmeta fs.Metadata, body io.Reader) error {
	// First, no part of the path may be a symlink.
	for _, path := range fmeta.Name.SplitParent() {
		stat, err := afs.LStat(path)
		switch Category(err) {
		case nil:
			if stat.Type == fs.Type_Symlink {
				return Errorf(fs.ErrBreakout, "placefile: refusing to traverse symlink at %s while placing %s", path, fmeta.Name)
			}
		case fs.ErrNotExists:
			// not existing is fine; the create below will say so if it matters.
		default:
			return err
		}
	}

	// Fill in the content.  (Attribs come later.)
	switch fmeta.Type {
	case fs.Type_Invalid:
		panic(fmt.Errorf("invalid fs.Metadata.Type; partially constructed object?"))
	case fs.Type_File:
		file, err := afs.OpenFile(fmeta.Name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fmeta.Perms)
		if err != nil {
			return err
		}
		if _, err := io.CopyBuffer(file, body, make([]byte, chunkSize)); err != nil {
			file.Close()
			if err == io.ErrShortWrite {
				return Errorf(fs.ErrShortWrite, "placefile: short write to %s", fmeta.Name)
			}
			return fs.NormalizeIOError(err)
		}
		if err := file.Close(); err != nil {
			return fs.NormalizeIOError(err)
		}
	case fs.Type_Dir:
		if err := afs.Mkdir(fmeta.Name, fmeta.Perms); err != nil {
			if Category(err) != fs.ErrAlreadyExists {
				return err
			}
			// there is no race-free path through this btw, unless you know of a way to lstat and mkdir in the same syscall.
			if existing, err2 := afs.LStat(fmeta.Name); err2 != nil || existing.Type != fs.Type_Dir {
				return Errorf(fs.ErrNotDir, "placefile: %s already exists and is not a dir", fmeta.Name)
			}
		}
	default:
		return Errorf(fs.ErrUnhandledType, "placefile: cannot place %s: unhandled type %s", fmeta.Name, fmeta.Type)
	}

	return ApplyAttribs(afs, fmeta)
}

/*
	Forces the permissions and times described in the metadata onto an
	existing path.

	The umask narrows what create calls apply, so placement always finishes
	with an explicit chmod.  Dirs also need their times stamped again after
	their children are written, since each child bumps the parent's mtime.

	A zero Mtime leaves times alone; a zero Atime is replaced with
	fs.DefaultAtime.
*/
func ApplyAttribs(afs fs.FS, fmeta fs.Metadata) error {
	if err := afs.Chmod(fmeta.Name, fmeta.Perms); err != nil {
		return err
	}
	if fmeta.Mtime.IsZero() {
		return nil
	}
	atime := fmeta.Atime
	if atime.IsZero() {
		atime = fs.DefaultAtime
	}
	return afs.SetTimesNano(fmeta.Name, fmeta.Mtime, atime)
}
