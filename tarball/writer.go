package tarball

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/fs"
	"github.com/polydawn/bpkg/fs/osfs"
	"github.com/polydawn/bpkg/fsOp"
)

// Payloads are streamed in chunks of this size.
const chunkSize = 64 << 10

// entryWriter is the archive backend the Writer drives.
// *tar.Writer is the only implementation outside of tests.
type entryWriter interface {
	WriteHeader(hdr *tar.Header) error
	Write(b []byte) (int, error)
	Close() error
}

/*
	Writer appends entries to a new tar file.

	Not safe for concurrent use; one Writer belongs to one pack call.
*/
type Writer struct {
	path   string
	out    io.Closer
	tw     entryWriter
	log    logrus.FieldLogger
	closed bool
}

// Create truncates or creates the file at path and readies it for entries.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, Errorf(api.ErrIO, "tarball: cannot create %s: %s", path, err)
	}
	return &Writer{
		path: path,
		out:  f,
		tw:   tar.NewWriter(f),
		log:  logrus.StandardLogger(),
	}, nil
}

// WithLogger replaces the logger (the logrus standard logger by default).
func (w *Writer) WithLogger(log logrus.FieldLogger) *Writer {
	w.log = log
	return w
}

/*
	AddFile adds one file or directory from the filesystem under the given
	name.  Directories are added as a bare header (their contents are not
	walked; see AddTree) with a trailing "/" on the name.

	The header carries the source's permission bits and its access, modify,
	and change times.  Anything other than a regular file or a directory is
	rejected with ErrUnsupportedEntry.
*/
func (w *Writer) AddFile(src string, name string) error {
	if w.closed {
		return Errorf(api.ErrUsage, "tarball: add to closed writer")
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return Errorf(api.ErrIO, "tarball: %s", err)
	}
	afs := osfs.New(fs.MustAbsolutePath(filepath.Dir(src)))
	rel, err := fs.ParseRelPath(filepath.Base(src))
	if err != nil {
		return Errorf(api.ErrUsage, "tarball: bad source path %q: %s", src, err)
	}
	return w.addFromFS(afs, rel, name)
}

/*
	AddTree adds every entry found under dir, named relative to dir.
	The dir itself is not an entry; its children are visited in sorted order.
*/
func (w *Writer) AddTree(dir string) error {
	if w.closed {
		return Errorf(api.ErrUsage, "tarball: add to closed writer")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Errorf(api.ErrIO, "tarball: %s", err)
	}
	afs := osfs.New(fs.MustAbsolutePath(dir))
	return fs.Walk(afs, func(node *fs.FilewalkNode) error {
		if node.Err != nil {
			return Errorf(api.ErrIO, "tarball: walking %s: %s", dir, node.Err)
		}
		if node.Info.Name == (fs.RelPath{}) {
			if node.Info.Type != fs.Type_Dir {
				return Errorf(api.ErrUsage, "tarball: %s is not a directory", dir)
			}
			return nil
		}
		return w.addFromFS(afs, node.Info.Name, node.Info.Name.Bare())
	}, nil)
}

func (w *Writer) addFromFS(afs fs.FS, path fs.RelPath, name string) error {
	arcName, err := fs.ParseRelPath(name)
	if err != nil || arcName.GoesUp() || arcName == (fs.RelPath{}) {
		return Errorf(api.ErrUsage, "tarball: %q is not a valid entry name", name)
	}

	fmeta, body, err := fsOp.ScanFile(afs, path)
	if err != nil {
		return Errorf(api.ErrIO, "tarball: cannot read %s: %s", afs.BasePath().Join(path), err)
	}
	if body != nil {
		defer body.Close()
	}
	switch fmeta.Type {
	case fs.Type_File, fs.Type_Dir:
	default:
		return Errorf(api.ErrUnsupportedEntry, "tarball: %s is a %s; only files and dirs can be archived", afs.BasePath().Join(path), fmeta.Type)
	}
	fmeta.Name = arcName

	hdr := &tar.Header{}
	metadataToTarHdr(fmeta, hdr)
	if err := w.tw.WriteHeader(hdr); err != nil {
		return Errorf(api.ErrIO, "tarball: writing header for %q: %s", hdr.Name, err)
	}
	w.log.WithField("entry", hdr.Name).Debug("tarball: added entry")
	if body == nil {
		return nil
	}
	return w.copyPayload(hdr.Name, body, fmeta.Size)
}

// AddBytes adds an in-memory regular file under the given name.
// The entry is mode 0644 and all three times are set to mtime.
func (w *Writer) AddBytes(name string, content []byte, mtime time.Time) error {
	if w.closed {
		return Errorf(api.ErrUsage, "tarball: add to closed writer")
	}
	arcName, err := fs.ParseRelPath(name)
	if err != nil || arcName.GoesUp() || arcName == (fs.RelPath{}) {
		return Errorf(api.ErrUsage, "tarball: %q is not a valid entry name", name)
	}
	hdr := &tar.Header{}
	metadataToTarHdr(&fs.Metadata{
		Name:  arcName,
		Type:  fs.Type_File,
		Perms: 0644,
		Size:  int64(len(content)),
		Atime: mtime,
		Mtime: mtime,
		Ctime: mtime,
	}, hdr)
	if err := w.tw.WriteHeader(hdr); err != nil {
		return Errorf(api.ErrIO, "tarball: writing header for %q: %s", hdr.Name, err)
	}
	return w.copyPayload(hdr.Name, bytes.NewReader(content), int64(len(content)))
}

// copyPayload moves exactly size bytes from body, chunk by chunk.
// Every chunk must be accepted whole; a file that changes length
// underneath us is an error rather than a silently mismatched entry.
func (w *Writer) copyPayload(name string, body io.Reader, size int64) error {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if total+int64(n) > size {
				return Errorf(api.ErrIO, "tarball: %q grew while being archived", name)
			}
			written, werr := w.tw.Write(buf[:n])
			if werr != nil {
				return Errorf(api.ErrIO, "tarball: writing %q: %s", name, werr)
			}
			if written != n {
				return Errorf(api.ErrIO, "tarball: writing %q: %s", name, io.ErrShortWrite)
			}
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Errorf(api.ErrIO, "tarball: reading %q: %s", name, err)
		}
	}
	if total != size {
		return Errorf(api.ErrIO, "tarball: %q shrank while being archived (%d of %d bytes)", name, total, size)
	}
	return nil
}

/*
	Close writes the archive trailer and closes the file.

	Calling Close again is a usage error, reported rather than panicking,
	so a deferred Close after an explicit one is harmless.
*/
func (w *Writer) Close() error {
	if w.closed {
		return Errorf(api.ErrUsage, "tarball: %s already closed", w.path)
	}
	w.closed = true
	err := w.tw.Close()
	if err2 := w.out.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return Errorf(api.ErrIO, "tarball: finishing %s: %s", w.path, err)
	}
	return nil
}
