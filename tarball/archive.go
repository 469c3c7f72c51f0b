package tarball

import (
	"archive/tar"
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/fs"
	"github.com/polydawn/bpkg/fs/osfs"
	"github.com/polydawn/bpkg/fsOp"
)

// Entry describes one member of an archive.
type Entry struct {
	Name  string // clean form: no "./" prefix, no trailing "/"; "" is the archive root
	Type  fs.Type
	Perms fs.Perms
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time

	body []byte
}

/*
	Archive is a fully loaded tar, indexed by entry name.

	The index is built in one pass when the archive is loaded, so listing
	and extracting never share a read cursor: every call sees every entry,
	in archive order, no matter what was called before it.

	When a name appears more than once, lookups by name find the first.
*/
type Archive struct {
	entries []Entry
	index   map[string]int
	log     logrus.FieldLogger
}

// Open reads the whole tar file at path into memory and indexes it.
func Open(path string) (*Archive, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, Errorf(api.ErrIO, "tarball: cannot read %s: %s", path, err)
	}
	return Load(bs)
}

// Load indexes a tar held in memory.
// Any parse failure, including truncation, is ErrArchiveCorrupt.
func Load(bs []byte) (*Archive, error) {
	a := &Archive{
		index: map[string]int{},
		log:   logrus.StandardLogger(),
	}
	tr := tar.NewReader(bytes.NewReader(bs))
	for {
		thdr, err := tr.Next()
		if err == io.EOF {
			return a, nil
		}
		if err != nil {
			return nil, Errorf(api.ErrArchiveCorrupt, "corrupt tar: %s", err)
		}
		ent := Entry{}
		tarHdrToEntry(thdr, &ent)
		if ent.Size < 0 || ent.Size > int64(len(bs)) {
			return nil, Errorf(api.ErrArchiveCorrupt, "corrupt tar: %q claims %d bytes", ent.Name, ent.Size)
		}
		if ent.Type == fs.Type_File {
			ent.body = make([]byte, 0, ent.Size)
			buf := bytes.NewBuffer(ent.body)
			if _, err := io.Copy(buf, tr); err != nil {
				return nil, Errorf(api.ErrArchiveCorrupt, "corrupt tar: reading %q: %s", ent.Name, err)
			}
			ent.body = buf.Bytes()
		}
		if _, exists := a.index[ent.Name]; !exists {
			a.index[ent.Name] = len(a.entries)
		}
		a.entries = append(a.entries, ent)
	}
}

// WithLogger replaces the logger (the logrus standard logger by default).
func (a *Archive) WithLogger(log logrus.FieldLogger) *Archive {
	a.log = log
	return a
}

/*
	Contents lists entry names in archive order.

	Names are normalized: a dir carries a trailing "/" in the tar, but is
	listed without it, and a leading "./" is dropped.  Use Entries to tell
	dirs from files.
*/
func (a *Archive) Contents() []string {
	names := make([]string, len(a.entries))
	for i, ent := range a.entries {
		names[i] = ent.Name
	}
	return names
}

// Entries returns a copy of the entry descriptions in archive order.
// Names are normalized the same way Contents does it.
func (a *Archive) Entries() []Entry {
	ents := make([]Entry, len(a.entries))
	copy(ents, a.entries)
	for i := range ents {
		ents[i].body = nil
	}
	return ents
}

/*
	ExtractSingle copies the payload of the named regular file to w.

	If no entry has that name, found is false.  If the entry exists but is
	not a regular file, that is logged and also reported as not found;
	it is not an error.
*/
func (a *Archive) ExtractSingle(name string, w io.Writer) (found bool, err error) {
	i, exists := a.index[cleanName(name)]
	if !exists {
		return false, nil
	}
	ent := a.entries[i]
	if ent.Type != fs.Type_File {
		a.log.WithFields(logrus.Fields{
			"entry": ent.Name,
			"type":  ent.Type,
		}).Warn("tarball: entry is not a regular file; not extracting")
		return false, nil
	}
	if err := writeChunked(w, ent.body); err != nil {
		return true, Errorf(api.ErrIO, "tarball: extracting %q: %s", ent.Name, err)
	}
	return true, nil
}

// Bytes is ExtractSingle into a fresh buffer.
func (a *Archive) Bytes(name string) (content []byte, found bool, err error) {
	var buf bytes.Buffer
	found, err = a.ExtractSingle(name, &buf)
	if !found || err != nil {
		return nil, found, err
	}
	return buf.Bytes(), true, nil
}

/*
	Extract writes every entry under destDir, which must already exist.

	Missing parent dirs are created along the way.  Files and dirs get
	their permission bits and access/modify times restored; dirs are
	stamped again at the end, deepest last-written first, since writing
	their children moves their mtime (and they may not permit writing).
	A root entry ("./") stamps destDir itself.

	Any other kind of entry is a hard ErrUnsupportedEntry.  A name leaving
	destDir is ErrArchiveCorrupt.  There is no rollback: a failure leaves
	whatever was written so far.
*/
func (a *Archive) Extract(destDir string) error {
	dest, err := filepath.Abs(destDir)
	if err != nil {
		return Errorf(api.ErrIO, "tarball: %s", err)
	}
	afs := osfs.New(fs.MustAbsolutePath(dest))

	var dirs []fs.Metadata
	for _, ent := range a.entries {
		name, err := fs.ParseRelPath(ent.Name)
		if err != nil || name.GoesUp() {
			return Errorf(api.ErrArchiveCorrupt, "corrupt tar: %q leaves the extraction dir", ent.Name)
		}
		fmeta := fs.Metadata{
			Name:  name,
			Type:  ent.Type,
			Perms: ent.Perms,
			Size:  ent.Size,
			Atime: ent.Atime,
			Mtime: ent.Mtime,
		}

		// The tar format allows implicit parent dirs.
		if err := fsOp.MkdirAll(afs, name.Dir(), 0755); err != nil {
			return placementError(ent.Name, err)
		}

		switch ent.Type {
		case fs.Type_Dir:
			dirs = append(dirs, fmeta)
			placed := fmeta
			placed.Perms |= 0700
			if err := fsOp.PlaceFile(afs, placed, nil); err != nil {
				return placementError(ent.Name, err)
			}
		case fs.Type_File:
			if err := fsOp.PlaceFile(afs, fmeta, bytes.NewReader(ent.body)); err != nil {
				return placementError(ent.Name, err)
			}
		default:
			return Errorf(api.ErrUnsupportedEntry, "tarball: %q is a %s; only files and dirs can be extracted", ent.Name, ent.Type)
		}
		a.log.WithField("entry", ent.Name).Debug("tarball: extracted entry")
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		if err := fsOp.ApplyAttribs(afs, dirs[i]); err != nil {
			return placementError(dirs[i].Name.Bare(), err)
		}
	}
	return nil
}

func placementError(name string, err error) error {
	if Category(err) == fs.ErrBreakout {
		return Errorf(api.ErrArchiveCorrupt, "tarball: extracting %q: %s", name, err)
	}
	return Errorf(api.ErrIO, "tarball: extracting %q: %s", name, err)
}

func writeChunked(w io.Writer, bs []byte) error {
	for len(bs) > 0 {
		n := len(bs)
		if n > chunkSize {
			n = chunkSize
		}
		written, err := w.Write(bs[:n])
		if err != nil {
			return err
		}
		if written != n {
			return io.ErrShortWrite
		}
		bs = bs[n:]
	}
	return nil
}
