package fsOp

import (
	"io"
	"os"

	"github.com/polydawn/bpkg/fs"
)

/*
	ScanFile stats path without following symlinks, and for a regular file
	also opens it for reading.

	body is nil for every other type; when it is not nil the caller closes it.
	The file may still change after the stat, so fmeta.Size is what the file
	held at stat time, not a promise about what body will yield.
*/
func ScanFile(afs fs.FS, path fs.RelPath) (*fs.Metadata, io.ReadCloser, error) {
	fmeta, err := afs.LStat(path)
	if err != nil {
		return fmeta, nil, err
	}
	if fmeta.Type != fs.Type_File {
		return fmeta, nil, nil
	}
	body, err := afs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return fmeta, nil, err
	}
	return fmeta, body, nil
}
