package fs

import (
	"io"
	"time"
)

/*
	Interface for all primitive functions we expect to be able to perform
	on a filesystem.

	All paths accepted are RelPath types; typically the FS instance
	is constructed with an AbsolutePath, and all further operations are
	joined with that base path.
*/
type FS interface {
	BasePath() AbsolutePath

	OpenFile(path RelPath, flag int, perms Perms) (File, error)
	Mkdir(path RelPath, perms Perms) error
	Chmod(path RelPath, perms Perms) error
	SetTimesNano(path RelPath, mtime time.Time, atime time.Time) error
	RemoveAll(path RelPath) error

	LStat(path RelPath) (*Metadata, error)
	ReadDirNames(path RelPath) ([]string, error)
}

type File interface {
	io.Reader
	io.Writer
	io.Closer
}
