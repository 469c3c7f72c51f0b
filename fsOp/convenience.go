package fsOp

import (
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/fs"
)

/*
	Makes dirs recursively so the requested path exists, creating each one
	that was missing with the given perms.

	Existing dirs are not mutated.

	Symlinks are not traversed: a symlink anywhere on the path is ErrBreakout,
	same as PlaceFile.
*/
func MkdirAll(afs fs.FS, path fs.RelPath, perms fs.Perms) error {
	stat, err := afs.LStat(path)
	switch Category(err) {
	case nil:
		switch stat.Type {
		case fs.Type_Dir:
			return nil
		case fs.Type_Symlink:
			return Errorf(fs.ErrBreakout, "%s is a symlink; refusing to traverse it", afs.BasePath().Join(path))
		}
		return Errorf(fs.ErrNotDir, "%s already exists and is a %s not %s", afs.BasePath().Join(path), stat.Type, fs.Type_Dir)
	case fs.ErrNotExists:
		if path == (fs.RelPath{}) {
			return Errorf(fs.ErrNotExists, "base path %s does not exist!", afs.BasePath())
		}
		if err := MkdirAll(afs, path.Dir(), perms); err != nil {
			return err
		}
		if err := afs.Mkdir(path, perms); err != nil && Category(err) != fs.ErrAlreadyExists {
			return err
		}
		return nil
	case fs.ErrNotDir:
		// Reformat the error a tad to not say "lstat", which is distracting.
		return Errorf(fs.ErrNotDir, "%s has parents which are not a directory", afs.BasePath().Join(path))
	default:
		return err
	}
}

/*
	Removes the filesystem's base path entirely, then makes it again as an
	empty dir with the given perms.

	The parent of the base path must exist.  Whatever was at the base path
	before (file, dir, symlink) is gone; this is replacement, not merge.
*/
func ResetDir(afs fs.FS, perms fs.Perms) error {
	if err := afs.RemoveAll(fs.RelPath{}); err != nil {
		return err
	}
	if err := afs.Mkdir(fs.RelPath{}, perms); err != nil {
		return err
	}
	return afs.Chmod(fs.RelPath{}, perms)
}
