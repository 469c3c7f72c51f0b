package osfs

import (
	"os"
	"time"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/sys/unix"

	"github.com/polydawn/bpkg/fs"
)

func New(basePath fs.AbsolutePath) fs.FS {
	return &osFS{basePath}
}

type osFS struct {
	basePath fs.AbsolutePath
}

func (afs *osFS) BasePath() fs.AbsolutePath {
	return afs.basePath
}

func (afs *osFS) OpenFile(path fs.RelPath, flag int, perms fs.Perms) (fs.File, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(rpath, flag, permsToOs(perms))
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return f, nil
}

func (afs *osFS) Mkdir(path fs.RelPath, perms fs.Perms) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	err = os.Mkdir(rpath, permsToOs(perms))
	return fs.NormalizeIOError(err)
}

func (afs *osFS) Chmod(path fs.RelPath, perms fs.Perms) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	err = os.Chmod(rpath, permsToOs(perms))
	return fs.NormalizeIOError(err)
}

func (afs *osFS) RemoveAll(path fs.RelPath) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	err = os.RemoveAll(rpath)
	return fs.NormalizeIOError(err)
}

// SetTimesNano sets access and modify times.
// The create/change time is owned by the kernel and cannot be set.
func (afs *osFS) SetTimesNano(path fs.RelPath, mtime time.Time, atime time.Time) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	utimes := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNano(rpath, utimes); err != nil {
		return fs.NormalizeIOError(&os.PathError{Op: "utimes", Path: rpath, Err: err})
	}
	return nil
}

func (afs *osFS) LStat(path fs.RelPath) (*fs.Metadata, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	var st unix.Stat_t
	if err := unix.Lstat(rpath, &st); err != nil {
		return nil, fs.NormalizeIOError(&os.PathError{Op: "lstat", Path: rpath, Err: err})
	}
	return convertStat(path, &st)
}

func convertStat(path fs.RelPath, st *unix.Stat_t) (*fs.Metadata, error) {
	fmeta := &fs.Metadata{
		Name:  path,
		Atime: time.Unix(st.Atim.Unix()),
		Mtime: time.Unix(st.Mtim.Unix()),
		Ctime: createTime(st),
	}

	switch uint32(st.Mode) & unix.S_IFMT {
	case unix.S_IFREG:
		fmeta.Type = fs.Type_File
	case unix.S_IFDIR:
		fmeta.Type = fs.Type_Dir
	case unix.S_IFLNK:
		fmeta.Type = fs.Type_Symlink
	case unix.S_IFIFO:
		fmeta.Type = fs.Type_NamedPipe
	case unix.S_IFSOCK:
		fmeta.Type = fs.Type_Socket
	case unix.S_IFBLK:
		fmeta.Type = fs.Type_Device
	case unix.S_IFCHR:
		fmeta.Type = fs.Type_CharDevice
	default:
		return nil, Errorf(fs.ErrIOUnknown, "fs: %s has unknown file mode %o", path, st.Mode)
	}
	fmeta.Perms = fs.Perms(uint32(st.Mode) & 07777)

	// Copy over the size info... but only for file types.
	//  This is "system dependent" for others.  Knowing how many blocks a dir takes
	//  up is very rarely what we want...
	if fmeta.Type == fs.Type_File {
		fmeta.Size = st.Size
	}
	return fmeta, nil
}

func (afs *osFS) ReadDirNames(path fs.RelPath) ([]string, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return names, fs.NormalizeIOError(err)
	}
	return names, nil
}

// Symlinks are not resolved here: nothing this filesystem places is a
// symlink, and fsOp.PlaceFile refuses to traverse any it finds.
func (afs *osFS) realpath(path fs.RelPath) (string, error) {
	if path.GoesUp() {
		return "", Errorf(fs.ErrBreakout, "fs: invalid path %q: must not depart basepath", path)
	}
	return afs.basePath.Join(path).String(), nil
}

func permsToOs(perms fs.Perms) (mode os.FileMode) {
	mode = os.FileMode(perms & 0777)
	if perms&fs.Perms_Setuid != 0 {
		mode |= os.ModeSetuid
	}
	if perms&fs.Perms_Setgid != 0 {
		mode |= os.ModeSetgid
	}
	if perms&fs.Perms_Sticky != 0 {
		mode |= os.ModeSticky
	}
	return mode
}
