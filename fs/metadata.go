package fs

import (
	"time"
)

type Metadata struct {
	Name  RelPath   // filename
	Type  Type      // type enum
	Perms Perms     // permission bits
	Size  int64     // length in bytes; zero for anything but files
	Atime time.Time // last access time
	Mtime time.Time // modified time
	Ctime time.Time // created time where the platform keeps one, else the inode change time
}

type Type string

const (
	Type_Invalid    Type = ""
	Type_File       Type = "F"
	Type_Dir        Type = "D"
	Type_Symlink    Type = "L"
	Type_NamedPipe  Type = "P"
	Type_Socket     Type = "S"
	Type_Device     Type = "B"
	Type_CharDevice Type = "C"
	Type_Hardlink   Type = "H"
	Type_Other      Type = "?" // a kind some archive format has that we do not model
)

func (t Type) String() string {
	switch t {
	case Type_File:
		return "file"
	case Type_Dir:
		return "dir"
	case Type_Symlink:
		return "symlink"
	case Type_NamedPipe:
		return "fifo"
	case Type_Socket:
		return "socket"
	case Type_Device:
		return "device"
	case Type_CharDevice:
		return "chardevice"
	case Type_Hardlink:
		return "hardlink"
	case Type_Other:
		return "other"
	default:
		return "invalid"
	}
}

type Perms uint16

const (
	Perms_Setuid Perms = 04000
	Perms_Setgid Perms = 02000
	Perms_Sticky Perms = 01000
)

var (
	// Placement uses this atime when a record doesn't carry one.
	DefaultAtime = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
)
