package tarball

import (
	"archive/tar"
	"path"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/fs"
)

// Mutate tar.Header fields to match the given fmeta.
// Headers are always PAX, so access and change times come along.
func metadataToTarHdr(fmeta *fs.Metadata, hdr *tar.Header) {
	hdr.Format = tar.FormatPAX
	hdr.Name = fmeta.Name.Bare()
	if fmeta.Type == fs.Type_Dir {
		hdr.Name += "/"
	}
	hdr.Typeflag = fsTypeToTarType(fmeta.Type)
	hdr.Mode = int64(fmeta.Perms)
	hdr.Size = fmeta.Size
	hdr.ModTime = fmeta.Mtime
	hdr.AccessTime = fmeta.Atime
	hdr.ChangeTime = fmeta.Ctime
}

func fsTypeToTarType(fsType fs.Type) byte {
	switch fsType {
	case fs.Type_File:
		return tar.TypeReg
	case fs.Type_Dir:
		return tar.TypeDir
	default:
		// Callers reject everything else before getting here.
		panic(Errorf(api.ErrUnsupportedEntry, "invalid fs.Type %q for a tar header", fsType))
	}
}

// Mutate Entry fields to match the given tar header.
// Does not check for names that go above '.'; Extract does that.
// Kinds we do not model (contiguous, sparse, volume headers) are kept as
// Type_Other, so only extracting them fails.
func tarHdrToEntry(hdr *tar.Header, ent *Entry) {
	ent.Name = cleanName(hdr.Name)
	ent.Type = tarTypeToFsType(hdr.Typeflag)
	ent.Perms = fs.Perms(hdr.Mode & 07777)
	ent.Size = hdr.Size
	ent.Mtime = hdr.ModTime
	ent.Atime = hdr.AccessTime
	ent.Ctime = hdr.ChangeTime
}

func tarTypeToFsType(tarType byte) fs.Type {
	switch tarType {
	case tar.TypeReg, tar.TypeRegA:
		return fs.Type_File
	case tar.TypeLink:
		return fs.Type_Hardlink
	case tar.TypeSymlink:
		return fs.Type_Symlink
	case tar.TypeChar:
		return fs.Type_CharDevice
	case tar.TypeBlock:
		return fs.Type_Device
	case tar.TypeDir:
		return fs.Type_Dir
	case tar.TypeFifo:
		return fs.Type_NamedPipe
	// Notice that tar does not have a type for socket files
	default:
		return fs.Type_Other
	}
}

// Names are kept in clean form: no leading "./", no trailing "/".
// The archive root ("./") becomes "".
func cleanName(name string) string {
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	return name
}
