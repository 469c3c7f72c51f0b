/*
	Vocabulary shared by every layer of bpkg: the names of the entries inside
	a package, the content modes, and the error categories.

	A package ("bpkg") is a compressed tar holding exactly two entries:
	the content (either a nested tar of a directory tree, or the raw bytes
	of a single file) and a detached signature over that content.
*/
package api

// Names of the two entries inside the decompressed package archive.
const (
	EntryContentsTar  = "contents.tar"   // content entry for directory mode: a nested tar.
	EntryContentsData = "contents.data"  // content entry for single-file and string modes.
	EntrySignature    = "signature.mime" // detached signature over the content entry's bytes.
)

// Mode distinguishes the two content shapes a package may carry.
type Mode string

const (
	ModeDirectory = Mode("dir")
	ModeFile      = Mode("file")
)

// ContentEntry returns the content entry name used for the mode.
func (m Mode) ContentEntry() string {
	switch m {
	case ModeDirectory:
		return EntryContentsTar
	case ModeFile:
		return EntryContentsData
	default:
		panic("invalid bpkg mode " + string(m))
	}
}
