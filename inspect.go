package bpkg

import (
	"io"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/tarball"
)

// Listing describes what a package carries.
type Listing struct {
	Mode    api.Mode
	Entries []tarball.Entry // the nested tree for directory mode; the single content entry otherwise
}

/*
	List reports a package's mode and content entries.

	The signature is NOT checked: a listing says what a package claims to
	hold, not that anyone vouched for it.
*/
func List(r io.Reader, opts Options) (listing Listing, err error) {
	defer normalizeError(&err)
	arc, err := openPackageTar(r, opts)
	if err != nil {
		return Listing{}, err
	}
	for _, ent := range arc.Entries() {
		switch ent.Name {
		case api.EntryContentsTar:
			nested, _, err := arc.Bytes(api.EntryContentsTar)
			if err != nil {
				return Listing{}, err
			}
			inner, err := tarball.Load(nested)
			if err != nil {
				return Listing{}, err
			}
			return Listing{Mode: api.ModeDirectory, Entries: inner.Entries()}, nil
		case api.EntryContentsData:
			return Listing{Mode: api.ModeFile, Entries: []tarball.Entry{ent}}, nil
		}
	}
	return Listing{}, Errorf(api.ErrEntryMissing, "file missing: neither %s nor %s", api.EntryContentsTar, api.EntryContentsData)
}
