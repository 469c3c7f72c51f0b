/*
	Package bpkg packs content and a detached signature over it into one
	compressed file, and unpacks such files again, refusing to write
	anything out unless the signature verifies.

	A package is a compressed tar of exactly two entries: the content
	(a nested tar for a directory, or the raw bytes for a file or string)
	and "signature.mime", a detached CMS signature over those content bytes.

	Every call is synchronous and owns its streams and temp files for its
	full duration.  Calls may run concurrently as long as they do not share
	output paths or destinations.

	Errors returned from this package always carry an api.ErrorCategory
	(see `errcat.Category`).
*/
package bpkg

import (
	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/codec"
)

// Options carries the per-call knobs shared by pack and unpack.
// The zero value is usable.
type Options struct {
	// Compression format.  On pack, FormatAuto means lzma.
	// On unpack, FormatAuto sniffs the stream; an explicit format must
	// match what the package was packed with.
	Format codec.Format

	// Base dir for temp files.  Empty means the OS default.
	TempDir string

	// Logger for stage transitions and secondary cleanup failures.
	// Nil means the logrus standard logger.
	Log logrus.FieldLogger
}

func (o Options) logger(op string, mode api.Mode) logrus.FieldLogger {
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{
		"op":     op,
		"mode":   mode,
		"format": o.Format,
	})
}

// Errors bubbling up from below the pipeline (fs categories, raw errors)
// are reported as api.ErrIO, so every error we return has exactly one
// category from our own vocabulary.
func normalizeError(err *error) {
	if *err == nil {
		return
	}
	if _, ok := Category(*err).(api.ErrorCategory); ok {
		return
	}
	*err = Errorf(api.ErrIO, "%s", *err)
}
