package bpkg

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/codec"
	"github.com/polydawn/bpkg/fs"
	"github.com/polydawn/bpkg/fs/osfs"
	"github.com/polydawn/bpkg/fsOp"
	"github.com/polydawn/bpkg/signing"
	"github.com/polydawn/bpkg/tarball"
)

/*
	UnpackToDirectory verifies the package at pkg and replaces dest with the
	tree it carries, returning the time the package was signed.

	Nothing at dest is touched unless verification succeeds.  After that,
	dest is removed and recreated before extraction begins, so a failure
	during extraction can leave dest empty or partially populated.
*/
func UnpackToDirectory(pkg string, dest string, verifier signing.Verifier, opts Options) (time.Time, error) {
	f, err := openPackage(pkg)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()
	return UnpackReaderToDirectory(f, dest, verifier, opts)
}

// UnpackToFile verifies the package at pkg and writes its content to dest.
func UnpackToFile(pkg string, dest string, verifier signing.Verifier, opts Options) (time.Time, error) {
	f, err := openPackage(pkg)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()
	return UnpackReaderToFile(f, dest, verifier, opts)
}

// UnpackToString verifies the package at pkg and returns its content.
func UnpackToString(pkg string, verifier signing.Verifier, opts Options) ([]byte, time.Time, error) {
	f, err := openPackage(pkg)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()
	return UnpackReaderToString(f, verifier, opts)
}

// UnpackReaderToDirectory is UnpackToDirectory for a package arriving on a stream.
func UnpackReaderToDirectory(r io.Reader, dest string, verifier signing.Verifier, opts Options) (signedAt time.Time, err error) {
	defer normalizeError(&err)
	log := opts.logger("unpack", api.ModeDirectory).WithField("dest", dest)

	content, signedAt, err := openVerified(r, api.ModeDirectory, verifier, opts, log)
	if err != nil {
		return time.Time{}, err
	}
	// Parse the nested tar before touching dest: a package that verifies
	// but carries garbage still leaves dest alone.
	inner, err := tarball.Load(content)
	if err != nil {
		return time.Time{}, err
	}
	inner.WithLogger(log)

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return time.Time{}, Errorf(api.ErrIO, "bad destination %q: %s", dest, err)
	}
	if err := fsOp.ResetDir(osfs.New(fs.MustAbsolutePath(destAbs)), 0755); err != nil {
		return time.Time{}, Errorf(api.ErrIO, "cannot reset destination: %s", err)
	}
	log.Debug("destination reset; extracting")
	if err := inner.Extract(destAbs); err != nil {
		return time.Time{}, err
	}
	return signedAt, nil
}

// UnpackReaderToFile is UnpackToFile for a package arriving on a stream.
func UnpackReaderToFile(r io.Reader, dest string, verifier signing.Verifier, opts Options) (signedAt time.Time, err error) {
	defer normalizeError(&err)
	log := opts.logger("unpack", api.ModeFile).WithField("dest", dest)

	content, signedAt, err := openVerified(r, api.ModeFile, verifier, opts, log)
	if err != nil {
		return time.Time{}, err
	}
	if err := ioutil.WriteFile(dest, content, 0644); err != nil {
		return time.Time{}, Errorf(api.ErrIO, "cannot write content: %s", err)
	}
	return signedAt, nil
}

// UnpackReaderToString is UnpackToString for a package arriving on a stream.
func UnpackReaderToString(r io.Reader, verifier signing.Verifier, opts Options) (content []byte, signedAt time.Time, err error) {
	defer normalizeError(&err)
	log := opts.logger("unpack", api.ModeFile)

	content, signedAt, err = openVerified(r, api.ModeFile, verifier, opts, log)
	if err != nil {
		return nil, time.Time{}, err
	}
	return content, signedAt, nil
}

func openPackage(pkg string) (*os.File, error) {
	f, err := os.Open(pkg)
	if err != nil {
		return nil, Errorf(api.ErrIO, "cannot open package: %s", err)
	}
	return f, nil
}

// openPackageTar decompresses the whole package into memory and indexes it.
func openPackageTar(r io.Reader, opts Options) (*tarball.Archive, error) {
	var buf bytes.Buffer
	if err := codec.Decompress(opts.Format, r, &buf); err != nil {
		return nil, err
	}
	return tarball.Load(buf.Bytes())
}

/*
	openVerified yields the content entry's bytes, and the signing time,
	only if the signature over them verifies.
*/
func openVerified(r io.Reader, mode api.Mode, verifier signing.Verifier, opts Options, log logrus.FieldLogger) ([]byte, time.Time, error) {
	arc, err := openPackageTar(r, opts)
	if err != nil {
		return nil, time.Time{}, err
	}
	arc.WithLogger(log)
	if n := len(arc.Contents()); n != 2 {
		log.WithField("entries", arc.Contents()).Warn("package has unexpected entries; ignoring the extras")
	}

	content, found, err := arc.Bytes(mode.ContentEntry())
	if err != nil {
		return nil, time.Time{}, err
	}
	if !found {
		return nil, time.Time{}, Errorf(api.ErrEntryMissing, "file missing: %s", mode.ContentEntry())
	}
	sig, found, err := arc.Bytes(api.EntrySignature)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !found {
		return nil, time.Time{}, Errorf(api.ErrEntryMissing, "file missing: %s", api.EntrySignature)
	}
	log.Debug("package opened; verifying")

	signedAt, err := verifier.Verify(content, sig)
	if err != nil {
		return nil, time.Time{}, err
	}
	log.WithField("signedAt", signedAt).Debug("signature verified")
	return content, signedAt, nil
}
