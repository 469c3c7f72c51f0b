package bpkg

import (
	"io/ioutil"
	"os"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/codec"
	"github.com/polydawn/bpkg/lib/tmpres"
	"github.com/polydawn/bpkg/signing"
	"github.com/polydawn/bpkg/tarball"
)

// PackDirectory packs the tree under dir into a package at out.
// Only files and dirs may appear in the tree.
func PackDirectory(dir string, out string, signer signing.Signer, opts Options) (err error) {
	defer normalizeError(&err)
	log := opts.logger("pack", api.ModeDirectory).WithField("path", dir)
	return pack(out, signer, api.ModeDirectory, opts, log, func(scope *tmpres.Scope) (string, error) {
		nested, err := scope.File("contents.tar")
		if err != nil {
			return "", err
		}
		tw, err := tarball.Create(nested.Path())
		if err != nil {
			return "", err
		}
		tw.WithLogger(log)
		if err := tw.AddTree(dir); err != nil {
			tw.Close()
			return "", err
		}
		return nested.Path(), tw.Close()
	})
}

// PackFile packs the bytes of one regular file into a package at out.
func PackFile(file string, out string, signer signing.Signer, opts Options) (err error) {
	defer normalizeError(&err)
	log := opts.logger("pack", api.ModeFile).WithField("path", file)
	return pack(out, signer, api.ModeFile, opts, log, func(*tmpres.Scope) (string, error) {
		fi, err := os.Lstat(file)
		if err != nil {
			return "", Errorf(api.ErrIO, "cannot pack %s: %s", file, err)
		}
		if !fi.Mode().IsRegular() {
			return "", Errorf(api.ErrUsage, "cannot pack %s: not a regular file", file)
		}
		return file, nil
	})
}

// PackString packs an in-memory byte string into a package at out.
// It unpacks the same way a packed file does.
func PackString(content []byte, out string, signer signing.Signer, opts Options) (err error) {
	defer normalizeError(&err)
	log := opts.logger("pack", api.ModeFile)
	return pack(out, signer, api.ModeFile, opts, log, func(scope *tmpres.Scope) (string, error) {
		staged, err := scope.File("contents.data")
		if err != nil {
			return "", err
		}
		if err := ioutil.WriteFile(staged.Path(), content, 0600); err != nil {
			return "", Errorf(api.ErrIO, "cannot stage content: %s", err)
		}
		return staged.Path(), nil
	})
}

/*
	pack runs the shared pipeline.  prepare yields the path of the content
	entry's bytes, allocating any temp files it needs from the scope.

	Every temp file is released on the way out, whatever happened.
	If anything fails after the temps are allocated, out is removed too
	(best effort; a failure to remove is logged, and the original error is
	what gets returned).
*/
func pack(
	out string,
	signer signing.Signer,
	mode api.Mode,
	opts Options,
	log logrus.FieldLogger,
	prepare func(*tmpres.Scope) (string, error),
) (err error) {
	format := opts.Format
	if format == codec.FormatAuto {
		format = codec.FormatLzma
	}
	if err := format.Valid(); err != nil {
		return err
	}
	log = log.WithField("out", out)

	scope := tmpres.NewScope(opts.TempDir, log)
	defer scope.Release()
	sigFile, err := scope.File("signature")
	if err != nil {
		return err
	}
	tarFile, err := scope.File("package.tar")
	if err != nil {
		return err
	}

	// From here on, failure means there must be no package left behind.
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			log.WithError(rmErr).Warn("could not remove partial package")
		}
	}()

	contentPath, err := prepare(scope)
	if err != nil {
		return err
	}
	log.Debug("content ready; signing")

	sig, err := signer.Sign(contentPath)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(sigFile.Path(), sig, 0600); err != nil {
		return Errorf(api.ErrIO, "cannot write signature: %s", err)
	}
	log.Debug("signed; building package tar")

	tw, err := tarball.Create(tarFile.Path())
	if err != nil {
		return err
	}
	tw.WithLogger(log)
	if err := tw.AddFile(contentPath, mode.ContentEntry()); err != nil {
		tw.Close()
		return err
	}
	if err := tw.AddFile(sigFile.Path(), api.EntrySignature); err != nil {
		tw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	log.Debug("package tar built; compressing")

	return compressInto(format, tarFile.Path(), out)
}

// compressInto writes the compressed package straight to its final path.
func compressInto(format codec.Format, tarPath string, out string) error {
	in, err := os.Open(tarPath)
	if err != nil {
		return Errorf(api.ErrIO, "cannot reopen package tar: %s", err)
	}
	defer in.Close()
	outFile, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return Errorf(api.ErrIO, "cannot create package: %s", err)
	}
	if err := codec.Compress(format, in, outFile); err != nil {
		outFile.Close()
		return err
	}
	if err := outFile.Close(); err != nil {
		return Errorf(api.ErrIO, "cannot finish package: %s", err)
	}
	return nil
}
