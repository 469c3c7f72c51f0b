package main

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg"
	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/codec"
	"github.com/polydawn/bpkg/config"
	"github.com/polydawn/bpkg/signing"
)

// Content modes as the CLI names them.  "string" is a file package whose
// content travels through argv and stdout instead of the filesystem.
const (
	modeDir    = "dir"
	modeFile   = "file"
	modeString = "string"
)

func demuxMode(dir, file, str bool) (string, error) {
	mode, n := modeFile, 0
	if dir {
		mode, n = modeDir, n+1
	}
	if file {
		mode, n = modeFile, n+1
	}
	if str {
		mode, n = modeString, n+1
	}
	if n > 1 {
		return "", Errorf(api.ErrUsage, "at most one of --dir, --file, --string may be given")
	}
	return mode, nil
}

type packFunc func(content string, stdin io.Reader, out string, signer signing.Signer, opts bpkg.Options) error

func demuxPackTool(mode string) packFunc {
	switch mode {
	case modeDir:
		return func(content string, _ io.Reader, out string, signer signing.Signer, opts bpkg.Options) error {
			return bpkg.PackDirectory(content, out, signer, opts)
		}
	case modeFile:
		return func(content string, _ io.Reader, out string, signer signing.Signer, opts bpkg.Options) error {
			return bpkg.PackFile(content, out, signer, opts)
		}
	case modeString:
		return func(content string, stdin io.Reader, out string, signer signing.Signer, opts bpkg.Options) error {
			body := []byte(content)
			if content == "-" {
				var err error
				body, err = ioutil.ReadAll(stdin)
				if err != nil {
					return Errorf(api.ErrIO, "reading stdin: %s", err)
				}
			}
			return bpkg.PackString(body, out, signer, opts)
		}
	default:
		panic("unknown mode " + mode)
	}
}

type unpackFunc func(r io.Reader, dest string, verifier signing.Verifier, opts bpkg.Options) (Result, error)

func demuxUnpackTool(mode string) unpackFunc {
	switch mode {
	case modeDir:
		return func(r io.Reader, dest string, verifier signing.Verifier, opts bpkg.Options) (res Result, err error) {
			if dest == "" {
				return res, Errorf(api.ErrUsage, "unpacking a directory needs a destination")
			}
			signedAt, err := bpkg.UnpackReaderToDirectory(r, dest, verifier, opts)
			res.SetSignedAt(signedAt)
			res.Path = dest
			return res, err
		}
	case modeFile:
		return func(r io.Reader, dest string, verifier signing.Verifier, opts bpkg.Options) (res Result, err error) {
			if dest == "" {
				return res, Errorf(api.ErrUsage, "unpacking a file needs a destination")
			}
			signedAt, err := bpkg.UnpackReaderToFile(r, dest, verifier, opts)
			res.SetSignedAt(signedAt)
			res.Path = dest
			return res, err
		}
	case modeString:
		return func(r io.Reader, _ string, verifier signing.Verifier, opts bpkg.Options) (res Result, err error) {
			content, signedAt, err := bpkg.UnpackReaderToString(r, verifier, opts)
			res.SetSignedAt(signedAt)
			res.Content = string(content)
			return res, err
		}
	default:
		panic("unknown mode " + mode)
	}
}

func openInput(pth string, stdin io.Reader) (io.ReadCloser, error) {
	if pth == "-" {
		return ioutil.NopCloser(stdin), nil
	}
	f, err := os.Open(pth)
	if err != nil {
		return nil, Errorf(api.ErrIO, "cannot open package: %s", err)
	}
	return f, nil
}

func parseFormat(s string) (codec.Format, error) {
	if s == "" {
		return config.GetDefaultFormat()
	}
	return codec.ParseFormat(s)
}

// defaultOut names a package after its content, e.g. "photos" packs to
// "photos.xz".  String content has no path to borrow.
func defaultOut(mode string, content string, format codec.Format) (string, error) {
	if mode == modeString || content == "-" {
		return "", Errorf(api.ErrUsage, "packing a string needs an output path")
	}
	return filepath.Clean(content) + format.Ext(), nil
}

func executePack(cli baseCLI, stdin io.Reader, log logrus.FieldLogger) (Result, error) {
	mode, err := demuxMode(cli.PackCLI.Dir, cli.PackCLI.File, cli.PackCLI.String)
	if err != nil {
		return Result{}, err
	}
	format, err := parseFormat(cli.PackCLI.Format)
	if err != nil {
		return Result{}, err
	}
	if err := format.Valid(); err != nil {
		return Result{}, err
	}
	out := cli.PackCLI.Out
	if out == "" {
		if out, err = defaultOut(mode, cli.PackCLI.Content, format); err != nil {
			return Result{}, err
		}
	}
	signer, err := signing.NewSigner(signing.Identity{
		KeyPath:  cli.PackCLI.Key,
		CertPath: cli.PackCLI.Cert,
		Password: cli.PackCLI.Password,
	})
	if err != nil {
		return Result{}, err
	}
	opts := bpkg.Options{
		Format:  format,
		TempDir: config.GetTempBasePath(),
		Log:     log,
	}
	err = demuxPackTool(mode)(cli.PackCLI.Content, stdin, out, signer, opts)
	return Result{Mode: mode, Path: out}, err
}

func executeUnpack(cli baseCLI, stdin io.Reader, log logrus.FieldLogger) (Result, error) {
	mode, err := demuxMode(cli.UnpackCLI.Dir, cli.UnpackCLI.File, cli.UnpackCLI.String)
	if err != nil {
		return Result{}, err
	}
	format, err := codec.ParseFormat(cli.UnpackCLI.Format)
	if err != nil {
		return Result{}, err
	}
	verifier, err := signing.NewVerifier(cli.UnpackCLI.Trust)
	if err != nil {
		return Result{}, err
	}
	r, err := openInput(cli.UnpackCLI.Package, stdin)
	if err != nil {
		return Result{}, err
	}
	defer r.Close()
	opts := bpkg.Options{
		Format:  format,
		TempDir: config.GetTempBasePath(),
		Log:     log,
	}
	result, err := demuxUnpackTool(mode)(r, cli.UnpackCLI.Dest, verifier, opts)
	result.Mode = mode
	if err != nil {
		return Result{Mode: mode}, err
	}
	return result, nil
}

func executeLs(cli baseCLI, stdin io.Reader, log logrus.FieldLogger) (Result, error) {
	format, err := codec.ParseFormat(cli.LsCLI.Format)
	if err != nil {
		return Result{}, err
	}
	r, err := openInput(cli.LsCLI.Package, stdin)
	if err != nil {
		return Result{}, err
	}
	defer r.Close()
	listing, err := bpkg.List(r, bpkg.Options{Format: format, Log: log})
	if err != nil {
		return Result{}, err
	}
	result := Result{Mode: string(listing.Mode)}
	result.SetEntries(listing.Entries)
	return result, nil
}
