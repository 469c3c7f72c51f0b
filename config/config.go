/*
	Helpers for loading contextual config.

	Config for bpkg means "things that are the host machine operator's concerns".
	So, things like where temp files may go and how chatty logging should be
	are considered "config", as opposed to parameters for function calls.
	(Library callers never read these; they pass `bpkg.Options` explicitly.
	Only the command driver consults the environment, so that embedding bpkg
	in a larger program doesn't quietly inherit that program's env.)
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/codec"
)

/*
	Return the directory under which pack and unpack allocate their
	temporary files.

	The default value is `os.TempDir()`;
	this can be overriden by the `BPKG_TMPDIR` environment variable.
*/
func GetTempBasePath() string {
	pth := os.Getenv("BPKG_TMPDIR")
	if pth == "" {
		return os.TempDir()
	}
	pth, err := filepath.Abs(pth)
	if err != nil {
		panic(err)
	}
	return pth
}

/*
	Return the compression format used when packing without an explicit choice.

	The default value is `lzma`;
	this can be overriden by the `BPKG_FORMAT` environment variable
	(`lzma` or `xz`).  "auto" is meaningless for compression and is rejected.
*/
func GetDefaultFormat() (codec.Format, error) {
	s := os.Getenv("BPKG_FORMAT")
	if s == "" {
		return codec.FormatLzma, nil
	}
	f, err := codec.ParseFormat(s)
	if err != nil {
		return f, Errorf(api.ErrUsage, "BPKG_FORMAT: %s", err)
	}
	if err := f.Valid(); err != nil {
		return f, Errorf(api.ErrUsage, "BPKG_FORMAT: %s", err)
	}
	return f, nil
}

/*
	Return the level at which the command driver logs to stderr.

	The default value is `warning`;
	this can be overriden by the `BPKG_LOG_LEVEL` environment variable,
	which takes any level name logrus understands.
*/
func GetLogLevel() (logrus.Level, error) {
	s := os.Getenv("BPKG_LOG_LEVEL")
	if s == "" {
		return logrus.WarnLevel, nil
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.WarnLevel, Errorf(api.ErrUsage, "BPKG_LOG_LEVEL: %s", err)
	}
	return lvl, nil
}
