package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/config"
)

/*
	Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	Output  string // Output api format, eg. json
	PackCLI struct {
		Dir, File, String bool   // Content mode; at most one
		Key               string // Private key or PKCS#12 bundle
		Cert              string // Certificate matching the key (PEM keys only)
		Password          string // Decrypts the key or bundle
		Format            string // Compression format; empty means config default
		Content           string // Directory, file path, or literal string ("-" for stdin)
		Out               string // Package path to write; may be derived from Content
	}
	UnpackCLI struct {
		Dir, File, String bool   // Content mode; at most one
		Trust             string // Trust anchor cert; empty means the platform store
		Format            string // Compression format, or auto
		Package           string // Package path ("-" for stdin)
		Dest              string // Destination dir or file; unused for string mode
	}
	LsCLI struct {
		Format  string
		Package string
	}
}

func configurePack(cli *baseCLI, appPack *kingpin.CmdClause) {
	appPack.Arg("content", "Directory or file to pack, or the literal string with --string ('-' reads stdin)").
		Required().
		StringVar(&cli.PackCLI.Content)
	appPack.Arg("out", "Package path to write; defaults to the content path plus the format's extension").
		StringVar(&cli.PackCLI.Out)

	appPack.Flag("dir", "Pack a directory tree").
		BoolVar(&cli.PackCLI.Dir)
	appPack.Flag("file", "Pack a single file (the default)").
		BoolVar(&cli.PackCLI.File)
	appPack.Flag("string", "Pack the content argument itself").
		BoolVar(&cli.PackCLI.String)

	appPack.Flag("key", "Signing key (PEM) or identity bundle (.p12, .pfx)").
		Required().
		StringVar(&cli.PackCLI.Key)
	appPack.Flag("cert", "Signing certificate (PEM); not needed for bundles").
		StringVar(&cli.PackCLI.Cert)
	appPack.Flag("password", "Password for an encrypted key or bundle").
		Envar("BPKG_PASSWORD").
		StringVar(&cli.PackCLI.Password)
	appPack.Flag("format", "Compression format [lzma, xz]; defaults to $BPKG_FORMAT or lzma").
		StringVar(&cli.PackCLI.Format)
}

func configureUnpack(cli *baseCLI, appUnpack *kingpin.CmdClause) {
	appUnpack.Arg("package", "Package to unpack ('-' reads stdin)").
		Required().
		StringVar(&cli.UnpackCLI.Package)
	appUnpack.Arg("dest", "Destination directory (replaced) or file").
		StringVar(&cli.UnpackCLI.Dest)

	appUnpack.Flag("dir", "Unpack a directory package").
		BoolVar(&cli.UnpackCLI.Dir)
	appUnpack.Flag("file", "Unpack a file package (the default)").
		BoolVar(&cli.UnpackCLI.File)
	appUnpack.Flag("string", "Unpack a file package to stdout").
		BoolVar(&cli.UnpackCLI.String)

	appUnpack.Flag("trust", "Trust anchor certificate (PEM); defaults to the platform store").
		StringVar(&cli.UnpackCLI.Trust)
	appUnpack.Flag("format", "Compression format [auto, lzma, xz]").
		Default("auto").
		StringVar(&cli.UnpackCLI.Format)
}

func configureLs(cli *baseCLI, appLs *kingpin.CmdClause) {
	appLs.Arg("package", "Package to list ('-' reads stdin)").
		Required().
		StringVar(&cli.LsCLI.Package)
	appLs.Flag("format", "Compression format [auto, lzma, xz]").
		Default("auto").
		StringVar(&cli.LsCLI.Format)
}

func main() {
	exitCode := Main(os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) api.ExitCode {
	cli := baseCLI{}

	app := kingpin.New("bpkg", "Signed packages")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("output", "Output api format").
		Default(FmtDumb).
		EnumVar(&cli.Output, FmtJson, FmtDumb)

	appPack := app.Command("pack", "sign content and pack it into a package")
	configurePack(&cli, appPack)

	appUnpack := app.Command("unpack", "verify a package and unpack its content")
	configureUnpack(&cli, appUnpack)

	appLs := app.Command("ls", "list a package's content without verifying it")
	configureLs(&cli, appLs)

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d\n", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return api.ExitUsage
	}
	if termErr != nil {
		fmt.Fprintln(stderr, termErr)
		return api.ExitUsage
	}

	log, err := newLogger(stderr)
	if err != nil {
		SerializeResult(cli.Output, Result{}, err, stdout, stderr)
		return exitCodeFor(err)
	}

	var result Result
	switch cmd {
	case appPack.FullCommand():
		result, err = executePack(cli, stdin, log)
	case appUnpack.FullCommand():
		result, err = executeUnpack(cli, stdin, log)
	case appLs.FullCommand():
		result, err = executeLs(cli, stdin, log)
	}
	result.cmd = cmd
	SerializeResult(cli.Output, result, err, stdout, stderr)
	return exitCodeFor(err)
}

func newLogger(stderr io.Writer) (logrus.FieldLogger, error) {
	lvl, err := config.GetLogLevel()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.Out = stderr
	log.Level = lvl
	return log, nil
}
