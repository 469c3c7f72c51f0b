package bpkg

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"
	"golang.org/x/sync/errgroup"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/codec"
	"github.com/polydawn/bpkg/fs"
	"github.com/polydawn/bpkg/fs/osfs"
	"github.com/polydawn/bpkg/signing"
	"github.com/polydawn/bpkg/tarball"
	. "github.com/polydawn/bpkg/testutil"
)

type fixture struct {
	dir      fs.AbsolutePath
	signer   signing.Signer
	verifier signing.Verifier
	opts     Options
}

func newFixture(tmpDir fs.AbsolutePath) fixture {
	keyPath, certPath := WriteIdentity(tmpDir.String(), "packer")
	signer, err := signing.NewSigner(signing.Identity{KeyPath: keyPath, CertPath: certPath})
	So(err, ShouldBeNil)
	verifier, err := signing.NewVerifier(certPath)
	So(err, ShouldBeNil)
	temps := tmpDir.Join(fs.MustRelPath("temps"))
	So(os.Mkdir(temps.String(), 0755), ShouldBeNil)
	return fixture{
		dir:      tmpDir,
		signer:   signer,
		verifier: verifier,
		opts:     Options{TempDir: temps.String()},
	}
}

func (f fixture) path(name string) string {
	return f.dir.Join(fs.MustRelPath(name)).String()
}

func (f fixture) shouldHaveNoTemps() {
	names, err := ioutil.ReadDir(f.opts.TempDir)
	So(err, ShouldBeNil)
	So(names, ShouldHaveLength, 0)
}

type failingSigner struct{}

func (failingSigner) Sign(string) ([]byte, error) {
	return nil, errcat.Errorf(api.ErrSigning, "no signing today")
}

func TestPackageScenario(t *testing.T) {
	Convey("Packing {a.txt, sub/b.txt} and unpacking it again", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			src := tmpDir.Join(fs.MustRelPath("src"))
			WriteTree(src, Tree{"a.txt": "hello", "sub/": "", "sub/b.txt": "world"})

			before := time.Now().Add(-time.Second)
			So(PackDirectory(src.String(), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
			after := time.Now().Add(time.Second)
			f.shouldHaveNoTemps()

			dest := f.path("dest")
			So(os.Mkdir(dest, 0755), ShouldBeNil)
			signedAt, err := UnpackToDirectory(f.path("pkg.bpkg"), dest, f.verifier, f.opts)
			So(err, ShouldBeNil)
			So(signedAt, ShouldHappenOnOrBetween, before, after)

			body, err := ioutil.ReadFile(filepath.Join(dest, "a.txt"))
			So(err, ShouldBeNil)
			So(string(body), ShouldEqual, "hello")
			body, err = ioutil.ReadFile(filepath.Join(dest, "sub/b.txt"))
			So(err, ShouldBeNil)
			So(string(body), ShouldEqual, "world")
			f.shouldHaveNoTemps()
		})
	})
}

func TestDirectoryRoundtrip(t *testing.T) {
	for _, format := range []codec.Format{codec.FormatLzma, codec.FormatXz} {
		Convey("Directory packages roundtrip: "+format.String(), t, func() {
			WithTmpdir(func(tmpDir fs.AbsolutePath) {
				f := newFixture(tmpDir)
				f.opts.Format = format
				src := tmpDir.Join(fs.MustRelPath("src"))
				WriteTree(src, Tree{
					"a.txt":        "hello",
					"empty":        "",
					"sub/":         "",
					"sub/b.txt":    "world",
					"sub/deeper/":  "",
					"sub/deeper/c": string(bytes.Repeat([]byte{0, 1, 2, 3}, 40000)),
				})
				mtime := time.Unix(1400000000, 0)
				So(os.Chmod(src.Join(fs.MustRelPath("sub/b.txt")).String(), 0600), ShouldBeNil)
				So(os.Chmod(src.Join(fs.MustRelPath("sub/deeper")).String(), 0750), ShouldBeNil)
				for _, name := range []string{"a.txt", "empty", "sub/b.txt", "sub/deeper/c", "sub/deeper", "sub"} {
					So(os.Chtimes(src.Join(fs.MustRelPath(name)).String(), mtime, mtime), ShouldBeNil)
				}
				So(PackDirectory(src.String(), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)

				Convey("unpacking restores paths, bytes, perms, and mtimes", func() {
					dest := tmpDir.Join(fs.MustRelPath("dest"))
					_, err := UnpackToDirectory(f.path("pkg.bpkg"), dest.String(), f.verifier, f.opts)
					So(err, ShouldBeNil)
					srcFS, destFS := osfs.New(src), osfs.New(dest)
					for _, name := range []string{"a.txt", "empty", "sub", "sub/b.txt", "sub/deeper", "sub/deeper/c"} {
						want := ShouldStat(srcFS, fs.MustRelPath(name))
						got := ShouldStat(destFS, fs.MustRelPath(name))
						So(got.Type, ShouldEqual, want.Type)
						So(got.Perms, ShouldEqual, want.Perms)
						So(got.Size, ShouldEqual, want.Size)
						So(got.Mtime, ShouldEqual, want.Mtime)
					}
					So(ScanTree(dest), ShouldResemble, ScanTree(src))
				})
				Convey("the format is sniffed when not given", func() {
					dest := tmpDir.Join(fs.MustRelPath("dest"))
					f.opts.Format = codec.FormatAuto
					_, err := UnpackToDirectory(f.path("pkg.bpkg"), dest.String(), f.verifier, f.opts)
					So(err, ShouldBeNil)
					So(ScanTree(dest), ShouldResemble, ScanTree(src))
				})
				Convey("unpacking replaces what was at the destination", func() {
					dest := tmpDir.Join(fs.MustRelPath("dest"))
					WriteTree(dest, Tree{"stale": "old", "sub/": "", "sub/stale": "old"})
					_, err := UnpackToDirectory(f.path("pkg.bpkg"), dest.String(), f.verifier, f.opts)
					So(err, ShouldBeNil)
					So(ScanTree(dest), ShouldResemble, ScanTree(src))
				})
				Convey("listing shows the tree without unpacking it", func() {
					pkg, err := os.Open(f.path("pkg.bpkg"))
					So(err, ShouldBeNil)
					defer pkg.Close()
					listing, err := List(pkg, f.opts)
					So(err, ShouldBeNil)
					So(listing.Mode, ShouldEqual, api.ModeDirectory)
					var names []string
					for _, ent := range listing.Entries {
						names = append(names, ent.Name)
					}
					So(names, ShouldResemble, []string{"a.txt", "empty", "sub", "sub/b.txt", "sub/deeper", "sub/deeper/c"})
				})
			})
		})
	}
}

func TestStringAndFileRoundtrip(t *testing.T) {
	Convey("String and file packages:", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			for i, content := range [][]byte{
				{},
				[]byte("plain"),
				{0, 0, 'x', 0, 0xFF, 0},
				bytes.Repeat([]byte("0123456789"), 100000),
			} {
				Convey(fmt.Sprintf("string #%d roundtrips byte for byte", i), func() {
					So(PackString(content, f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
					got, _, err := UnpackToString(f.path("pkg.bpkg"), f.verifier, f.opts)
					So(err, ShouldBeNil)
					So(len(got), ShouldEqual, len(content))
					So(bytes.Equal(got, content), ShouldBeTrue)
					f.shouldHaveNoTemps()
				})
			}
			Convey("a file roundtrips into a file", func() {
				So(ioutil.WriteFile(f.path("in.bin"), []byte("file body\x00"), 0644), ShouldBeNil)
				So(PackFile(f.path("in.bin"), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
				_, err := UnpackToFile(f.path("pkg.bpkg"), f.path("out.bin"), f.verifier, f.opts)
				So(err, ShouldBeNil)
				body, err := ioutil.ReadFile(f.path("out.bin"))
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, "file body\x00")

				Convey("and it lists as a single entry", func() {
					pkg, err := os.Open(f.path("pkg.bpkg"))
					So(err, ShouldBeNil)
					defer pkg.Close()
					listing, err := List(pkg, f.opts)
					So(err, ShouldBeNil)
					So(listing.Mode, ShouldEqual, api.ModeFile)
					So(listing.Entries, ShouldHaveLength, 1)
					So(listing.Entries[0].Size, ShouldEqual, 10)
				})
			})
			Convey("packing a dir as a file is refused", func() {
				So(os.Mkdir(f.path("adir"), 0755), ShouldBeNil)
				err := PackFile(f.path("adir"), f.path("pkg.bpkg"), f.signer, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrUsage)
				_, err = os.Stat(f.path("pkg.bpkg"))
				So(os.IsNotExist(err), ShouldBeTrue)
			})
			Convey("a string package has no tree to unpack", func() {
				So(PackString([]byte("x"), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
				dest := tmpDir.Join(fs.MustRelPath("dest"))
				WriteTree(dest, Tree{"keep": "me"})
				_, err := UnpackToDirectory(f.path("pkg.bpkg"), dest.String(), f.verifier, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrEntryMissing)
				So(ScanTree(dest), ShouldResemble, Tree{"keep": "me"})
			})
		})
	})
}

func TestTamperDetection(t *testing.T) {
	for _, format := range []codec.Format{codec.FormatLzma, codec.FormatXz} {
		Convey("Flipping bytes in a package is caught: "+format.String(), t, func() {
			WithTmpdir(func(tmpDir fs.AbsolutePath) {
				f := newFixture(tmpDir)
				f.opts.Format = format
				src := tmpDir.Join(fs.MustRelPath("src"))
				WriteTree(src, Tree{"a.txt": "hello", "sub/": "", "sub/b.txt": "world"})
				So(PackDirectory(src.String(), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
				pristine, err := ioutil.ReadFile(f.path("pkg.bpkg"))
				So(err, ShouldBeNil)

				dest := tmpDir.Join(fs.MustRelPath("dest"))
				WriteTree(dest, Tree{"keep": "me"})
				for _, at := range []int{len(pristine) / 3, len(pristine) / 2, len(pristine) * 2 / 3} {
					tampered := append([]byte{}, pristine...)
					tampered[at] ^= 0x10
					_, err := UnpackReaderToDirectory(bytes.NewReader(tampered), dest.String(), f.verifier, f.opts)
					So(err, ShouldNotBeNil)
					So(ScanTree(dest), ShouldResemble, Tree{"keep": "me"})
				}
			})
		})
	}
	Convey("A signer we do not trust is rejected before anything is written", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			So(PackString([]byte("x"), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
			_, otherCert := WriteIdentity(tmpDir.String(), "stranger")
			stranger, err := signing.NewVerifier(otherCert)
			So(err, ShouldBeNil)
			_, err = UnpackToFile(f.path("pkg.bpkg"), f.path("out"), stranger, f.opts)
			So(err, errcat.ErrorShouldHaveCategory, api.ErrTrustRejected)
			_, err = os.Stat(f.path("out"))
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})
	Convey("Unpacking with the wrong format tag fails in the codec", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			f.opts.Format = codec.FormatXz
			So(PackString([]byte("x"), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
			f.opts.Format = codec.FormatLzma
			_, _, err := UnpackToString(f.path("pkg.bpkg"), f.verifier, f.opts)
			So(err, errcat.ErrorShouldHaveCategory, api.ErrCodec)
		})
	})
}

func TestPackFailureCleanup(t *testing.T) {
	Convey("Failed packs leave no package and no temps", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			src := tmpDir.Join(fs.MustRelPath("src"))
			WriteTree(src, Tree{"a.txt": "hello"})

			Convey("when signing fails, even a package already at the path is removed", func() {
				So(ioutil.WriteFile(f.path("pkg.bpkg"), []byte("older"), 0644), ShouldBeNil)
				err := PackDirectory(src.String(), f.path("pkg.bpkg"), failingSigner{}, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrSigning)
				_, err = os.Stat(f.path("pkg.bpkg"))
				So(os.IsNotExist(err), ShouldBeTrue)
				f.shouldHaveNoTemps()
			})
			Convey("when the content is missing", func() {
				err := PackDirectory(f.path("nope"), f.path("pkg.bpkg"), f.signer, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
				_, err = os.Stat(f.path("pkg.bpkg"))
				So(os.IsNotExist(err), ShouldBeTrue)
				f.shouldHaveNoTemps()
			})
			Convey("when the tree holds something unpackable", func() {
				So(os.Symlink("a.txt", src.Join(fs.MustRelPath("lnk")).String()), ShouldBeNil)
				err := PackDirectory(src.String(), f.path("pkg.bpkg"), f.signer, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrUnsupportedEntry)
				f.shouldHaveNoTemps()
			})
			Convey("when the output cannot be created", func() {
				err := PackDirectory(src.String(), f.path("no/such/dir/pkg.bpkg"), f.signer, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
				f.shouldHaveNoTemps()
			})
			Convey("when the temp dir is unusable, nothing happens at all", func() {
				f.opts.TempDir = f.path("no/such/temps")
				So(ioutil.WriteFile(f.path("pkg.bpkg"), []byte("older"), 0644), ShouldBeNil)
				err := PackDirectory(src.String(), f.path("pkg.bpkg"), f.signer, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
				body, err := ioutil.ReadFile(f.path("pkg.bpkg"))
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, "older")
			})
		})
	})
}

// Builds a package by hand, around a nested tar the pipeline would never
// produce itself.
func handmadePackage(f fixture, out string, hdrs ...*tar.Header) {
	var nested bytes.Buffer
	tw := tar.NewWriter(&nested)
	for _, hdr := range hdrs {
		So(tw.WriteHeader(hdr), ShouldBeNil)
	}
	So(tw.Close(), ShouldBeNil)
	nestedPath := f.path("handmade-contents.tar")
	So(ioutil.WriteFile(nestedPath, nested.Bytes(), 0644), ShouldBeNil)
	sig, err := f.signer.Sign(nestedPath)
	So(err, ShouldBeNil)

	outer, err := tarball.Create(f.path("handmade-package.tar"))
	So(err, ShouldBeNil)
	So(outer.AddFile(nestedPath, api.EntryContentsTar), ShouldBeNil)
	So(outer.AddBytes(api.EntrySignature, sig, time.Now()), ShouldBeNil)
	So(outer.Close(), ShouldBeNil)

	in, err := os.Open(f.path("handmade-package.tar"))
	So(err, ShouldBeNil)
	defer in.Close()
	pkg, err := os.Create(out)
	So(err, ShouldBeNil)
	defer pkg.Close()
	So(codec.Compress(codec.FormatLzma, in, pkg), ShouldBeNil)
}

func TestExtractionFailure(t *testing.T) {
	Convey("A verified package whose tree cannot be extracted", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			handmadePackage(f, f.path("pkg.bpkg"),
				&tar.Header{Name: "lnk", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd", Mode: 0777},
			)
			dest := tmpDir.Join(fs.MustRelPath("dest"))
			WriteTree(dest, Tree{"keep": "me"})

			Convey("fails after the destination was already cleared", func() {
				_, err := UnpackToDirectory(f.path("pkg.bpkg"), dest.String(), f.verifier, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrUnsupportedEntry)
				So(ScanTree(dest), ShouldResemble, Tree{})
			})
		})
	})
	Convey("A destination whose parent refuses writes", t,
		Requires(RequiresPermissionsEnforced, func() {
			WithTmpdir(func(tmpDir fs.AbsolutePath) {
				f := newFixture(tmpDir)
				src := tmpDir.Join(fs.MustRelPath("src"))
				WriteTree(src, Tree{"a.txt": "alpha"})
				So(PackDirectory(src.String(), f.path("pkg.bpkg"), f.signer, f.opts), ShouldBeNil)
				locked := tmpDir.Join(fs.MustRelPath("locked"))
				So(os.Mkdir(locked.String(), 0555), ShouldBeNil)
				defer os.Chmod(locked.String(), 0755)

				_, err := UnpackToDirectory(f.path("pkg.bpkg"), filepath.Join(locked.String(), "dest"), f.verifier, f.opts)
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
				f.shouldHaveNoTemps()
			})
		}),
	)
	Convey("A package missing its signature", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			f := newFixture(tmpDir)
			outer, err := tarball.Create(f.path("outer.tar"))
			So(err, ShouldBeNil)
			So(outer.AddBytes(api.EntryContentsData, []byte("unsigned"), time.Now()), ShouldBeNil)
			So(outer.Close(), ShouldBeNil)
			in, err := os.Open(f.path("outer.tar"))
			So(err, ShouldBeNil)
			defer in.Close()
			var pkg bytes.Buffer
			So(codec.Compress(codec.FormatXz, in, &pkg), ShouldBeNil)

			_, _, err = UnpackReaderToString(&pkg, f.verifier, f.opts)
			So(err, errcat.ErrorShouldHaveCategory, api.ErrEntryMissing)
			So(err.Error(), ShouldContainSubstring, "file missing")
		})
	})
}

func TestConcurrentPacking(t *testing.T) {
	Convey("Concurrent packs and unpacks do not trip over each other", t,
		Requires(RequiresLongRun, func() {
			WithTmpdir(func(tmpDir fs.AbsolutePath) {
				f := newFixture(tmpDir)
				var eg errgroup.Group
				results := make([][]byte, 16)
				for i := range results {
					i := i
					eg.Go(func() error {
						out := f.path(fmt.Sprintf("pkg-%d.bpkg", i))
						if err := PackString([]byte(fmt.Sprintf("payload %d", i)), out, f.signer, f.opts); err != nil {
							return err
						}
						content, _, err := UnpackToString(out, f.verifier, f.opts)
						results[i] = content
						return err
					})
				}
				So(eg.Wait(), ShouldBeNil)
				for i, content := range results {
					So(string(content), ShouldEqual, fmt.Sprintf("payload %d", i))
				}
				f.shouldHaveNoTemps()
			})
		}),
	)
}
