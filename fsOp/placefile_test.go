package fsOp

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/fs"
	"github.com/polydawn/bpkg/fs/osfs"
	"github.com/polydawn/bpkg/testutil"
)

func TestPlaceFile(t *testing.T) {
	Convey("PlaceFile suite:", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			afs := osfs.New(tmpDir)
			Convey("Simple file placements should work...", func() {
				Convey("Placing a file with read bits should work", func() {
					err := PlaceFile(afs, fs.Metadata{
						Name:  fs.MustRelPath("thing"),
						Type:  fs.Type_File,
						Perms: 0644,
					}, bytes.NewBuffer([]byte("abc\n")))
					So(err, ShouldBeNil)
					bs, err := ioutil.ReadFile(tmpDir.Join(fs.MustRelPath("thing")).String())
					So(err, ShouldBeNil)
					So(string(bs), ShouldResemble, "abc\n")
				})
				Convey("Placing a file with *no* read bits should work", func() {
					err := PlaceFile(afs, fs.Metadata{
						Name:  fs.MustRelPath("thing"),
						Type:  fs.Type_File,
						Perms: 0, // this is a meaningful zero!
					}, bytes.NewBuffer([]byte("abc\n")))
					So(err, ShouldBeNil)
					// Skip attempt to read.  If low privilege, will fail.
					So(testutil.ShouldStat(afs, fs.MustRelPath("thing")).Perms, ShouldEqual, fs.Perms(0))
				})
				Convey("Placing a file bigger than one chunk should work", func() {
					body := bytes.Repeat([]byte("0123456789abcdef"), chunkSize/8+3)
					So(PlaceFile(afs, fs.Metadata{
						Name:  fs.MustRelPath("big"),
						Type:  fs.Type_File,
						Perms: 0644,
					}, bytes.NewReader(body)), ShouldBeNil)
					bs, err := ioutil.ReadFile(tmpDir.Join(fs.MustRelPath("big")).String())
					So(err, ShouldBeNil)
					So(bytes.Equal(bs, body), ShouldBeTrue)
				})
				Convey("Placing a file should apply perms past the umask, and times", func() {
					mtime := time.Unix(500004440, 0).UTC()
					So(PlaceFile(afs, fs.Metadata{
						Name:  fs.MustRelPath("thing"),
						Type:  fs.Type_File,
						Perms: 0777,
						Mtime: mtime,
					}, bytes.NewBuffer([]byte("abc\n"))), ShouldBeNil)
					stat := testutil.ShouldStat(afs, fs.MustRelPath("thing"))
					So(stat.Perms, ShouldEqual, fs.Perms(0777))
					So(stat.Mtime, ShouldEqual, mtime)
					So(stat.Atime.UTC(), ShouldEqual, fs.DefaultAtime)
				})
				Convey("File placements missing parent dirs should fail", func() {
					err := PlaceFile(afs, fs.Metadata{
						Name: fs.MustRelPath("deeper/thing"),
						Type: fs.Type_File,
					}, bytes.NewBuffer([]byte("abc\n")))
					So(err, errcat.ErrorShouldHaveCategory, fs.ErrNotExists)
				})
			})
			Convey("Simple dir placements should work", func() {
				mtime := time.Unix(500000220, 0).UTC()
				So(PlaceFile(afs, fs.Metadata{
					Name:  fs.MustRelPath("dir"),
					Type:  fs.Type_Dir,
					Perms: 0750,
					Mtime: mtime,
				}, nil), ShouldBeNil)
				stat := testutil.ShouldStat(afs, fs.MustRelPath("dir"))
				So(stat.Type, ShouldEqual, fs.Type_Dir)
				So(stat.Perms, ShouldEqual, fs.Perms(0750))
				So(stat.Mtime, ShouldEqual, mtime)

				Convey("Placing it again should restamp rather than fail", func() {
					So(PlaceFile(afs, fs.Metadata{
						Name:  fs.MustRelPath("dir"),
						Type:  fs.Type_Dir,
						Perms: 0755,
					}, nil), ShouldBeNil)
					So(testutil.ShouldStat(afs, fs.MustRelPath("dir")).Perms, ShouldEqual, fs.Perms(0755))
				})
				Convey("Placing a dir over a file should fail", func() {
					mustPlaceFile(afs, fs.Metadata{Name: fs.MustRelPath("womp"), Type: fs.Type_File, Perms: 0644}, nil)
					So(PlaceFile(afs, fs.Metadata{
						Name:  fs.MustRelPath("womp"),
						Type:  fs.Type_Dir,
						Perms: 0755,
					}, nil), errcat.ErrorShouldHaveCategory, fs.ErrNotDir)
				})
			})
			Convey("Placing unhandled types should fail", func() {
				So(PlaceFile(afs, fs.Metadata{
					Name: fs.MustRelPath("lnk"),
					Type: fs.Type_Symlink,
				}, nil), errcat.ErrorShouldHaveCategory, fs.ErrUnhandledType)
				So(PlaceFile(afs, fs.Metadata{
					Name: fs.MustRelPath("pipe"),
					Type: fs.Type_NamedPipe,
				}, nil), errcat.ErrorShouldHaveCategory, fs.ErrUnhandledType)
			})
			Convey("Placements that would traverse a symlink out of the base path should fail", func() {
				So(os.Symlink("/tmp", tmpDir.Join(fs.MustRelPath("lnk")).String()), ShouldBeNil)
				err := PlaceFile(afs, fs.Metadata{
					Name:  fs.MustRelPath("lnk/thing"),
					Type:  fs.Type_File,
					Perms: 0644,
				}, bytes.NewBuffer([]byte("abc\n")))
				So(err, errcat.ErrorShouldHaveCategory, fs.ErrBreakout)
			})
			Convey("Placements going up out of the base path should fail", func() {
				err := PlaceFile(afs, fs.Metadata{
					Name:  fs.MustRelPath("../thing"),
					Type:  fs.Type_File,
					Perms: 0644,
				}, bytes.NewBuffer([]byte("abc\n")))
				So(err, errcat.ErrorShouldHaveCategory, fs.ErrBreakout)
			})
		})
	})
}

func TestScanFile(t *testing.T) {
	Convey("ScanFile:", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			afs := osfs.New(tmpDir)
			mustPlaceFile(afs, fs.Metadata{Name: fs.MustRelPath("dir"), Type: fs.Type_Dir, Perms: 0755}, nil)
			mustPlaceFile(afs, fs.Metadata{Name: fs.MustRelPath("dir/f"), Type: fs.Type_File, Perms: 0640}, bytes.NewBufferString("body"))

			Convey("files yield metadata and a body", func() {
				fmeta, body, err := ScanFile(afs, fs.MustRelPath("dir/f"))
				So(err, ShouldBeNil)
				So(body, ShouldNotBeNil)
				defer body.Close()
				So(fmeta.Type, ShouldEqual, fs.Type_File)
				So(fmeta.Perms, ShouldEqual, fs.Perms(0640))
				So(fmeta.Size, ShouldEqual, 4)
				bs, err := ioutil.ReadAll(body)
				So(err, ShouldBeNil)
				So(string(bs), ShouldEqual, "body")
			})
			Convey("dirs yield metadata only", func() {
				fmeta, body, err := ScanFile(afs, fs.MustRelPath("dir"))
				So(err, ShouldBeNil)
				So(body, ShouldBeNil)
				So(fmeta.Type, ShouldEqual, fs.Type_Dir)
			})
			Convey("missing paths are categorized", func() {
				_, _, err := ScanFile(afs, fs.MustRelPath("nope"))
				So(err, errcat.ErrorShouldHaveCategory, fs.ErrNotExists)
			})
		})
	})
}
