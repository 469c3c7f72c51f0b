package tests

import (
	"io/ioutil"
	"os"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/fs"
)

func CheckBaseLstat(afs fs.FS) {
	Convey("fs contract: lstat of the base path should be a dir", func() {
		stat, err := afs.LStat(fs.RelPath{})
		So(err, ShouldBeNil)
		So(stat.Type, ShouldEqual, fs.Type_Dir)
	})
}

func CheckMkdirLstatRoundtrip(afs fs.FS) {
	Convey("fs contract: mkdir and lstat should roundtrip", func() {
		d1 := fs.MustRelPath("d1")
		So(afs.Mkdir(d1, 0755), ShouldBeNil)
		stat, err := afs.LStat(d1)
		So(err, ShouldBeNil)
		So(stat.Type, ShouldEqual, fs.Type_Dir)
		So(stat.Perms, ShouldEqual, fs.Perms(0755))
	})
}

func CheckDeepMkdirError(afs fs.FS) {
	Convey("fs contract: deep mkdir should error", func() {
		d1d2 := fs.MustRelPath("d1/d2")
		So(afs.Mkdir(d1d2, 0755), errcat.ErrorShouldHaveCategory, fs.ErrNotExists)
		_, err := afs.LStat(d1d2)
		So(err, errcat.ErrorShouldHaveCategory, fs.ErrNotExists)
	})
}

func CheckFileLstatRoundtrip(afs fs.FS) {
	Convey("fs contract: file write and lstat should roundtrip", func() {
		f1 := fs.MustRelPath("f1")
		So(makeFile(afs, f1, "body"), ShouldBeNil)
		stat, err := afs.LStat(f1)
		So(err, ShouldBeNil)
		So(stat.Type, ShouldEqual, fs.Type_File)
		So(stat.Size, ShouldEqual, 4)
		So(stat.Ctime.IsZero(), ShouldBeFalse)
		So(afs.Chmod(f1, 0600), ShouldBeNil)
		stat, err = afs.LStat(f1)
		So(err, ShouldBeNil)
		So(stat.Perms, ShouldEqual, fs.Perms(0600))
	})
}

func CheckSetTimesRoundtrip(afs fs.FS) {
	Convey("fs contract: set times and lstat should roundtrip at nano precision", func() {
		f1 := fs.MustRelPath("f1")
		So(makeFile(afs, f1, "body"), ShouldBeNil)
		mtime := time.Date(2014, time.March, 3, 4, 5, 6, 7000, time.UTC)
		atime := time.Date(2015, time.April, 4, 5, 6, 7, 8000, time.UTC)
		So(afs.SetTimesNano(f1, mtime, atime), ShouldBeNil)
		stat, err := afs.LStat(f1)
		So(err, ShouldBeNil)
		So(stat.Mtime.UTC(), ShouldResemble, mtime)
		So(stat.Atime.UTC(), ShouldResemble, atime)
	})
}

func CheckRemoveAll(afs fs.FS) {
	Convey("fs contract: remove all should remove deep trees and tolerate absence", func() {
		So(afs.Mkdir(fs.MustRelPath("d1"), 0755), ShouldBeNil)
		So(afs.Mkdir(fs.MustRelPath("d1/d2"), 0755), ShouldBeNil)
		So(makeFile(afs, fs.MustRelPath("d1/d2/f"), "body"), ShouldBeNil)
		So(afs.RemoveAll(fs.MustRelPath("d1")), ShouldBeNil)
		_, err := afs.LStat(fs.MustRelPath("d1"))
		So(err, errcat.ErrorShouldHaveCategory, fs.ErrNotExists)
		So(afs.RemoveAll(fs.MustRelPath("d1")), ShouldBeNil)
	})
}

func CheckBreakoutRejected(afs fs.FS) {
	Convey("fs contract: paths departing the base should be rejected", func() {
		_, err := afs.LStat(fs.MustRelPath("../outside"))
		So(err, errcat.ErrorShouldHaveCategory, fs.ErrBreakout)
		_, err = afs.OpenFile(fs.MustRelPath("../outside"), os.O_CREATE|os.O_WRONLY, 0644)
		So(err, errcat.ErrorShouldHaveCategory, fs.ErrBreakout)
	})
}

func CheckReadDirNames(afs fs.FS) {
	Convey("fs contract: read dir names should list children", func() {
		So(makeFile(afs, fs.MustRelPath("a"), ""), ShouldBeNil)
		So(afs.Mkdir(fs.MustRelPath("b"), 0755), ShouldBeNil)
		names, err := afs.ReadDirNames(fs.RelPath{})
		So(err, ShouldBeNil)
		So(names, ShouldContain, "a")
		So(names, ShouldContain, "b")
		So(names, ShouldHaveLength, 2)
	})
}

func makeFile(afs fs.FS, path fs.RelPath, body string) error {
	f, err := afs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(body))
	return err
}

// ReadFile is a test convenience for slurping a file through an fs.FS.
func ReadFile(afs fs.FS, path fs.RelPath) ([]byte, error) {
	f, err := afs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ioutil.ReadAll(f)
}
