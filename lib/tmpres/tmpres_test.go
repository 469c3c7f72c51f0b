package tmpres

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"
	"golang.org/x/sync/errgroup"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/fs"
	"github.com/polydawn/bpkg/testutil"
)

func TestTempResources(t *testing.T) {
	Convey("Temp resources:", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			base := tmpDir.String()

			Convey("files are created empty, prefixed, and removed on release", func() {
				r, err := File(base, "sig")
				So(err, ShouldBeNil)
				So(filepath.Dir(r.Path()), ShouldEqual, base)
				So(filepath.Base(r.Path()), ShouldStartWith, "sig-")
				body, err := ioutil.ReadFile(r.Path())
				So(err, ShouldBeNil)
				So(body, ShouldBeEmpty)

				So(r.Release(), ShouldBeNil)
				_, err = os.Stat(r.Path())
				So(os.IsNotExist(err), ShouldBeTrue)

				Convey("and releasing again is a no-op", func() {
					So(r.Release(), ShouldBeNil)
				})
			})
			Convey("dirs are removed recursively", func() {
				r, err := Dir(base, "tree")
				So(err, ShouldBeNil)
				So(os.MkdirAll(filepath.Join(r.Path(), "a/b"), 0755), ShouldBeNil)
				So(ioutil.WriteFile(filepath.Join(r.Path(), "a/b/c"), []byte("x"), 0644), ShouldBeNil)
				So(r.Release(), ShouldBeNil)
				_, err = os.Stat(r.Path())
				So(os.IsNotExist(err), ShouldBeTrue)
			})
			Convey("two allocations never share a name", func() {
				r1, err := File(base, "x")
				So(err, ShouldBeNil)
				r2, err := File(base, "x")
				So(err, ShouldBeNil)
				So(r1.Path(), ShouldNotEqual, r2.Path())
			})
			Convey("concurrent allocations never share a name", func() {
				var mu sync.Mutex
				seen := map[string]struct{}{}
				var eg errgroup.Group
				for i := 0; i < 64; i++ {
					eg.Go(func() error {
						r, err := File(base, "race")
						if err != nil {
							return err
						}
						mu.Lock()
						seen[r.Path()] = struct{}{}
						mu.Unlock()
						return nil
					})
				}
				So(eg.Wait(), ShouldBeNil)
				So(seen, ShouldHaveLength, 64)
			})
			Convey("an unusable base is an io error", func() {
				_, err := File(filepath.Join(base, "nope", "nope"), "sig")
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
				_, err = Dir(filepath.Join(base, "nope", "nope"), "tree")
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
			})
			Convey("scopes release everything they allocated", func() {
				scope := NewScope(base, nil)
				r1, err := scope.File("sig")
				So(err, ShouldBeNil)
				r2, err := scope.Dir("tree")
				So(err, ShouldBeNil)
				scope.Release()
				_, err = os.Stat(r1.Path())
				So(os.IsNotExist(err), ShouldBeTrue)
				_, err = os.Stat(r2.Path())
				So(os.IsNotExist(err), ShouldBeTrue)
				So(testutil.ScanTree(tmpDir), ShouldBeEmpty)
			})
			Convey("scopes release on panic unwinding", func() {
				var leaked string
				func() {
					defer func() { recover() }()
					scope := NewScope(base, nil)
					defer scope.Release()
					r, err := scope.File("sig")
					if err != nil {
						return
					}
					leaked = r.Path()
					panic("unwinding")
				}()
				So(leaked, ShouldNotEqual, "")
				_, err := os.Stat(leaked)
				So(os.IsNotExist(err), ShouldBeTrue)
			})
			Convey("failed allocations in a scope leave nothing behind", func() {
				scope := NewScope(filepath.Join(base, "nope"), nil)
				_, err := scope.File("sig")
				So(err, errcat.ErrorShouldHaveCategory, api.ErrIO)
				scope.Release()
				So(testutil.ScanTree(tmpDir), ShouldBeEmpty)
			})
		})
	})
}
