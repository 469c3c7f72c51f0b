package testutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/bpkg/fs"
)

/*
	Creates a temp dir, runs the func with it, and removes it afterwards
	(including after a panic, which is how goconvey reports failed `So`s).
*/
func WithTmpdir(fn func(tmpDir fs.AbsolutePath)) {
	dir, err := ioutil.TempDir("", "bpkg-test-")
	if err != nil {
		panic(err)
	}
	dir, err = filepath.EvalSymlinks(dir) // mac tmpdirs are symlinks; we want the real thing.
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	fn(fs.MustAbsolutePath(dir))
}

func ShouldStat(afs fs.FS, path fs.RelPath) fs.Metadata {
	stat, err := afs.LStat(path)
	convey.So(err, convey.ShouldBeNil)
	stat.Mtime = stat.Mtime.UTC()
	return *stat
}

/*
	A simple fixture description of a file tree:
	keys ending in "/" are dirs; everything else is a file with that body.
*/
type Tree map[string]string

// WriteTree places the fixture under dir.  Parents are created as needed.
func WriteTree(dir fs.AbsolutePath, tree Tree) {
	for _, name := range tree.sortedNames() {
		pth := filepath.Join(dir.String(), name)
		if name[len(name)-1] == '/' {
			convey.So(os.MkdirAll(pth, 0755), convey.ShouldBeNil)
			continue
		}
		convey.So(os.MkdirAll(filepath.Dir(pth), 0755), convey.ShouldBeNil)
		convey.So(ioutil.WriteFile(pth, []byte(tree[name]), 0644), convey.ShouldBeNil)
	}
}

// ScanTree reads a tree from disk in the same shape WriteTree takes.
func ScanTree(dir fs.AbsolutePath) Tree {
	tree := Tree{}
	err := filepath.Walk(dir.String(), func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir.String(), pth)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		body, err := ioutil.ReadFile(pth)
		tree[rel] = string(body)
		return err
	})
	convey.So(err, convey.ShouldBeNil)
	return tree
}

func (t Tree) sortedNames() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
