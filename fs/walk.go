package fs

import (
	"sort"
)

type WalkFunc func(filenode *FilewalkNode) error

type FilewalkNode struct {
	Info *Metadata // the lstat result.  nil if Err is set.
	Err  error     // set if the node could not be stat'd or its children listed.
}

/*
	Walks a filesystem.

	This is much like the standard library's `path/filepath.Walk`,
	except it supports both pre- and post-order visits,
	and it uses fs.RelPath (of course) to normalize path names.

	If walking directories, implicitly the first path will always be `./`;
	if the basePath is a file however, the first (and only) path will be `.`.

	Symlinks are not followed.

	Siblings are visited in sorted order, so two walks of an unchanged tree
	see the same sequence.

	If a visit func returns an error, the walk halts with that error.
	Stat errors are handed to preVisit via `FilewalkNode.Err`; returning nil
	for such a node skips it.  Failure to list a directory halts the walk.
*/
func Walk(afs FS, preVisit WalkFunc, postVisit WalkFunc) error {
	return walk(afs, RelPath{}, preVisit, postVisit)
}

func walk(afs FS, path RelPath, preVisit WalkFunc, postVisit WalkFunc) error {
	node := &FilewalkNode{}
	node.Info, node.Err = afs.LStat(path)
	if preVisit != nil {
		if err := preVisit(node); err != nil {
			return err
		}
	}
	if node.Err == nil && node.Info.Type == Type_Dir {
		names, err := afs.ReadDirNames(path)
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			if err := walk(afs, path.Join(MustRelPath(name)), preVisit, postVisit); err != nil {
				return err
			}
		}
	}
	if postVisit != nil {
		return postVisit(node)
	}
	return nil
}
