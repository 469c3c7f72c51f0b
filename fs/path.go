package fs

import (
	"path"
	"path/filepath"
	"strings"

	. "github.com/warpfork/go-errcat"
)

// Meta: yep, these *are not* interchangeable.
// It's expected that if you *can* accept an AbsolutePath,
//  then you should normalize to that ASAP;
// and if you can't, then clearly it's correct to use the RelPath,
//  through and through the whole way.

type RelPath struct {
	path      string
	lastSplit int
}

func MustRelPath(p string) RelPath {
	rp, err := ParseRelPath(p)
	if err != nil {
		panic(err)
	}
	return rp
}

// ParseRelPath cleans p and rejects rooted paths.
// Paths which go up ("../x") are accepted here; check GoesUp where it matters.
func ParseRelPath(p string) (RelPath, error) {
	p = path.Clean(p)
	if p[0] == '/' {
		return RelPath{}, Errorf(ErrBreakout, "fs: path %q must be relative", p)
	}
	if p == "." { // We can't stop people from using the zero value, so, use it.
		return RelPath{}, nil
	}
	return RelPath{p, strings.LastIndexByte(p, '/')}, nil
}

func (p RelPath) String() string {
	if p.path == "" {
		return "."
	} else if p.GoesUp() {
		return p.path
	} else {
		return "./" + p.path
	}
}

// Bare returns the path with no "./" prefix; the zero value is "".
// This is the form used for names inside archives.
func (p RelPath) Bare() string {
	return p.path
}

func (p RelPath) GoesUp() bool {
	return p.path == ".." || strings.HasPrefix(p.path, "../")
}

func (p RelPath) Dir() RelPath {
	if p.path == "" {
		return p
	} else if p.lastSplit == -1 {
		return RelPath{}
	} else {
		p2 := p.path[0:p.lastSplit]
		return RelPath{p2, strings.LastIndexByte(p2, '/')}
	}
}

func (p RelPath) Last() string {
	if p.path == "" {
		return "."
	} else if p.lastSplit == -1 {
		return p.path
	} else {
		return p.path[p.lastSplit+1:]
	}
}

func (p RelPath) Join(p2 RelPath) RelPath {
	switch {
	case p2.path == "":
		return p
	case p.path == "":
		return p2
	default:
		return RelPath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
	}
}

// SplitParent returns every ancestor of the path, shallowest first,
// not including the zero path nor the path itself.
func (p RelPath) SplitParent() []RelPath {
	var parents []RelPath
	for parent := p.Dir(); parent != (RelPath{}); parent = parent.Dir() {
		parents = append([]RelPath{parent}, parents...)
	}
	return parents
}

type AbsolutePath struct {
	path      string
	lastSplit int
}

func MustAbsolutePath(p string) AbsolutePath {
	p = path.Clean(p)
	if p[0] != '/' {
		panic("fs: path " + p + " must be absolute")
	}
	if p == "/" { // We can't stop people from using the zero value, so, use it.
		return AbsolutePath{}
	}
	return AbsolutePath{p, strings.LastIndexByte(p, '/')}
}

// ResolveAbsolutePath makes p absolute against the working directory.
func ResolveAbsolutePath(p string) (AbsolutePath, error) {
	if p == "" {
		return AbsolutePath{}, Errorf(ErrNotExists, "fs: empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return AbsolutePath{}, NormalizeIOError(err)
	}
	return MustAbsolutePath(filepath.ToSlash(abs)), nil
}

func (p AbsolutePath) String() string {
	if p.path == "" {
		return "/"
	}
	return p.path
}

func (p AbsolutePath) Dir() AbsolutePath {
	if p.path == "" {
		return p
	} else if p.lastSplit == 0 {
		return AbsolutePath{}
	} else {
		p2 := p.path[0:p.lastSplit]
		return AbsolutePath{p2, strings.LastIndexByte(p2, '/')}
	}
}

func (p AbsolutePath) Last() string {
	if p.path == "" {
		return "/"
	} else {
		return p.path[p.lastSplit+1:]
	}
}

func (p AbsolutePath) Join(p2 RelPath) AbsolutePath {
	switch {
	case p2.path == "":
		return p
	default:
		return AbsolutePath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
	}
}
