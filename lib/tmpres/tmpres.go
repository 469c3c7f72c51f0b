/*
	Scoped temporary files and directories.

	Every Resource is a uniquely named path which belongs to exactly one
	caller until it is released.  Names carry a random suffix from
	`lib/guid`, and creation is exclusive, so concurrent callers sharing a
	temp base can never end up sharing a path.

	The expected pattern is one Scope per operation:

		scope := tmpres.NewScope(tmpBase, log)
		defer scope.Release()
		sigFile, err := scope.File("sig")

	Release runs on every exit path, panics included, and never returns an
	error that could mask the operation's own.
*/
package tmpres

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/lib/guid"
)

// How many times to re-roll a name that happens to exist already.
const attempts = 3

type Resource struct {
	path string

	mu       sync.Mutex
	released bool
}

// File creates an empty file exclusively owned by the caller.
// An empty base means os.TempDir().
func File(base string, prefix string) (*Resource, error) {
	return create(base, prefix, func(pth string) error {
		f, err := os.OpenFile(pth, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return err
		}
		return f.Close()
	})
}

// Dir creates an empty directory exclusively owned by the caller.
// An empty base means os.TempDir().
func Dir(base string, prefix string) (*Resource, error) {
	return create(base, prefix, func(pth string) error {
		return os.Mkdir(pth, 0700)
	})
}

func create(base string, prefix string, mk func(string) error) (*Resource, error) {
	if base == "" {
		base = os.TempDir()
	}
	var err error
	for i := 0; i < attempts; i++ {
		pth := filepath.Join(base, prefix+"-"+guid.New())
		err = mk(pth)
		switch {
		case err == nil:
			return &Resource{path: pth}, nil
		case os.IsExist(err):
			continue
		default:
			return nil, Errorf(api.ErrIO, "temp path unavailable: %s", err)
		}
	}
	return nil, Errorf(api.ErrIO, "temp path unavailable after %d attempts: %s", attempts, err)
}

func (r *Resource) Path() string {
	return r.path
}

// Release removes the path, recursively for directories.
// Releasing twice is a no-op; a path already gone is not an error.
func (r *Resource) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	if err := os.RemoveAll(r.path); err != nil {
		return Errorf(api.ErrIO, "failed to remove temp path: %s", err)
	}
	return nil
}

/*
	Scope collects every Resource allocated for one operation so they can be
	released together.
*/
type Scope struct {
	base string
	log  logrus.FieldLogger

	mu        sync.Mutex
	resources []*Resource
}

func NewScope(base string, log logrus.FieldLogger) *Scope {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scope{base: base, log: log}
}

func (s *Scope) File(prefix string) (*Resource, error) {
	return s.track(File(s.base, prefix))
}

func (s *Scope) Dir(prefix string) (*Resource, error) {
	return s.track(Dir(s.base, prefix))
}

func (s *Scope) track(r *Resource, err error) (*Resource, error) {
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.resources = append(s.resources, r)
	s.mu.Unlock()
	return r, nil
}

// Release releases every tracked resource, newest first.
// Failures are logged and otherwise swallowed.
func (s *Scope) Release() {
	s.mu.Lock()
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Release(); err != nil {
			s.log.WithField("path", resources[i].Path()).Warnf("temp cleanup failed: %s", err)
		}
	}
}
