package main

import (
	"fmt"
	"io"
	"time"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"github.com/polydawn/refmt/obj/atlas"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
	"github.com/polydawn/bpkg/tarball"
)

// Result is what every command reports, in either output format.
type Result struct {
	Mode     string         `refmt:"mode,omitempty"`
	Path     string         `refmt:"path,omitempty"`     // package written by pack; destination written by unpack
	SignedAt string         `refmt:"signedAt,omitempty"` // RFC3339, from the verified signature
	Content  string         `refmt:"content,omitempty"`  // string-mode unpack only
	Entries  []ListingEntry `refmt:"entries,omitempty"`
	Error    *ResultError   `refmt:"error,omitempty"`

	cmd string // which command produced this; picks the dumb rendering
}

type ListingEntry struct {
	Name  string `refmt:"name"`
	Type  string `refmt:"type"`
	Perms string `refmt:"perms"`
	Size  int64  `refmt:"size"`
	Mtime string `refmt:"mtime"`
}

type ResultError struct {
	Category string `refmt:"category"`
	Message  string `refmt:"message"`
}

var Atlas = atlas.MustBuild(
	atlas.BuildEntry(Result{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(ListingEntry{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(ResultError{}).StructMap().Autogenerate().Complete(),
)

func (r *Result) SetError(err error) {
	if err == nil {
		r.Error = nil
		return
	}
	r.Error = &ResultError{
		Category: fmt.Sprintf("%s", Category(err)),
		Message:  err.Error(),
	}
}

func (r *Result) SetSignedAt(t time.Time) {
	r.SignedAt = t.UTC().Format(time.RFC3339)
}

func (r *Result) SetEntries(entries []tarball.Entry) {
	r.Entries = make([]ListingEntry, len(entries))
	for i, ent := range entries {
		r.Entries[i] = ListingEntry{
			Name:  ent.Name,
			Type:  string(ent.Type),
			Perms: fmt.Sprintf("%04o", ent.Perms),
			Size:  ent.Size,
			Mtime: ent.Mtime.UTC().Format(time.RFC3339Nano),
		}
	}
}

func SerializeResult(format string, result Result, resultErr error, stdout io.Writer, stderr io.Writer) {
	result.SetError(resultErr)
	switch format {
	case FmtJson:
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, stdout, Atlas)
		err := marshaller.Marshal(&result)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(stdout)
	case FmtDumb:
		if resultErr != nil {
			fmt.Fprintln(stderr, resultErr)
			return
		}
		switch result.cmd {
		case "pack":
			fmt.Fprintln(stdout, result.Path)
		case "unpack":
			if result.Mode == modeString {
				io.WriteString(stdout, result.Content)
				return
			}
			fmt.Fprintln(stdout, result.SignedAt)
		case "ls":
			fmt.Fprintln(stdout, result.Mode)
			for _, ent := range result.Entries {
				fmt.Fprintf(stdout, "%s %s %10d %s %s\n", ent.Type, ent.Perms, ent.Size, ent.Mtime, ent.Name)
			}
		}
	default:
		panic(fmt.Errorf("bpkg: invalid format %s", format))
	}
}

// Errors from outside the pipeline may be uncategorized;
// those still have to exit nonzero.
func exitCodeFor(err error) api.ExitCode {
	if err == nil {
		return api.ExitSuccess
	}
	code := api.ExitCodeFor(Category(err))
	if code == api.ExitSuccess {
		return api.ExitTODO
	}
	return code
}
