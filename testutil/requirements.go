package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/bpkg/caps"
)

// ConveyRequirement is a named precondition a test needs from its environment.
type ConveyRequirement struct {
	Name      string
	Predicate func() bool
}

// RequiresLongRun skips under `go test -short`.
var RequiresLongRun = ConveyRequirement{"not running with -short", func() bool { return !testing.Short() }}

// RequiresPermissionsEnforced skips when permission bits would not stop us,
// so a chmod'ed-away directory really does refuse writes.
var RequiresPermissionsEnforced = ConveyRequirement{"permission bits are enforced on us", func() bool { return !caps.Scan().CanOverridePermissions() }}

/*
	Require that an env var is *not* set.

	Used as an opt-out for tests that depend on the host, like
	`RequiresEnvBlank("BPKG_TEST_SKIP_SYSTEM_TRUST")`.
*/
func RequiresEnvBlank(key string) ConveyRequirement {
	return ConveyRequirement{
		fmt.Sprintf("env %s is unset", key),
		func() bool { return os.Getenv(key) == "" },
	}
}

/*
	Requires guards a goconvey block: pass the requirements, then the block
	(either `func()` or `func(convey.C)`), and hand the result to Convey.

	If every requirement holds, the block runs as usual.  Otherwise a
	placeholder runs instead, which registers a skipped Convey naming what
	was missing, so the skip shows up in reports rather than vanishing.
*/
func Requires(items ...interface{}) func(c convey.C) {
	block := items[len(items)-1]
	var unmet []string
	var report strings.Builder
	for _, it := range items[:len(items)-1] {
		req := it.(ConveyRequirement)
		sat := req.Predicate()
		if !sat {
			unmet = append(unmet, req.Name)
		}
		fmt.Fprintf(&report, "requirement %q: %v\n", req.Name, sat)
	}
	if len(unmet) > 0 {
		return func(c convey.C) {
			convey.Convey("Skipped; unmet: "+strings.Join(unmet, ", "), nil)
			c.Println()
			c.Print(report.String())
		}
	}
	return func(c convey.C) {
		switch block := block.(type) {
		case func():
			block()
		case func(c convey.C):
			block(c)
		default:
			panic(fmt.Errorf("testutil.Requires: last argument must be a convey block, got %T", block))
		}
	}
}
