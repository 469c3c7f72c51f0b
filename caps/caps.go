/*
	Tells tests whether the process can shrug off file permission bits.

	A privileged test run (root in a container, usually) can write into a
	0555 dir without complaint, so tests which provoke permission-denied
	failures have to skip themselves there instead of failing.
*/
package caps

import (
	"os"
	"runtime"

	"github.com/syndtr/gocapability/capability"
)

type Privileges struct {
	onLinux  bool
	uid      int
	effCaps  capability.Capabilities // nil off linux.
	probeErr error
}

func Scan() Privileges {
	p := Privileges{
		onLinux: runtime.GOOS == "linux",
		uid:     os.Getuid(),
	}
	if p.onLinux {
		p.effCaps, p.probeErr = capability.NewPid2(0) // zero means self
		if p.probeErr == nil {
			p.probeErr = p.effCaps.Load()
		}
	}
	return p
}

// CanOverridePermissions reports whether permission bits are advisory to us:
// CAP_DAC_OVERRIDE on linux, uid 0 elsewhere.
// If the capability set could not be read, the uid decides.
func (p Privileges) CanOverridePermissions() bool {
	if !p.onLinux || p.probeErr != nil {
		return p.uid == 0
	}
	return p.effCaps.Get(capability.EFFECTIVE, capability.CAP_DAC_OVERRIDE)
}
