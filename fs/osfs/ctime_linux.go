// +build linux

package osfs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Linux keeps no birth time in stat(2); the inode change time stands in.
func createTime(st *unix.Stat_t) time.Time {
	return time.Unix(st.Ctim.Unix())
}
