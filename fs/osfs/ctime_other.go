// +build !linux,!darwin

package osfs

import (
	"time"

	"golang.org/x/sys/unix"
)

func createTime(st *unix.Stat_t) time.Time {
	return time.Unix(st.Ctim.Unix())
}
