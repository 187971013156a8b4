//go:build unix

package main

import (
	"golang.org/x/sys/unix"

	"github.com/drivedav/drivedav/internal/dircache"
)

// reloadSource clears the directory cache on SIGHUP.
func reloadSource() dircache.Source {
	return dircache.Signals(unix.SIGHUP)
}
