//go:build !unix

package main

import "github.com/drivedav/drivedav/internal/dircache"

// reloadSource returns nil: there is no SIGHUP here, use the admin
// endpoint instead.
func reloadSource() dircache.Source {
	return nil
}
