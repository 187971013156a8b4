// Package tree provides helpers for canonical drive paths.
//
// A canonical path is absolute, slash-separated and has no trailing slash,
// except for the root itself ("/").
package tree

import (
	"path"
	"strings"
)

// Root is the canonical root path.
const Root = "/"

// Canonical cleans p into canonical form. Relative paths are taken
// relative to the root.
func Canonical(p string) string {
	if p == "" {
		return Root
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// IsRoot reports whether p denotes the root.
func IsRoot(p string) bool {
	return Canonical(p) == Root
}

// Parent returns the parent of p and false if p is the root.
func Parent(p string) (string, bool) {
	p = Canonical(p)
	if p == Root {
		return "", false
	}
	return path.Dir(p), true
}

// Base returns the last segment of p, or "/" for the root.
func Base(p string) string {
	return path.Base(Canonical(p))
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == Root {
		return Root + name
	}
	return parentPath + "/" + name
}

// HasPrefix reports whether ancestor is p itself or one of its ancestors.
// Unlike strings.HasPrefix it respects segment boundaries, so "/doc" is
// not a prefix of "/docs".
func HasPrefix(p, ancestor string) bool {
	p, ancestor = Canonical(p), Canonical(ancestor)
	if ancestor == Root || p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// NextSegment returns the name of the child of ancestor that lies on the
// way down to p. It returns false when ancestor is not a proper ancestor.
func NextSegment(p, ancestor string) (string, bool) {
	p, ancestor = Canonical(p), Canonical(ancestor)
	if p == ancestor || !HasPrefix(p, ancestor) {
		return "", false
	}
	rest := strings.TrimPrefix(p, ancestor)
	rest = strings.TrimPrefix(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

// Ancestors returns the proper ancestors of p, nearest first and ending
// with the root. The root has none.
func Ancestors(p string) []string {
	var out []string
	for {
		parent, ok := Parent(p)
		if !ok {
			return out
		}
		out = append(out, parent)
		p = parent
	}
}
