package drive

import (
	"os"
	"time"
)

// RootID is the id the drive assigns to the top-level folder.
const RootID = "0"

// Metadata is the attribute view of a drive node.
type Metadata interface {
	Size() int64
	ModTime() time.Time
	Created() time.Time
	IsDir() bool
}

// Listable is anything that appears under a name in a directory listing.
type Listable interface {
	Name() string
}

// Entry is one node (file or directory) of the remote tree.
//
// Entries are values: a copy held by an open file may have its
// DownloadURL replaced without affecting the cached listing it came from.
type Entry struct {
	ID          string
	FileName    string
	ParentID    string
	Directory   bool
	Bytes       uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DownloadURL string // empty when none has been issued
}

var (
	_ Metadata    = Entry{}
	_ Listable    = Entry{}
	_ os.FileInfo = Entry{}
)

// Root returns the synthetic root directory entry.
func Root() Entry {
	return Entry{
		ID:        RootID,
		FileName:  "/",
		Directory: true,
	}
}

func (e Entry) Name() string       { return e.FileName }
func (e Entry) Size() int64        { return int64(e.Bytes) }
func (e Entry) ModTime() time.Time { return e.UpdatedAt }
func (e Entry) Created() time.Time { return e.CreatedAt }
func (e Entry) IsDir() bool        { return e.Directory }
func (e Entry) Sys() interface{}   { return nil }

func (e Entry) Mode() os.FileMode {
	if e.Directory {
		return os.ModeDir | 0555
	}
	return 0444
}

// Find returns the first entry named name.
func Find(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.FileName == name {
			return e, true
		}
	}
	return Entry{}, false
}
