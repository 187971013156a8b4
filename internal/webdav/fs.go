// Package webdav serves the cached drive tree over read-only WebDAV.
package webdav

import (
	"context"
	"errors"
	"os"
	"path"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/tree"
)

// DefaultReadBufferSize is the minimum number of bytes fetched per remote read.
const DefaultReadBufferSize = 10 * 1024 * 1024

// Resolver answers path queries from the directory cache.
type Resolver interface {
	ResolveOrPopulate(ctx context.Context, dir string) ([]drive.Entry, bool, error)
	Lookup(ctx context.Context, p string) (drive.Entry, bool, error)
}

// Downloader issues download URLs and reads file content from them.
type Downloader interface {
	DownloadURL(ctx context.Context, id string) (string, error)
	ReadRange(ctx context.Context, rawURL string, offset int64, length int) ([]byte, error)
}

// DriveFS implements webdav.FileSystem over the remote drive. It is
// read-only: every mutating call fails with os.ErrPermission.
type DriveFS struct {
	resolver   Resolver
	downloader Downloader
	root       string
	bufSize    int
}

var _ webdav.FileSystem = (*DriveFS)(nil)

// NewFS creates a file system serving the drive folder root.
func NewFS(resolver Resolver, downloader Downloader, root string, readBufferSize int) *DriveFS {
	if readBufferSize <= 0 {
		readBufferSize = DefaultReadBufferSize
	}
	return &DriveFS{
		resolver:   resolver,
		downloader: downloader,
		root:       tree.Canonical(root),
		bufSize:    readBufferSize,
	}
}

// RemotePath maps a WebDAV path to the drive path it denotes.
func (fs *DriveFS) RemotePath(name string) string {
	return tree.Canonical(path.Join(fs.root, tree.Canonical(name)))
}

func (fs *DriveFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (fs *DriveFS) RemoveAll(ctx context.Context, name string) error {
	return readOnly("remove", name)
}

func (fs *DriveFS) Rename(ctx context.Context, oldName, newName string) error {
	return readOnly("rename", oldName)
}

// OpenFile opens a file or directory for reading.
func (fs *DriveFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, readOnly("open", name)
	}

	remote := fs.RemotePath(name)
	entry, err := fs.lookup(ctx, "open", remote)
	if err != nil {
		return nil, err
	}
	return newFile(ctx, fs, remote, entry), nil
}

// Stat returns the entry at name.
func (fs *DriveFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	entry, err := fs.lookup(ctx, "stat", fs.RemotePath(name))
	if err != nil {
		return nil, err
	}
	return entryInfo{entry}, nil
}

// List returns the children of the directory at the WebDAV path name.
func (fs *DriveFS) List(ctx context.Context, name string) ([]drive.Entry, error) {
	return fs.list(ctx, fs.RemotePath(name))
}

func (fs *DriveFS) lookup(ctx context.Context, op, remote string) (drive.Entry, error) {
	entry, found, err := fs.resolver.Lookup(ctx, remote)
	if err != nil {
		logging.Error("webdav: lookup failed", zap.String("path", remote), zap.Error(err))
		return drive.Entry{}, &os.PathError{Op: op, Path: remote, Err: err}
	}
	if !found {
		return drive.Entry{}, &os.PathError{Op: op, Path: remote, Err: os.ErrNotExist}
	}
	return entry, nil
}

func (fs *DriveFS) list(ctx context.Context, remote string) ([]drive.Entry, error) {
	entries, found, err := fs.resolver.ResolveOrPopulate(ctx, remote)
	if err != nil {
		logging.Error("webdav: list failed", zap.String("path", remote), zap.Error(err))
		return nil, &os.PathError{Op: "readdir", Path: remote, Err: err}
	}
	if !found {
		return nil, &os.PathError{Op: "readdir", Path: remote, Err: os.ErrNotExist}
	}
	return entries, nil
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
}

// notExist reports whether err means the path is absent, including
// drive errors that were not mapped yet.
func notExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, drive.ErrNotFound)
}
