package webdav

import (
	"context"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/drivedav/drivedav/internal/downloadurl"
	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
)

// driveFile is an open file or directory. Files read through a buffer of
// at least the configured read size; directories list lazily.
type driveFile struct {
	fs     *DriveFS
	ctx    context.Context
	remote string
	entry  drive.Entry

	// File state
	tracker *downloadurl.Tracker
	offset  int64
	buf     []byte
	bufOff  int64

	// Directory state
	children []drive.Entry
	listed   bool
	dirPos   int
}

var _ webdav.File = (*driveFile)(nil)

func newFile(ctx context.Context, fs *DriveFS, remote string, entry drive.Entry) *driveFile {
	f := &driveFile{fs: fs, ctx: ctx, remote: remote, entry: entry}
	if !entry.IsDir() {
		f.tracker = downloadurl.NewTracker(entry, fs.downloader)
	}
	return f
}

func (f *driveFile) Close() error {
	f.buf = nil
	f.children = nil
	return nil
}

func (f *driveFile) Stat() (os.FileInfo, error) {
	return entryInfo{f.entry}, nil
}

func (f *driveFile) Write(p []byte) (int, error) {
	return 0, readOnly("write", f.remote)
}

func (f *driveFile) Read(p []byte) (int, error) {
	if f.entry.IsDir() {
		return 0, &os.PathError{Op: "read", Path: f.remote, Err: errors.New("is a directory")}
	}
	if len(p) == 0 {
		return 0, nil
	}
	size := f.entry.Size()
	if f.offset >= size {
		return 0, io.EOF
	}

	if f.offset < f.bufOff || f.offset >= f.bufOff+int64(len(f.buf)) {
		if err := f.fill(size); err != nil {
			return 0, err
		}
	}

	n := copy(p, f.buf[f.offset-f.bufOff:])
	f.offset += int64(n)
	return n, nil
}

// fill replaces the buffer with content starting at the current offset.
func (f *driveFile) fill(size int64) error {
	length := int64(f.fs.bufSize)
	if remaining := size - f.offset; remaining < length {
		length = remaining
	}

	rawURL, err := f.tracker.URL(f.ctx)
	if err != nil {
		return &os.PathError{Op: "read", Path: f.remote, Err: err}
	}
	data, err := f.fs.downloader.ReadRange(f.ctx, rawURL, f.offset, int(length))
	if errors.Is(err, io.EOF) || (err == nil && len(data) == 0) {
		return io.EOF
	}
	if err != nil {
		logging.Error("webdav: read failed",
			zap.String("path", f.remote),
			zap.Int64("offset", f.offset),
			zap.Error(err))
		return &os.PathError{Op: "read", Path: f.remote, Err: err}
	}

	f.buf = data
	f.bufOff = f.offset
	return nil
}

func (f *driveFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.offset + offset
	case io.SeekEnd:
		next = f.entry.Size() + offset
	default:
		return 0, &os.PathError{Op: "seek", Path: f.remote, Err: os.ErrInvalid}
	}
	if next < 0 {
		return 0, &os.PathError{Op: "seek", Path: f.remote, Err: errors.New("negative position")}
	}
	f.offset = next
	return next, nil
}

// Readdir follows os.File semantics: count <= 0 returns everything left,
// otherwise at most count entries and io.EOF once exhausted.
func (f *driveFile) Readdir(count int) ([]os.FileInfo, error) {
	if !f.entry.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: f.remote, Err: drive.ErrNotDir}
	}
	if !f.listed {
		children, err := f.fs.list(f.ctx, f.remote)
		if err != nil {
			return nil, err
		}
		f.children = children
		f.listed = true
	}

	rest := f.children[f.dirPos:]
	if count > 0 {
		if len(rest) == 0 {
			return nil, io.EOF
		}
		if len(rest) > count {
			rest = rest[:count]
		}
	}
	f.dirPos += len(rest)

	infos := make([]os.FileInfo, len(rest))
	for i, e := range rest {
		infos[i] = entryInfo{e}
	}
	return infos, nil
}
