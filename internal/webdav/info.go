package webdav

import (
	"context"
	"mime"
	"path"

	"golang.org/x/net/webdav"

	"github.com/drivedav/drivedav/internal/drive"
)

const defaultContentType = "application/octet-stream"

// entryInfo is the os.FileInfo handed to the WebDAV handler. Its content
// type comes from the name alone, so listings never download content.
type entryInfo struct {
	drive.Entry
}

var _ webdav.ContentTyper = entryInfo{}

func (e entryInfo) ContentType(ctx context.Context) (string, error) {
	return contentType(e.Name()), nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return defaultContentType
}
