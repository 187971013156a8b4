package webdav

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Index of {{.Path}}</title></head>
<body>
<h1>Index of {{.Path}}</h1>
<table>
<tr><th>Name</th><th>Last modified</th><th>Size</th></tr>
{{- if .Parent}}
<tr><td><a href="../">../</a></td><td></td><td></td></tr>
{{- end}}
{{- range .Rows}}
<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Modified}}</td><td>{{.Size}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

type indexRow struct {
	Name     string
	Href     string
	Modified string
	Size     string
}

type indexPage struct {
	Path   string
	Parent bool
	Rows   []indexRow
}

// serveIndex renders an HTML listing of a directory. urlPath is the
// request path as the client sent it, prefix included.
func serveIndex(w http.ResponseWriter, r *http.Request, urlPath string, entries []drive.Entry) {
	if !strings.HasSuffix(urlPath, "/") {
		http.Redirect(w, r, urlPath+"/", http.StatusMovedPermanently)
		return
	}

	page := indexPage{Path: urlPath, Parent: urlPath != "/"}
	for _, e := range entries {
		row := indexRow{
			Name:     e.Name(),
			Href:     url.PathEscape(e.Name()),
			Modified: e.ModTime().UTC().Format("2006-01-02 15:04:05"),
			Size:     "-",
		}
		if e.IsDir() {
			row.Name += "/"
			row.Href += "/"
		} else {
			row.Size = humanSize(e.Size())
		}
		page.Rows = append(page.Rows, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	if err := indexTemplate.Execute(w, page); err != nil {
		logging.Error("webdav: render index", zap.String("path", urlPath), zap.Error(err))
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
