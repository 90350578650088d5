// Package web holds the browser display served at the root of the REST API.
// The page follows the countdown over the websocket stream and drives it
// through the timer endpoints.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:static
var embeddedFS embed.FS

// IndexFile is the entry page inside FS.
const IndexFile = "index.html"

// FS returns the assets rooted at the static directory.
func FS() fs.FS {
	sub, err := fs.Sub(embeddedFS, "static")
	if err != nil {
		// the directory is embedded at compile time
		panic(err)
	}
	return sub
}

// HTTPFS returns the assets for use with http.FileServer.
func HTTPFS() http.FileSystem {
	return http.FS(FS())
}

// Index returns the entry page.
func Index() ([]byte, error) {
	return fs.ReadFile(FS(), IndexFile)
}

// ListFiles returns every embedded file, for the startup log.
func ListFiles() []string {
	var files []string
	_ = fs.WalkDir(FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}
