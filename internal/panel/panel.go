package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler for the dashboard.
//
// When dir names an existing directory its files are served; otherwise the
// embedded assets are. Requests for missing files get index.html.
func Handler(dir string) (http.Handler, error) {
	fsys, err := assets(dir)
	if err != nil {
		return nil, err
	}
	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || !exists(fsys, name) {
			r.URL.Path = "/"
		}
		fileServer.ServeHTTP(w, r)
	}), nil
}

func assets(dir string) (fs.FS, error) {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir), nil
		}
	}
	sub, err := fs.Sub(content, "web")
	if err != nil {
		return nil, fmt.Errorf("loading embedded dashboard assets: %w", err)
	}
	return sub, nil
}

func exists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
