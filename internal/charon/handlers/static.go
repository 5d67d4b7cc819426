package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/web"
)

// Client serves the files of a client bundle directory: index.html, favicon.png and dist/.
type Client struct {
	dir  string
	dist http.FileSystem
}

// NewClient creates a Client serving the bundle in dir.
func NewClient(dir string) *Client {
	return &Client{
		dir:  dir,
		dist: http.Dir(filepath.Join(dir, "dist")),
	}
}

// Favicon serves favicon.png.
func (c *Client) Favicon(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	http.ServeFile(w, r, filepath.Join(c.dir, "favicon.png"))
}

// Dist serves the built bundle, expecting to be mounted on /dist/.
func (c *Client) Dist() http.Handler {
	return metrics.HandlerApplyLabels(http.StripPrefix("/dist", http.FileServer(c.dist)))
}

// Index serves the files found at the root of dist, and index.html for any other path so that
// the client can route it. The embedded placeholder page is served when the bundle has no index.html.
func (c *Client) Index(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if name := path.Clean("/" + r.URL.Path); name != "/" {
		if f, err := c.dist.Open(name); err == nil {
			st, err := f.Stat()
			if err == nil && !st.IsDir() {
				http.ServeContent(w, r, st.Name(), st.ModTime(), f)
				f.Close()
				return
			}
			f.Close()
		}
	}

	index := filepath.Join(c.dir, "index.html")
	if _, err := os.Stat(index); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No client bundle index, serving placeholder", "dir", c.dir)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(web.Placeholder); err != nil {
			slog.Warn("Could not write placeholder page", "err", err)
		}
		return
	}
	http.ServeFile(w, r, index)
}

// GHPages serves the JSON files requested relative to a directory, hardcoding the dataset requests
// of a client built for static hosting. Other requests go to next.
func GHPages(dir string, next http.Handler) http.Handler {
	files := http.Dir(dir)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".json") {
			next.ServeHTTP(w, r)
			return
		}
		metrics.ApplyLabels(r)

		name := path.Clean("/" + r.URL.Path)
		slog.Info("Serving static JSON", "path", r.URL.Path, "file", filepath.Join(dir, filepath.FromSlash(name)))
		f, err := files.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil || st.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		http.ServeContent(w, r, st.Name(), st.ModTime(), f)
	})
}
