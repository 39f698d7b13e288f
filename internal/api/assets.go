package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// AssetHandler serves stored annotation images read-only.
type AssetHandler struct {
	root string
}

// NewAssetHandler creates a handler rooted at the asset storage directory.
func NewAssetHandler(root string) *AssetHandler {
	return &AssetHandler{root: root}
}

// ServeHTTP serves the file at the request path relative to the storage
// root. Mount it behind http.StripPrefix for the URL prefix. Only
// videos/{videoId}/annotations/{id}/{file} is reachable; directories are
// never listed.
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	parts := strings.Split(rel, "/")
	if len(parts) != 5 || parts[0] != "videos" || parts[2] != "annotations" {
		http.NotFound(w, r)
		return
	}
	abs := filepath.Join(h.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, abs)
}
