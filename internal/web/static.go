package web

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/universe-mcp/harvester/internal/index"
)

// indexAllowlist admits only the published index documents.
func indexAllowlist(rel string) bool {
	return !strings.Contains(rel, "/") && index.IsDocument(rel)
}

// anyJSON admits any .json file below the root. The path is already cleaned
// and confined by the handler.
func anyJSON(rel string) bool {
	return strings.HasSuffix(rel, ".json")
}

// staticHandler serves JSON files from a directory with CORS enabled and
// caching disabled, so a browser page always sees the freshest published
// data.
type staticHandler struct {
	prefix string
	root   string
	allow  func(rel string) bool
}

func newStaticHandler(prefix, root string, allow func(rel string) bool) *staticHandler {
	return &staticHandler{prefix: prefix, root: root, allow: allow}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, h.prefix)
	rel = path.Clean("/" + rel)[1:]
	if rel == "" || strings.HasPrefix(rel, "..") || !h.allow(rel) {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(h.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
