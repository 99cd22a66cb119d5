package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/storage"
)

// MediaHandler serves library files at /media/*. Range requests are
// supported so that players can seek.
func MediaHandler(store storage.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if rel == "" || !models.IsMedia(rel) || hiddenSegment(rel) {
			http.NotFound(w, r)
			return
		}
		f, meta, err := store.Open(rel)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		http.ServeContent(w, r, path.Base(meta.Path), meta.ModTime, f)
	}
}

func hiddenSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
