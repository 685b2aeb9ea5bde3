// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/investpro/core/logger"
)

// handleStatic serves the built frontend. Paths which are not files fall back
// to index.html, so client side routes of the single page app work on reload.
// Unknown /api paths never fall back.
func (b *Backend) handleStatic(router *mux.Router) {
	logger.Default().Debugln("static")
	logger.Default().Debugln("  handle static route: /{path} GET from", b.staticDir)
	router.PathPrefix("/").HandlerFunc(b.serveStatic).Methods(http.MethodGet, http.MethodHead)
}

func (b *Backend) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		endpointNotFound(w, r)
		return
	}
	if b.staticDir == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Static folder not configured"})
		return
	}
	name := path.Clean("/" + r.URL.Path)
	if name != "/" && b.serveFile(w, r, filepath.Join(b.staticDir, filepath.FromSlash(name))) {
		return
	}
	if b.serveFile(w, r, filepath.Join(b.staticDir, "index.html")) {
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "Frontend not built",
		"message": "Please build the frontend first: cd frontend && npm run build",
	})
}

// serveFile serves the regular file name. It returns false if there is no such file.
func (b *Backend) serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	file, err := os.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	return true
}
