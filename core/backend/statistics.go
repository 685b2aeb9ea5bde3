// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/logger"
)

func (b *Backend) handleStatistics(router *mux.Router) {
	logger.Default().Debugln("statistics")
	logger.Default().Debugln("  handle statistics route: /api/users/stats GET")
	router.Handle("/users/stats", b.guard.Wrap(http.HandlerFunc(b.statistics))).Methods(http.MethodGet)
}

// statistics returns the profile statistics. The response carries an Etag,
// clients polling the dashboard get 304 while nothing changed.
func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.FromContext(ctx).Infoln("called route for", r.URL, r.Method)
	stats, err := b.profiles.Stats(ctx, access.PrincipalFromContext(ctx))
	if err != nil {
		writeError(w, r, "4301", err)
		return
	}

	jsonData, _ := json.Marshal(stats)
	etag := bytesToEtag(jsonData)
	w.Header().Set("Etag", etag)
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(jsonData)
}
