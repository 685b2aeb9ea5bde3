// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/logger"
)

var (
	// Version is the version of the current build
	Version = "1.0.0"
)

func (b *Backend) handleHealth(router *mux.Router) {
	logger.Default().Debugln("health")
	logger.Default().Debugln("  handle route: /api/health GET")
	logger.Default().Debugln("  handle route: /api/test-db GET")
	router.HandleFunc("/health", b.health).Methods(http.MethodGet)
	router.HandleFunc("/test-db", b.testDatabase).Methods(http.MethodGet)
}

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	backendStatus := "disconnected"
	if b.profiles.Available() {
		backendStatus = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"message":        "InvestPro Capital API is running",
		"backend":        b.backendName,
		"backend_status": backendStatus,
		"version":        Version,
	})
}

// testDatabase counts the profiles to check the profile store
func (b *Backend) testDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !b.profiles.Available() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Database not configured",
		})
		return
	}
	count, err := b.profiles.Ping(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if core.IsKind(err, core.KindUnavailable) {
			status = http.StatusServiceUnavailable
		}
		logger.FromContext(ctx).WithError(err).Errorln("Error 4401: database check failed")
		writeJSON(w, status, map[string]string{
			"status":  "error",
			"message": "Database connection failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"message":    "Database connection successful",
		"user_count": count,
	})
}
