// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/relabs-tech/investpro/core/logger"
)

func (b *Backend) handleCompression(h http.Handler) http.Handler {
	return handlers.CompressHandler(h)
}

// handleRecovery turns panics into a bare 500 and logs them
func (b *Backend) handleRecovery(h http.Handler) http.Handler {
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger.Default().WithField("component", "recovery")),
		handlers.PrintRecoveryStack(true),
	)(h)
}
