package servermiddleware

import (
	"net/http"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// AddDefaultMiddleware wraps a handler with everything a request of the
// publisher needs: an extended context with the logger, trace IDs read
// from the request, panic recovery and request logging.
//
// For description of arguments see SetupContext.
func AddDefaultMiddleware(
	handler http.Handler,
	belt *belt.Belt,
	overridableLogLevel bool,
	defaultLogLevel logger.Level,
) http.Handler {
	return SetupContext(RecoverPanic(LogClientHostname(LogRequests(handler))), belt, overridableLogLevel, defaultLogLevel)
}
