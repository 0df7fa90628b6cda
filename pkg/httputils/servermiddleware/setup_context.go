package servermiddleware

import (
	"net/http"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"
)

const (
	// HTTPHeaderNameLogLevel is the name of a HTTP header used to
	// raise the logging level on the server side for a single request.
	HTTPHeaderNameLogLevel = `X-Log-Level`

	// HTTPHeaderTraceID is the name of a HTTP header used to pass
	// trace IDs from the client.
	HTTPHeaderTraceID = `X-Trace-Id`
)

// SetupContext returns a handler which sets up an extended context
// by cloning tools (logger, metrics, ...) from "obsBelt" and setting logging
// level to "defaultLogLevel".
//
// The logging level could be raised using HTTP-header "X-Log-Level"
// if overridableLogLevel is true. It is never lowered below defaultLogLevel.
func SetupContext(
	handler http.Handler,
	obsBelt *belt.Belt,
	overridableLogLevel bool,
	defaultLogLevel logger.Level,
) http.Handler {
	obsBelt = obsBelt.WithField("apiInterface", "http")

	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		logLevel := defaultLogLevel

		ctx := request.Context()
		httpHeaders := request.Header

		var traceIDs belt.TraceIDs
		for _, xTraceID := range httpHeaders.Values(HTTPHeaderTraceID) {
			traceIDs = append(traceIDs, belt.TraceID(xTraceID))
		}
		if len(traceIDs) == 0 {
			traceIDs = belt.TraceIDs{belt.RandomTraceID()}
		}

		var xLogLevelValue string
		var logLevelErr error
		if overridableLogLevel {
			xLogLevelValue = httpHeaders.Get(HTTPHeaderNameLogLevel)
			if xLogLevelValue != "" {
				var newLogLevel logger.Level
				logLevelErr = newLogLevel.Set(xLogLevelValue)
				if logLevelErr == nil && newLogLevel > logLevel {
					logLevel = newLogLevel
				}
			}
		}

		ctx = beltctx.WithBelt(ctx, obsBelt)
		ctx = logger.CtxWithLogger(ctx, logger.FromCtx(ctx).WithLevel(logLevel))
		ctx = beltctx.WithTraceID(ctx, traceIDs...)

		if logLevelErr != nil {
			logger.FromCtx(ctx).Warnf("unable to parse log level '%s': %v", xLogLevelValue, logLevelErr)
		}

		handler.ServeHTTP(response, request.WithContext(ctx))
	})
}
