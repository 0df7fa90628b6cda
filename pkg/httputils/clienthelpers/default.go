package clienthelpers

import (
	"context"
	"net/http"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/firmware-publisher/pkg/httputils/servermiddleware"
)

// HTTPHeaders returns the headers to pass the trace IDs of the belt and the
// requested remote logging level to the server.
func HTTPHeaders(belt *belt.Belt, remoteLogLevel logger.Level) http.Header {
	httpHeaders := http.Header{}

	for _, traceID := range belt.TraceIDs() {
		httpHeaders.Add(servermiddleware.HTTPHeaderTraceID, string(traceID))
	}

	if remoteLogLevel != logger.LevelUndefined {
		httpHeaders.Set(servermiddleware.HTTPHeaderNameLogLevel, remoteLogLevel.String())
	}

	return httpHeaders
}

// SetHeaders sets the headers returned by HTTPHeaders for the belt of the
// request context. A remote logging level found in the context by key
// ValueKeyLogLevelRemote takes precedence over remoteLogLevel.
func SetHeaders(request *http.Request, remoteLogLevel logger.Level) {
	ctx := request.Context()
	if logLevel, ok := ctx.Value(ValueKeyLogLevelRemote).(logger.Level); ok {
		remoteLogLevel = logLevel
	}
	for key, values := range HTTPHeaders(beltctx.Belt(ctx), remoteLogLevel) {
		request.Header[key] = values
	}
}

// WithRemoteLogLevel returns a context requesting the logging level on the server side.
func WithRemoteLogLevel(ctx context.Context, logLevel logger.Level) context.Context {
	return context.WithValue(ctx, ValueKeyLogLevelRemote, logLevel)
}
