package servermiddleware

import (
	"net/http"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
)

// RecoverPanic recovers panics of the handler, reports them through the
// error monitor of the request context and replies 500.
//
// Should be executed only after SetupContext.
func RecoverPanic(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := request.Context()
			metrics.FromCtx(ctx).Count("panics").Add(1)
			errmon.ObserveRecoverCtx(ctx, r)
			http.Error(response, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		handler.ServeHTTP(response, request)
	})
}
