package servermiddleware

import (
	"net/http"

	"github.com/facebookincubator/go-belt/beltctx"
)

// HTTPHeaderNameLogClientHostname is the name of a HTTP header used to
// pass through the name of the publishing host (to be used in logs on the
// server side as field "client_hostname").
const HTTPHeaderNameLogClientHostname = `X-Log-Client-Hostname`

// LogClientHostname adds the field "client_hostname" to the request context
// if the client sent one.
//
// Should be executed only after SetupContext.
func LogClientHostname(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if clientHostname := request.Header.Get(HTTPHeaderNameLogClientHostname); clientHostname != "" {
			ctx := beltctx.WithField(request.Context(), "client_hostname", clientHostname)
			request = request.WithContext(ctx)
		}
		handler.ServeHTTP(response, request)
	})
}
