package publish

import (
	"crypto/subtle"
	"net/http"
)

const (
	// HTTPHeaderAPIKey is the HTTP header a publisher passes the token in.
	HTTPHeaderAPIKey = `X-Api-Key`

	// FormFieldToken is the form field used for the token if the header
	// is not sent.
	FormFieldToken = `token`
)

// TokenAuthorizer checks a credential against a single shared token.
type TokenAuthorizer struct {
	Token []byte
}

// Enabled returns false if no token is configured, which means
// every request is authorized.
func (a TokenAuthorizer) Enabled() bool {
	return len(a.Token) > 0
}

// Authorize compares the credential with the token in constant time.
func (a TokenAuthorizer) Authorize(credential string) bool {
	if !a.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare(a.Token, []byte(credential)) == 1
}

// headerCredential returns the credential sent in the header, ok is false if
// the header is not sent at all. An empty header value still counts as sent.
func headerCredential(request *http.Request) (string, bool) {
	values, ok := request.Header[http.CanonicalHeaderKey(HTTPHeaderAPIKey)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
