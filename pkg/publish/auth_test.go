package publish

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenAuthorizer(t *testing.T) {
	require.True(t, TokenAuthorizer{}.Authorize(""))
	require.True(t, TokenAuthorizer{}.Authorize("anything"))

	a := TokenAuthorizer{Token: []byte("secret123")}
	require.True(t, a.Enabled())
	require.True(t, a.Authorize("secret123"))
	require.False(t, a.Authorize(""))
	require.False(t, a.Authorize("secret12"))
	require.False(t, a.Authorize("secret1234"))
}

func TestHeaderCredential(t *testing.T) {
	request := httptest.NewRequest("POST", "/", nil)
	_, ok := headerCredential(request)
	require.False(t, ok)

	request.Header.Set("x-api-key", "")
	credential, ok := headerCredential(request)
	require.True(t, ok)
	require.Empty(t, credential)
}
