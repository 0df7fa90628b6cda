package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/firmware-publisher/pkg/publish"
	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
)

func newTestServer(t *testing.T, opts ...publish.Option) *httptest.Server {
	stor, err := releasestore.New("fs://" + filepath.Join(t.TempDir(), "release"))
	require.NoError(t, err)
	t.Cleanup(func() { stor.Close() })

	opts = append([]publish.Option{publish.OptionUploadDir(t.TempDir())}, opts...)
	srv := httptest.NewServer(publish.NewRouter(publish.New(stor, opts...)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, publish.OptionAuthToken("secret123"))

	for _, baseURL := range []string{srv.URL, srv.URL + "/", srv.URL + "/index.php"} {
		t.Run(baseURL, func(t *testing.T) {
			c, err := New(baseURL, OptionAPIKey("secret123"))
			require.NoError(t, err)
			require.Equal(t, srv.URL+"/firmware.bin", c.FirmwareURL().String())

			version, err := c.Publish(ctx, " 01.02.125 ", "firmware.bin", strings.NewReader("firmware"))
			require.NoError(t, err)
			require.Equal(t, "01.02.125", version)

			version, err = c.Version(ctx)
			require.NoError(t, err)
			require.Equal(t, "01.02.125", version)

			var buf bytes.Buffer
			n, err := c.Firmware(ctx, &buf)
			require.NoError(t, err)
			require.Equal(t, int64(len("firmware")), n)
			require.Equal(t, "firmware", buf.String())
		})
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, publish.OptionAuthToken("secret123"))

	t.Run("unauthorized", func(t *testing.T) {
		c, err := New(srv.URL, OptionAPIKey("wrong"))
		require.NoError(t, err)

		_, err = c.Publish(ctx, "01.02.125", "firmware.bin", strings.NewReader("firmware"))
		var errRemote ErrRemote
		require.ErrorAs(t, err, &errRemote)
		require.True(t, errRemote.IsUnauthorized())
		require.Equal(t, "unauthorized", errRemote.Message)
	})

	t.Run("empty_version", func(t *testing.T) {
		c, err := New(srv.URL, OptionAPIKey("secret123"))
		require.NoError(t, err)

		_, err = c.Publish(ctx, " ", "firmware.bin", strings.NewReader("firmware"))
		var errRemote ErrRemote
		require.ErrorAs(t, err, &errRemote)
		require.Equal(t, http.StatusBadRequest, errRemote.StatusCode)
		require.Equal(t, "empty firmware_version", errRemote.Message)
	})

	t.Run("no_file_name", func(t *testing.T) {
		c, err := New(srv.URL, OptionAPIKey("secret123"))
		require.NoError(t, err)

		_, err = c.Publish(ctx, "01.02.125", "", strings.NewReader(""))
		var errRemote ErrRemote
		require.ErrorAs(t, err, &errRemote)
		require.NotNil(t, errRemote.Code)
		require.Equal(t, int(publish.UploadErrNoFile), *errRemote.Code)
		require.Equal(t, "server replied 400 Bad Request: upload error (code 4)", errRemote.Error())
	})

	t.Run("firmware_not_published", func(t *testing.T) {
		c, err := New(srv.URL)
		require.NoError(t, err)

		_, err = c.Firmware(ctx, &bytes.Buffer{})
		var errRemote ErrRemote
		require.ErrorAs(t, err, &errRemote)
		require.Equal(t, http.StatusNotFound, errRemote.StatusCode)
	})

	t.Run("unreachable", func(t *testing.T) {
		unreachable := httptest.NewServer(http.NotFoundHandler())
		unreachable.Close()

		c, err := New(unreachable.URL)
		require.NoError(t, err)

		_, err = c.Version(ctx)
		require.ErrorAs(t, err, &ErrRequest{})
	})

	t.Run("invalid_url", func(t *testing.T) {
		_, err := New("ftp://example.com/")
		require.Error(t, err)
	})
}

func TestClientHeaders(t *testing.T) {
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		_, _ = w.Write([]byte("0.0.0"))
	}))
	defer srv.Close()

	c, err := New(srv.URL,
		OptionRemoteLogLevel(logger.LevelDebug),
		OptionLogLocalHostname("builder-1"),
	)
	require.NoError(t, err)

	ctx := beltctx.WithTraceID(context.Background(), "trace-1")
	version, err := c.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, "0.0.0", version)

	require.Contains(t, headers.Values("X-Trace-Id"), "trace-1")
	require.Equal(t, logger.LevelDebug.String(), headers.Get("X-Log-Level"))
	require.Equal(t, "builder-1", headers.Get("X-Log-Client-Hostname"))
}

func TestErrRemoteWithTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Version(context.Background())
	var errRemote ErrRemote
	require.True(t, errors.As(err, &errRemote))
	require.Equal(t, "bad gateway", errRemote.Message)
	require.Nil(t, errRemote.Code)
}
