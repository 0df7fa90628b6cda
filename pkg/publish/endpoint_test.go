package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
)

type formField struct {
	Name     string
	Value    string
	IsFile   bool
	FileName string
}

func valueField(name, value string) formField {
	return formField{Name: name, Value: value}
}

func fileField(name, fileName, content string) formField {
	return formField{Name: name, Value: content, IsFile: true, FileName: fileName}
}

func newMultipartRequest(t *testing.T, fields ...formField) *http.Request {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, field := range fields {
		if !field.IsFile {
			require.NoError(t, writer.WriteField(field.Name, field.Value))
			continue
		}
		w, err := writer.CreateFormFile(field.Name, field.FileName)
		require.NoError(t, err)
		_, err = w.Write([]byte(field.Value))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func validPublishRequest(t *testing.T, version string) *http.Request {
	return newMultipartRequest(t,
		valueField(FormFieldFirmwareVersion, version),
		fileField(FormFieldFile, "firmware.bin", "firmware "+version),
	)
}

type testEndpoint struct {
	*Endpoint
	UploadDir string
}

func newTestEndpoint(t *testing.T, opts ...Option) *testEndpoint {
	stor, err := releasestore.New("fs://" + filepath.Join(t.TempDir(), "release"))
	require.NoError(t, err)
	t.Cleanup(func() { stor.Close() })

	uploadDir := t.TempDir()
	opts = append([]Option{OptionUploadDir(uploadDir)}, opts...)
	return &testEndpoint{
		Endpoint:  New(stor, opts...),
		UploadDir: uploadDir,
	}
}

func (e *testEndpoint) do(request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	e.ServeHTTP(recorder, request)
	return recorder
}

func (e *testEndpoint) getVersion(t *testing.T) string {
	recorder := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/plain; charset=utf-8", recorder.Header().Get("Content-Type"))
	return recorder.Body.String()
}

func requireJSON(t *testing.T, recorder *httptest.ResponseRecorder, statusCode int, expected map[string]any) {
	require.Equal(t, statusCode, recorder.Code, recorder.Body.String())
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var actual map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &actual))
	require.Equal(t, expected, actual)
}

func failed(message string) map[string]any {
	return map[string]any{"ok": false, "error": message}
}

func TestGetVersionDefault(t *testing.T) {
	e := newTestEndpoint(t)
	require.Equal(t, "0.0.0", e.getVersion(t))
}

func TestGetVersionEmptyRecord(t *testing.T) {
	e := newTestEndpoint(t)
	fs := e.Store.(*releasestore.FS)
	require.NoError(t, os.WriteFile(fs.VersionPath(), []byte(" \n"), 0644))
	require.Equal(t, "0.0.0", e.getVersion(t))
}

func TestPublish(t *testing.T) {
	e := newTestEndpoint(t)

	recorder := e.do(newMultipartRequest(t,
		valueField(FormFieldFirmwareVersion, " 01.02.125\n"),
		fileField(FormFieldFile, "build.bin", "\x00\x01firmware"),
	))
	requireJSON(t, recorder, http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
	require.Equal(t, "01.02.125", e.getVersion(t))

	fs := e.Store.(*releasestore.FS)
	b, err := os.ReadFile(fs.VersionPath())
	require.NoError(t, err)
	require.Equal(t, "01.02.125\n", string(b))
	b, err = os.ReadFile(fs.FirmwarePath())
	require.NoError(t, err)
	require.Equal(t, "\x00\x01firmware", string(b))

	entries, err := os.ReadDir(e.UploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPublishIdempotence(t *testing.T) {
	e := newTestEndpoint(t)

	for i := 0; i < 2; i++ {
		recorder := e.do(validPublishRequest(t, "01.02.125"))
		requireJSON(t, recorder, http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
		require.Equal(t, "01.02.125", e.getVersion(t))

		firmware, err := e.Store.ReadFirmware(context.Background())
		require.NoError(t, err)
		require.Equal(t, "firmware 01.02.125", string(firmware))
	}
}

func TestPublishValidation(t *testing.T) {
	for name, tc := range map[string]struct {
		Request  func(t *testing.T) *http.Request
		Expected map[string]any
	}{
		"missing_firmware_version": {
			Request: func(t *testing.T) *http.Request {
				return newMultipartRequest(t, fileField(FormFieldFile, "fw.bin", "fw"))
			},
			Expected: failed(MessageMissingFirmwareVersion),
		},
		"empty_firmware_version": {
			Request: func(t *testing.T) *http.Request {
				return newMultipartRequest(t,
					valueField(FormFieldFirmwareVersion, "   "),
					fileField(FormFieldFile, "fw.bin", "fw"),
				)
			},
			Expected: failed(MessageEmptyFirmwareVersion),
		},
		"missing_file": {
			Request: func(t *testing.T) *http.Request {
				return newMultipartRequest(t, valueField(FormFieldFirmwareVersion, "01.02.125"))
			},
			Expected: failed(MessageMissingFile),
		},
		"file_as_plain_field": {
			Request: func(t *testing.T) *http.Request {
				return newMultipartRequest(t,
					valueField(FormFieldFirmwareVersion, "01.02.125"),
					valueField(FormFieldFile, "fw"),
				)
			},
			Expected: failed(MessageMissingFile),
		},
		"no_file_selected": {
			Request: func(t *testing.T) *http.Request {
				return newMultipartRequest(t,
					valueField(FormFieldFirmwareVersion, "01.02.125"),
					fileField(FormFieldFile, "", ""),
				)
			},
			Expected: map[string]any{"ok": false, "error": MessageUploadError, "code": float64(UploadErrNoFile)},
		},
		"urlencoded_body": {
			Request: func(t *testing.T) *http.Request {
				request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{
					FormFieldFirmwareVersion: {"01.02.125"},
				}.Encode()))
				request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return request
			},
			Expected: failed(MessageMissingFile),
		},
		"no_body": {
			Request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", nil)
			},
			Expected: failed(MessageMissingFirmwareVersion),
		},
		"missing_firmware_version_is_checked_first": {
			Request: func(t *testing.T) *http.Request {
				return newMultipartRequest(t)
			},
			Expected: failed(MessageMissingFirmwareVersion),
		},
	} {
		t.Run(name, func(t *testing.T) {
			e := newTestEndpoint(t)
			requireJSON(t, e.do(tc.Request(t)), http.StatusBadRequest, tc.Expected)
			require.Equal(t, "0.0.0", e.getVersion(t))
		})
	}
}

func TestPublishVersionTrimming(t *testing.T) {
	for _, tc := range []struct {
		Name     string
		Version  string
		Expected string
	}{
		{"nul", "01.02.125\x00", "01.02.125"},
		{"vertical_tab", "\x0b01.02.126\r\n", "01.02.126"},
		{"nbsp", "\u00a0", "\u00a0"},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			e := newTestEndpoint(t)
			recorder := e.do(validPublishRequest(t, tc.Version))
			requireJSON(t, recorder, http.StatusOK, map[string]any{"ok": true, "version": tc.Expected})
			require.Equal(t, tc.Expected, e.getVersion(t))
		})
	}
}

func TestOptionMaxUploadSize(t *testing.T) {
	for _, tc := range []struct {
		Name     string
		Option   OptionMaxUploadSize
		Expected int64
	}{
		{"max_int64", math.MaxInt64, MaxUploadSizeLimit},
		{"above_limit", MaxUploadSizeLimit + 1, MaxUploadSizeLimit},
		{"zero", 0, DefaultMaxUploadSize},
		{"negative", -1, DefaultMaxUploadSize},
		{"custom", 1024, 1024},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			e := newTestEndpoint(t, tc.Option)
			require.Equal(t, tc.Expected, e.cfg.MaxUploadSize)

			recorder := e.do(validPublishRequest(t, "01.02.125"))
			requireJSON(t, recorder, http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
		})
	}
}

func TestPublishLongValues(t *testing.T) {
	t.Run("multipart_value_over_limit", func(t *testing.T) {
		e := newTestEndpoint(t)
		// the limit falls in the middle of a two-byte character
		version := "x" + strings.Repeat("é", maxFormOverhead/2+10)
		recorder := e.do(newMultipartRequest(t,
			valueField(FormFieldFirmwareVersion, version),
			fileField(FormFieldFile, "fw.bin", "fw"),
		))
		requireJSON(t, recorder, http.StatusBadRequest, failed(MessageMissingFirmwareVersion))
		require.Equal(t, "0.0.0", e.getVersion(t))
	})

	t.Run("multipart_value_at_limit", func(t *testing.T) {
		e := newTestEndpoint(t)
		version := strings.Repeat("1", maxFormOverhead)
		recorder := e.do(newMultipartRequest(t,
			valueField(FormFieldFirmwareVersion, version),
			fileField(FormFieldFile, "fw.bin", "fw"),
		))
		requireJSON(t, recorder, http.StatusOK, map[string]any{"ok": true, "version": version})
		require.Equal(t, version, e.getVersion(t))
	})

	t.Run("urlencoded_body_over_limit", func(t *testing.T) {
		e := newTestEndpoint(t)
		body := "note=" + strings.Repeat("a", maxFormOverhead) + "&" + FormFieldFirmwareVersion + "=01.02.125"
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		requireJSON(t, e.do(request), http.StatusBadRequest, failed(MessageMissingFirmwareVersion))
	})
}

func TestReadURLEncodedKeepsCompletePairs(t *testing.T) {
	form := newUploadForm(t.TempDir())
	body := FormFieldFirmwareVersion + "=01.02.125&note=" + strings.Repeat("a", maxFormOverhead)
	form.readURLEncoded(strings.NewReader(body))

	require.ErrorAs(t, form.ParseErr, &ErrValueTooLong{})
	version, ok := form.Value(FormFieldFirmwareVersion)
	require.True(t, ok)
	require.Equal(t, "01.02.125", version)
	_, ok = form.Value("note")
	require.False(t, ok)
}

func TestPublishUploadErrors(t *testing.T) {
	t.Run("too_large", func(t *testing.T) {
		e := newTestEndpoint(t, OptionMaxUploadSize(4))

		recorder := e.do(newMultipartRequest(t,
			valueField(FormFieldFirmwareVersion, "01.02.125"),
			fileField(FormFieldFile, "fw.bin", "12345"),
		))
		requireJSON(t, recorder, http.StatusBadRequest, map[string]any{
			"ok": false, "error": MessageUploadError, "code": float64(UploadErrTooLarge),
		})

		recorder = e.do(newMultipartRequest(t,
			valueField(FormFieldFirmwareVersion, "01.02.125"),
			fileField(FormFieldFile, "fw.bin", "1234"),
		))
		requireJSON(t, recorder, http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
	})

	t.Run("partial", func(t *testing.T) {
		e := newTestEndpoint(t)

		body := strings.Join([]string{
			"--xxx",
			`Content-Disposition: form-data; name="firmware_version"`,
			"",
			"01.02.125",
			"--xxx",
			`Content-Disposition: form-data; name="file"; filename="fw.bin"`,
			"Content-Type: application/octet-stream",
			"",
			"truncated firmw",
		}, "\r\n")
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		request.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")

		requireJSON(t, e.do(request), http.StatusBadRequest, map[string]any{
			"ok": false, "error": MessageUploadError, "code": float64(UploadErrPartial),
		})

		entries, err := os.ReadDir(e.UploadDir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("no_upload_dir", func(t *testing.T) {
		e := newTestEndpoint(t, OptionUploadDir(filepath.Join(t.TempDir(), "missing")))

		requireJSON(t, e.do(validPublishRequest(t, "01.02.125")), http.StatusBadRequest, map[string]any{
			"ok": false, "error": MessageUploadError, "code": float64(UploadErrNoTmpDir),
		})
	})
}

func TestPublishToken(t *testing.T) {
	const token = "secret123"

	t.Run("no_credential", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(token))
		requireJSON(t, e.do(validPublishRequest(t, "01.02.125")), http.StatusUnauthorized, failed(MessageUnauthorized))
		require.Equal(t, "0.0.0", e.getVersion(t))
	})

	t.Run("wrong_header", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(token))
		request := validPublishRequest(t, "01.02.125")
		request.Header.Set(HTTPHeaderAPIKey, "secret1234")
		requireJSON(t, e.do(request), http.StatusUnauthorized, failed(MessageUnauthorized))
	})

	t.Run("header", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(token))
		request := validPublishRequest(t, "01.02.125")
		request.Header.Set(HTTPHeaderAPIKey, token)
		requireJSON(t, e.do(request), http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
		require.Equal(t, "01.02.125", e.getVersion(t))
	})

	t.Run("form_field", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(token))
		request := newMultipartRequest(t,
			valueField(FormFieldToken, token),
			valueField(FormFieldFirmwareVersion, "01.02.125"),
			fileField(FormFieldFile, "fw.bin", "fw"),
		)
		requireJSON(t, e.do(request), http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
	})

	t.Run("header_is_preferred", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(token))
		request := newMultipartRequest(t,
			valueField(FormFieldToken, token),
			valueField(FormFieldFirmwareVersion, "01.02.125"),
			fileField(FormFieldFile, "fw.bin", "fw"),
		)
		request.Header.Set(HTTPHeaderAPIKey, "")
		requireJSON(t, e.do(request), http.StatusUnauthorized, failed(MessageUnauthorized))
	})

	t.Run("checked_before_fields", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(token))
		requireJSON(t, e.do(newMultipartRequest(t)), http.StatusUnauthorized, failed(MessageUnauthorized))
	})

	t.Run("not_configured", func(t *testing.T) {
		e := newTestEndpoint(t, OptionAuthToken(""))
		request := validPublishRequest(t, "01.02.125")
		request.Header.Set(HTTPHeaderAPIKey, "anything")
		requireJSON(t, e.do(request), http.StatusOK, map[string]any{"ok": true, "version": "01.02.125"})
	})
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEndpoint(t)
	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			recorder := e.do(httptest.NewRequest(method, "/", nil))
			require.Equal(t, "GET, POST", recorder.Header().Get("Allow"))
			if method == http.MethodHead {
				require.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
				return
			}
			requireJSON(t, recorder, http.StatusMethodNotAllowed, failed(MessageMethodNotAllowed))
		})
	}
}

type failingStore struct {
	releasestore.Store
	WriteErr error
}

func (s failingStore) WriteRelease(ctx context.Context, version string, firmware []byte) error {
	return s.WriteErr
}

func TestPublishStorageFailure(t *testing.T) {
	for _, tc := range []struct {
		Err     error
		Message string
	}{
		{Err: releasestore.ErrSaveFirmware{Err: fmt.Errorf("disk full")}, Message: MessageSaveFirmware},
		{Err: releasestore.ErrWriteVersion{Err: fmt.Errorf("disk full")}, Message: MessageWriteVersion},
		{Err: fmt.Errorf("unexpected"), Message: MessageSaveFirmware},
	} {
		t.Run(tc.Message, func(t *testing.T) {
			e := newTestEndpoint(t)
			e.Store = failingStore{Store: e.Store, WriteErr: tc.Err}

			requireJSON(t, e.do(validPublishRequest(t, "01.02.125")), http.StatusInternalServerError, failed(tc.Message))
		})
	}
}

func TestFailureError(t *testing.T) {
	code := UploadErrPartial
	f := &Failure{Kind: KindBadRequest, Message: MessageUploadError, Code: &code}
	assert.Equal(t, "bad_request: upload error (code 3: partially uploaded)", f.Error())
	assert.Equal(t, http.StatusBadRequest, f.Kind.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.StatusCode())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthorized.StatusCode())
}
