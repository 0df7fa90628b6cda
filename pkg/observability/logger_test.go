package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/firmware-publisher/pkg/observability/hooks/logentryfingerprint"
)

func TestLogFormat(t *testing.T) {
	var format LogFormat
	require.Equal(t, "text", format.String())

	require.NoError(t, format.Set("JSON"))
	require.Equal(t, LogFormatJSON, format)

	require.Error(t, format.Set("xml"))
	require.Equal(t, LogFormatJSON, format)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(context.Background(), LogFormatJSON, &buf)
	l.WithField("firmware_version", "01.02.125").Infof("published %d bytes", 10)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	require.Equal(t, "published 10 bytes", entry["msg"])
	require.Equal(t, "01.02.125", entry["firmware_version"])
	require.Contains(t, entry, logentryfingerprint.FieldKey)
}
