package formatter

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestCompactText(t *testing.T) {
	entry := func(data logrus.Fields) *logrus.Entry {
		return &logrus.Entry{
			Time:    time.Date(2001, 02, 03, 04, 05, 06, 07, time.UTC),
			Data:    data,
			Level:   logrus.WarnLevel,
			Message: "msg",
		}
	}

	t.Run("integer_field", func(t *testing.T) {
		b, err := (&CompactText{
			FieldAllowList: []string{"someIntegerField"},
		}).Format(entry(logrus.Fields{
			"someIntegerField": 1,
			"otherField":       2,
		}))
		require.NoError(t, err)
		require.Equal(t, "[2001-02-03T04:05:06Z W] msg\tsomeIntegerField=1\n", string(b))
	})

	t.Run("deny_list", func(t *testing.T) {
		b, err := (&CompactText{
			FieldDenyList: []string{"pid"},
		}).Format(entry(logrus.Fields{
			"pid":              1,
			"firmware_version": "01.02.125",
		}))
		require.NoError(t, err)
		require.Equal(t, "[2001-02-03T04:05:06Z W] msg\tfirmware_version=01.02.125\n", string(b))
	})

	t.Run("quoting", func(t *testing.T) {
		b, err := (&CompactText{
			TimestampFormat: "15:04",
		}).Format(entry(logrus.Fields{
			"error": `failed to save "firmware.bin"`,
			"path":  "/",
		}))
		require.NoError(t, err)
		require.Equal(t, "[04:05 W] msg\terror=\"failed to save \\\"firmware.bin\\\"\"\tpath=/\n", string(b))
	})
}
