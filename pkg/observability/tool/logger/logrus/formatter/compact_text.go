package formatter

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var logLevelSymbol []byte

func init() {
	logLevelSymbol = make([]byte, len(logrus.AllLevels)+1)
	for _, level := range logrus.AllLevels {
		logLevelSymbol[level] = strings.ToUpper(level.String()[:1])[0]
	}
}

// CompactText is a logrus formatter which prints laconic lines, like
//
//	[12:34 W endpoint.go:56] POST request rejected	firmware_version=01.02.125
//
// Field values containing spaces, tabs, quotes or '=' are quoted.
type CompactText struct {
	TimestampFormat string

	// FieldAllowList if not nil is the list of the only fields to print.
	FieldAllowList []string

	// FieldDenyList is the list of fields never printed.
	FieldDenyList []string
}

func (f *CompactText) isPrinted(key string) bool {
	for _, denied := range f.FieldDenyList {
		if key == denied {
			return false
		}
	}
	if f.FieldAllowList == nil {
		return true
	}
	for _, allowed := range f.FieldAllowList {
		if key == allowed {
			return true
		}
	}
	return false
}

func formatValue(value any) string {
	s := fmt.Sprint(value)
	if strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// Format implements logrus.Formatter.
func (f *CompactText) Format(entry *logrus.Entry) ([]byte, error) {
	var str, header strings.Builder
	timestamp := time.RFC3339
	if f.TimestampFormat != "" {
		timestamp = f.TimestampFormat
	}
	fmt.Fprintf(&header, "%s %c", entry.Time.Format(timestamp), logLevelSymbol[entry.Level])
	if entry.Caller != nil {
		fmt.Fprintf(&header, " %s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	fmt.Fprintf(&str, "[%s] %s", header.String(), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if f.isPrinted(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(&str, "\t%s=%s", key, formatValue(entry.Data[key]))
	}

	str.WriteByte('\n')
	return []byte(str.String()), nil
}
