package observability

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"

	"github.com/immune-gmbh/firmware-publisher/pkg/observability/hooks/logentryfingerprint"
	"github.com/immune-gmbh/firmware-publisher/pkg/observability/tool/logger/logrus/formatter"
)

// LogFormat is the format of log lines, it implements pflag.Value.
type LogFormat string

const (
	// LogFormatText is laconic human-readable lines, see formatter.CompactText.
	LogFormatText = LogFormat("text")

	// LogFormatJSON is a JSON object per line.
	LogFormatJSON = LogFormat("json")
)

func (f LogFormat) String() string {
	if f == "" {
		return string(LogFormatText)
	}
	return string(f)
}

// Set implements pflag.Value.
func (f *LogFormat) Set(s string) error {
	switch LogFormat(strings.ToLower(s)) {
	case LogFormatText:
		*f = LogFormatText
	case LogFormatJSON:
		*f = LogFormatJSON
	default:
		return fmt.Errorf("unknown log format '%s', expected '%s' or '%s'", s, LogFormatText, LogFormatJSON)
	}
	return nil
}

// Type implements pflag.Value.
func (f LogFormat) Type() string {
	return "string"
}

func (f LogFormat) logrusFormatter() logrus.Formatter {
	if f == LogFormatJSON {
		return &logrus.JSONFormatter{}
	}
	return &formatter.CompactText{}
}

// NewLogger returns the Logger used by the publisher daemon and CLI.
//
// If out is nil, logs are written to stderr.
func NewLogger(ctx context.Context, format LogFormat, out io.Writer) logger.Logger {
	l := xlogrus.DefaultLogrusLogger()
	l.Formatter = format.logrusFormatter()
	if out != nil {
		l.Out = out
	}

	result := xlogrus.New(l)
	result = result.WithPreHooks(logentryfingerprint.PreHook{})
	result = result.WithLevel(logger.LevelTrace)
	return result
}
