package commands

import (
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Config is the configuration shared by all commands of fwpublish.
type Config struct {
	IsQuiet        bool
	URL            string
	APIKey         string
	RemoteLogLevel logger.Level
	Hostname       string
}
