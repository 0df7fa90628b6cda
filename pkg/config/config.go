// Package config is the configuration of the publisher daemon.
//
// Values are taken from the defaults, then from a YAML file (if given
// with --config) and then from the command line options explicitly set.
// The publish token is taken only from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/immune-gmbh/firmware-publisher/pkg/observability"
	"github.com/immune-gmbh/firmware-publisher/pkg/publish"
	"github.com/immune-gmbh/firmware-publisher/pkg/server"
)

// EnvAuthToken is the environment variable with the publish token.
const EnvAuthToken = "FW_PUBLISH_TOKEN"

// LogLevel is a logger.Level which could be read from YAML and used
// as a pflag.Value.
type LogLevel struct {
	logger.Level
}

// Set implements pflag.Value.
func (l *LogLevel) Set(s string) error {
	return l.Level.Set(s)
}

// Type implements pflag.Value.
func (l *LogLevel) Type() string {
	return "level"
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	return l.Level.Set(value.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (l LogLevel) MarshalYAML() (any, error) {
	return l.Level.String(), nil
}

// Config is the configuration of fwpublishd.
type Config struct {
	ListenAddr            string                  `yaml:"listen_addr"`
	StorageURL            string                  `yaml:"storage_url"`
	UploadDir             string                  `yaml:"upload_dir"`
	MaxUploadSize         int64                   `yaml:"max_upload_size"`
	CacheSize             uint64                  `yaml:"cache_size"`
	WatchStorage          bool                    `yaml:"watch_storage"`
	MaxConcurrentRequests uint                    `yaml:"max_concurrent_requests"`
	ShutdownTimeout       time.Duration           `yaml:"shutdown_timeout"`
	NetPprofAddr          string                  `yaml:"net_pprof_addr"`
	LogLevel              LogLevel                `yaml:"log_level"`
	LogFormat             observability.LogFormat `yaml:"log_format"`

	// AuthToken is never read from the file or flags.
	AuthToken string `yaml:"-"`
}

// Default returns the configuration used if nothing is overridden.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		StorageURL:      "fs://./public",
		UploadDir:       os.TempDir(),
		MaxUploadSize:   publish.DefaultMaxUploadSize,
		CacheSize:       64 << 20,
		WatchStorage:    true,
		ShutdownTimeout: server.DefaultShutdownTimeout,
		LogLevel:        LogLevel{Level: logger.LevelInfo},
		LogFormat:       observability.LogFormatText,
	}
}

func (cfg *Config) registerFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "the address to listen for HTTP requests at")
	flagSet.StringVar(&cfg.StorageURL, "storage-url", cfg.StorageURL, "where to keep the release: fs://<dir>, fs+atomic://<dir>, bolt://<file> or mysql://<DSN>")
	flagSet.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "the directory to spool uploaded files to")
	flagSet.Int64Var(&cfg.MaxUploadSize, "max-upload-size", cfg.MaxUploadSize, "the maximal size of an uploaded firmware image in bytes")
	flagSet.Uint64Var(&cfg.CacheSize, "cache-size", cfg.CacheSize, "the memory limit of the release cache in bytes, zero disables the cache")
	flagSet.BoolVar(&cfg.WatchStorage, "watch-storage", cfg.WatchStorage, "drop the cache when the files of an fs storage are changed by somebody else")
	flagSet.UintVar(&cfg.MaxConcurrentRequests, "max-concurrent-requests", cfg.MaxConcurrentRequests, "reply 503 to requests above this amount of concurrent ones, zero means no limit")
	flagSet.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long to wait for running requests on shutdown")
	flagSet.StringVar(&cfg.NetPprofAddr, "net-pprof-addr", cfg.NetPprofAddr, "if non-empty then listens with net/http/pprof")
	flagSet.Var(&cfg.LogLevel, "log-level", "logging level")
	flagSet.Var(&cfg.LogFormat, "log-format", "logging format: text or json")
}

// Parse builds the configuration from the command line arguments (without
// the program name) and the environment.
func Parse(args []string, getenv func(string) string) (Config, error) {
	flagCfg := Default()
	flagSet := pflag.NewFlagSet("fwpublishd", pflag.ContinueOnError)
	flagCfg.registerFlags(flagSet)
	configPath := flagSet.String("config", "", "path to a YAML configuration file")
	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}
	if flagSet.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg := Default()
	if *configPath != "" {
		var err error
		cfg, err = LoadFile(*configPath)
		if err != nil {
			return Config{}, err
		}
	}

	// the options set explicitly take precedence over the file
	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	cfg.registerFlags(overrides)
	var overrideErr error
	flagSet.Visit(func(f *pflag.Flag) {
		if overrides.Lookup(f.Name) == nil || overrideErr != nil {
			return
		}
		overrideErr = overrides.Set(f.Name, f.Value.String())
	})
	if overrideErr != nil {
		return Config{}, overrideErr
	}

	cfg.AuthToken = getenv(EnvAuthToken)
	return cfg, cfg.Validate()
}

// LoadFile reads the YAML file over the default configuration.
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config file '%s': %w", path, err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("unable to parse config file '%s': %w", path, err)
	}
	return cfg, nil
}

// Validate returns an error if the configuration is unusable.
func (cfg Config) Validate() error {
	switch {
	case cfg.ListenAddr == "":
		return fmt.Errorf("listen address is not set")
	case cfg.StorageURL == "":
		return fmt.Errorf("storage URL is not set")
	case cfg.MaxUploadSize <= 0:
		return fmt.Errorf("max upload size should be positive, but is %d", cfg.MaxUploadSize)
	case cfg.MaxUploadSize > publish.MaxUploadSizeLimit:
		return fmt.Errorf("max upload size should not exceed %d, but is %d", publish.MaxUploadSizeLimit, cfg.MaxUploadSize)
	}
	var logFormat observability.LogFormat
	if err := logFormat.Set(cfg.LogFormat.String()); err != nil {
		return err
	}
	return nil
}
