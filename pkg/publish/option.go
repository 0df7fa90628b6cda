package publish

import (
	"os"
)

const (
	miB = 1 << 20

	// DefaultMaxUploadSize is the default limit of a single uploaded file.
	DefaultMaxUploadSize = 32 * miB

	// MaxUploadSizeLimit is the largest accepted value of the limit of a
	// single uploaded file.
	MaxUploadSizeLimit = 4096 * miB

	// maxFormOverhead is how much of a request body may be spent on
	// everything besides the uploaded file.
	maxFormOverhead = 1 * miB
)

type config struct {
	AuthToken     []byte
	MaxUploadSize int64
	UploadDir     string
}

func defaultConfig() config {
	return config{
		MaxUploadSize: DefaultMaxUploadSize,
		UploadDir:     os.TempDir(),
	}
}

// Option is an abstract option for New.
type Option interface {
	apply(*config)
}

// OptionAuthToken sets the shared secret required to publish a release.
// An empty token means publishing is not protected.
type OptionAuthToken string

func (opt OptionAuthToken) apply(cfg *config) {
	cfg.AuthToken = []byte(opt)
}

// OptionMaxUploadSize limits the size of an uploaded firmware image.
// Values above MaxUploadSizeLimit are lowered to it, non-positive values
// mean DefaultMaxUploadSize.
type OptionMaxUploadSize int64

func (opt OptionMaxUploadSize) apply(cfg *config) {
	switch {
	case opt <= 0:
		cfg.MaxUploadSize = DefaultMaxUploadSize
	case opt > MaxUploadSizeLimit:
		cfg.MaxUploadSize = MaxUploadSizeLimit
	default:
		cfg.MaxUploadSize = int64(opt)
	}
}

// OptionUploadDir sets the directory uploaded files are spooled to.
type OptionUploadDir string

func (opt OptionUploadDir) apply(cfg *config) {
	cfg.UploadDir = string(opt)
}
