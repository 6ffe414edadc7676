package colfile

import (
	"github.com/rs/zerolog"
)

// DefaultMaxBlockSize bounds the size of a single data block a writer will
// produce and a reader will load.
const DefaultMaxBlockSize int64 = 1 << 30

type config struct {
	logger       zerolog.Logger
	maxBlockSize int64
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger:       zerolog.Nop(),
		maxBlockSize: DefaultMaxBlockSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Writer or Reader.
type Option func(*config)

// WithLogger sets the logger used for block level events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithMaxBlockSize limits data blocks, header included, to n bytes. Writers
// reject larger batches with a validation error and readers refuse to load
// larger blocks. Non-positive values keep the default.
func WithMaxBlockSize(n int64) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.maxBlockSize = n
		}
	}
}
