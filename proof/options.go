package proof

import (
	"github.com/rs/zerolog"

	"github.com/verisql/verisql/logger"
)

// Option tweaks prover and verifier behavior.
type Option func(*config)

type config struct {
	log     zerolog.Logger
	nbTasks int
}

func defaultConfig(opts ...Option) config {
	cfg := config{log: logger.Logger(), nbTasks: 0}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger overrides the package logger for one call.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithNbTasks caps the number of goroutines used by the data-parallel loops.
func WithNbTasks(n int) Option {
	return func(c *config) { c.nbTasks = n }
}
