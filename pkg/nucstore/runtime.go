package nucstore

import (
	"github.com/nucstore/nucstore_sdk_go/pkg/soda"
	"github.com/nucstore/nucstore_sdk_go/pkg/tiles"
)

// NewFromEnv initialises the document client and a tile extractor from
// environment variables and returns the resolved runtime mode ("http" or
// "mock"). See soda.NewFromEnv for the variables involved.
func NewFromEnv(opts ...Option) (*soda.Client, *tiles.Extractor, string, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	client, mode, err := soda.NewFromEnv(cfg.sodaOpts...)
	if err != nil {
		return nil, nil, "", err
	}
	extractor, err := tiles.New(client, cfg.tileOpts...)
	if err != nil {
		return nil, nil, "", err
	}
	return client, extractor, mode, nil
}

// Option forwards configuration to the underlying client and extractor.
type Option func(*config)

type config struct {
	sodaOpts []soda.Option
	tileOpts []tiles.Option
}

// WithClientOptions forwards options to the soda client.
func WithClientOptions(opts ...soda.Option) Option {
	return func(c *config) {
		c.sodaOpts = append(c.sodaOpts, opts...)
	}
}

// WithTileOptions forwards options to the tile extractor.
func WithTileOptions(opts ...tiles.Option) Option {
	return func(c *config) {
		c.tileOpts = append(c.tileOpts, opts...)
	}
}
