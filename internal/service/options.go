package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"hyperlearn/internal/digest"
	"hyperlearn/internal/metrics"
)

// Option customizes a service.
type Option func(*options)

type options struct {
	logger  *logrus.Logger
	now     func() time.Time
	digest  digest.Func
	hasher  digest.Hasher
	metrics metrics.Recorder
}

func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDigest sets the token digest used by the session manager.
func WithDigest(fn digest.Func) Option {
	return func(o *options) { o.digest = fn }
}

// WithHasher sets the credential hasher used by the credential store.
func WithHasher(h digest.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		digest:  digest.SHA256Hex,
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}
	if o.hasher == nil {
		o.hasher = digest.NewDigestHasher(o.digest)
	}
	return o
}
