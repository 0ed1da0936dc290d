package user

import (
	"context"
	"time"

	fileapp "recordhub/application/file"

	"go.uber.org/zap"
)

// Retrier reruns fn on retryable failures such as a stale version.
type Retrier func(ctx context.Context, fn func(ctx context.Context) error) error

func noRetry(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type options struct {
	retry    Retrier
	log      *zap.Logger
	prefixes fileapp.URLPrefixes
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*options)

func WithRetrier(r Retrier) Option {
	return func(o *options) {
		if r != nil {
			o.retry = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithURLPrefixes 用于拼接注册时上传的简历地址
func WithURLPrefixes(p fileapp.URLPrefixes) Option {
	return func(o *options) {
		if len(p) > 0 {
			o.prefixes = p
		}
	}
}

// WithAuthCodeTTL 只对 AuthCodeService 生效
func WithAuthCodeTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		retry:    noRetry,
		prefixes: fileapp.DefaultURLPrefixes,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
