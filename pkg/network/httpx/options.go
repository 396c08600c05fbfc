package httpx

import (
	"time"

	"github.com/korobochka/social/pkg/logger"
)

type Options struct {
	Https       bool
	HttpsCert   string
	HttpsKey    string
	HttpsDomain string

	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *logger.Logger
}

type Option func(*Options)

func (o *Options) override(options ...Option) {
	for _, option := range options {
		option(o)
	}
}

// IsAutoHttpsCert reports whether a certificate should be
// requested from Let's Encrypt instead of read from files.
func (o *Options) IsAutoHttpsCert() bool { return o.HttpsDomain != "" && o.HttpsCert == "" }

func WithLogger(log *logger.Logger) Option { return func(o *Options) { o.Logger = log } }

func HttpsCert(cert, key string) Option {
	return func(o *Options) { o.HttpsCert, o.HttpsKey = cert, key }
}

func WithTLS(domain string) Option {
	return func(o *Options) { o.Https, o.HttpsDomain = true, domain }
}
