package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Option customizes a store built by New.
type Option func(*options)

type options struct {
	prefix     string
	region     string
	endpoint   string
	usePath    bool
	upload     UploadConfig
	configOpts []func(*config.LoadOptions) error
}

// WithPrefix sets the root prefix prepended to all blob names.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion overrides the region from the ambient AWS configuration.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points the client at a custom S3-compatible endpoint and
// switches to path-style addressing, as such endpoints usually require.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.endpoint = url
		o.usePath = true
	}
}

// WithUploadConfig overrides the streaming upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) { o.upload = cfg }
}

// WithLoadOptions appends raw AWS config load options, for credentials
// providers and other settings without a dedicated Option.
func WithLoadOptions(opts ...func(*config.LoadOptions) error) Option {
	return func(o *options) { o.configOpts = append(o.configOpts, opts...) }
}

// New builds a store over a client configured from the environment
// (credentials chain, shared config files, IMDS).
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	o := options{upload: DefaultUploadConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	loadOpts := o.configOpts
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = &o.endpoint
		}
		so.UsePathStyle = o.usePath
	})

	store := NewStore(client, bucket, o.prefix)
	store.upload = o.upload
	return store, nil
}
