package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/reactivator/internal/config"
	"github.com/vango-dev/reactivator/internal/errors"
	"github.com/vango-dev/reactivator/pkg/sharedstate"
	"github.com/vango-dev/reactivator/pkg/sources/clock"
	"github.com/vango-dev/reactivator/pkg/sources/netstatus"
	"github.com/vango-dev/reactivator/pkg/sources/s3object"
)

// sourceKey identifies a source by its configuration, so bindings with the
// same source settings share one Implementation and therefore one store.
type sourceKey struct {
	source   string
	interval config.Duration
	timeout  config.Duration
	url      string
	bucket   string
	key      string
	region   string
	endpoint string
}

func keyOf(b config.BindingConfig) sourceKey {
	return sourceKey{
		source:   b.Source,
		interval: b.Interval,
		timeout:  b.Timeout,
		url:      b.URL,
		bucket:   b.Bucket,
		key:      b.Key,
		region:   b.Region,
		endpoint: b.Endpoint,
	}
}

// sourceBuilder turns validated binding configuration into mixin bindings.
type sourceBuilder struct {
	logger    *slog.Logger
	client    *http.Client
	newS3     func(b config.BindingConfig) s3object.HeadObjectAPI
	bindings  map[sourceKey]func(field string) sharedstate.Binding
	s3Clients map[string]s3object.HeadObjectAPI
}

func newSourceBuilder(logger *slog.Logger) *sourceBuilder {
	return &sourceBuilder{
		logger:    logger,
		client:    http.DefaultClient,
		newS3:     newS3Client,
		bindings:  make(map[sourceKey]func(string) sharedstate.Binding),
		s3Clients: make(map[string]s3object.HeadObjectAPI),
	}
}

// build returns one binding per configured field.
func (sb *sourceBuilder) build(cfg *config.Config) ([]sharedstate.Binding, error) {
	out := make([]sharedstate.Binding, 0, len(cfg.Bindings))
	for i, b := range cfg.Bindings {
		bind, err := sb.implementation(b)
		if err != nil {
			return nil, errors.FromError(err, errors.CodeSourceUnavailable).
				WithField(fmt.Sprintf("bindings[%d]", i))
		}
		out = append(out, bind(b.Field))
		sb.logger.Debug("binding configured", "field", b.Field, "source", describeBinding(b))
	}
	return out, nil
}

// implementation returns a binder for b's source, reusing the
// Implementation of an identically configured earlier binding.
func (sb *sourceBuilder) implementation(b config.BindingConfig) (func(string) sharedstate.Binding, error) {
	k := keyOf(b)
	if bind, ok := sb.bindings[k]; ok {
		return bind, nil
	}

	var bind func(string) sharedstate.Binding
	switch b.Source {
	case config.SourceClock:
		impl := clock.New(b.Interval.Duration(), nil)
		bind = func(field string) sharedstate.Binding { return sharedstate.Bind(field, impl) }

	case config.SourceNetStatus:
		prober := netstatus.NewProber(b.URL, sb.client, b.Timeout.Duration())
		impl := netstatus.New(prober, b.Interval.Duration())
		bind = func(field string) sharedstate.Binding { return sharedstate.Bind(field, impl) }

	case config.SourceS3Object:
		impl := s3object.New(sb.s3Client(b), b.Bucket, b.Key, b.Interval.Duration(),
			s3object.WithTimeout(b.Timeout.Duration()),
			s3object.WithLogger(sb.logger))
		bind = func(field string) sharedstate.Binding { return sharedstate.Bind(field, impl) }

	default:
		return nil, errors.New(errors.CodeUnknownSource).
			WithDetail(fmt.Sprintf("%q is not a known source", b.Source))
	}

	sb.bindings[k] = bind
	return bind, nil
}

// s3Client returns a client per region and endpoint.
func (sb *sourceBuilder) s3Client(b config.BindingConfig) s3object.HeadObjectAPI {
	k := b.Region + "|" + b.Endpoint
	if c, ok := sb.s3Clients[k]; ok {
		return c
	}
	c := sb.newS3(b)
	sb.s3Clients[k] = c
	return c
}

// newS3Client builds an S3 client from the binding's region and endpoint.
// Credentials come from the standard AWS environment variables; without
// them requests are sent anonymously, which suits public buckets.
func newS3Client(b config.BindingConfig) s3object.HeadObjectAPI {
	region := b.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:      region,
		Credentials: environmentCredentials(),
	}
	if b.Endpoint != "" {
		opts.BaseEndpoint = aws.String(b.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func environmentCredentials() aws.CredentialsProvider {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	token := os.Getenv("AWS_SESSION_TOKEN")
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "EnvironmentVariables",
		}, nil
	}))
}

// describeBinding returns a one-line description of a binding's source.
func describeBinding(b config.BindingConfig) string {
	var desc string
	switch b.Source {
	case config.SourceNetStatus:
		desc = "netstatus " + b.URL
	case config.SourceS3Object:
		desc = fmt.Sprintf("s3object s3://%s/%s", b.Bucket, b.Key)
	default:
		desc = b.Source
	}
	if b.Interval != 0 {
		desc += " every " + b.Interval.Duration().String()
	}
	return desc
}
