// Package s3object provides a shared view of an S3 object's current version.
//
// The object is polled with HeadObject; consumers see a new Version whenever
// the ETag, size or modification time changes, or the object appears or
// disappears.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "us-east-1", Credentials: creds})
//	impl := s3object.New(client, "my-bucket", "config/flags.json", 30*time.Second)
//	mixin := sharedstate.NewMixin(cache, sharedstate.Bind("flags", impl))
package s3object

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/reactivator/pkg/sharedstate"
)

// DefaultInterval is the poll interval used when none is given.
const DefaultInterval = 30 * time.Second

// HeadObjectAPI is the subset of *s3.Client used by the watcher.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Version identifies one revision of an object.
type Version struct {
	Exists       bool      `json:"exists"`
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

// String returns a short description of the version.
func (v Version) String() string {
	if !v.Exists {
		return "missing"
	}
	return fmt.Sprintf("%s (%d bytes, %s)", v.ETag, v.Size, v.LastModified.UTC().Format(time.RFC3339))
}

// Equal reports whether v and o describe the same revision.
func (v Version) Equal(o Version) bool {
	return v.Exists == o.Exists &&
		v.ETag == o.ETag &&
		v.Size == o.Size &&
		v.LastModified.Equal(o.LastModified)
}

// Watcher reads object versions.
type Watcher struct {
	api     HeadObjectAPI
	bucket  string
	key     string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithTimeout bounds each HeadObject request.
func WithTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a Watcher for bucket/key.
func NewWatcher(api HeadObjectAPI, bucket, key string, opts ...Option) *Watcher {
	w := &Watcher{
		api:     api,
		bucket:  bucket,
		key:     key,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("bucket", bucket, "key", key)
	return w
}

// Head returns the object's current version.
// A missing object is reported as a Version with Exists false and no error.
func (w *Watcher) Head(ctx context.Context) (Version, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	out, err := w.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Version{}, nil
		}
		return Version{}, fmt.Errorf("head s3://%s/%s: %w", w.bucket, w.key, err)
	}
	return Version{
		Exists:       true,
		ETag:         aws.ToString(out.ETag),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// current returns the version, logging and returning the zero Version on
// failure.
func (w *Watcher) current(ctx context.Context) Version {
	v, err := w.Head(ctx)
	if err != nil {
		w.logger.Warn("s3 head failed", "error", err)
	}
	return v
}

// New returns an Implementation that polls bucket/key every interval.
func New(api HeadObjectAPI, bucket, key string, interval time.Duration, opts ...Option) *sharedstate.Implementation[Version] {
	return NewFromWatcher(NewWatcher(api, bucket, key, opts...), interval)
}

// NewFromWatcher returns an Implementation backed by w.
func NewFromWatcher(w *Watcher, interval time.Duration) *sharedstate.Implementation[Version] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	read := func() Version {
		return w.current(context.Background())
	}
	return &sharedstate.Implementation[Version]{
		Name:         "s3object",
		InitialState: read,
		SSRState:     read,
		Listen: func(onChange func(Version)) func() {
			ctx, cancel := context.WithCancel(context.Background())
			go w.poll(ctx, interval, onChange)

			var once sync.Once
			return func() { once.Do(cancel) }
		},
	}
}

func (w *Watcher) poll(ctx context.Context, interval time.Duration, onChange func(Version)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Version
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := w.Head(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.logger.Warn("s3 head failed", "error", err)
				continue
			}
			if first || !v.Equal(last) {
				first = false
				last = v
				onChange(v)
			}
		}
	}
}
