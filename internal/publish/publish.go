// Package publish uploads a results tree to an OCI Object Storage bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/signalnine/benchshard/internal/progress"
	"github.com/signalnine/benchshard/internal/runner"
)

const maxAttempts = 3

type Options struct {
	Bucket      string
	Namespace   string
	Prefix      string
	Concurrency int
	// RateLimit caps PutObject calls per second; zero means unlimited.
	RateLimit float64
	Progress  io.Writer
	Logger    *zap.Logger
	// Backoff is the pause before the first retry; it doubles per attempt.
	Backoff time.Duration
}

type Report struct {
	Namespace string
	Objects   []string
	Bytes     int64
}

type Publisher struct {
	store ObjectStore
	opts  Options
	log   *zap.Logger
}

func New(store ObjectStore, opts Options) *Publisher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{store: store, opts: opts, log: log}
}

type upload struct {
	local  string
	object string
	size   int64
}

// Publish uploads every regular file under each root to
// <prefix>/<base(root)>/<relative path>. All upload failures are returned joined.
func (p *Publisher) Publish(ctx context.Context, roots ...string) (*Report, error) {
	if p.opts.Bucket == "" {
		return nil, errors.New("publish: bucket is required")
	}
	namespace, err := p.namespace(ctx)
	if err != nil {
		return nil, err
	}

	var uploads []upload
	for _, root := range roots {
		found, err := collect(root, p.opts.Prefix)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, found...)
	}

	var limiter *rate.Limiter
	if p.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.opts.RateLimit), max(1, int(p.opts.RateLimit)))
	}

	bar := progress.New(int64(len(uploads)), p.opts.Progress)
	bar.SetCaption("Uploading")
	defer bar.Finish()

	report := &Report{Namespace: namespace}
	var mu sync.Mutex
	jobs := make([]runner.Job, len(uploads))
	for i, u := range uploads {
		jobs[i] = func(ctx context.Context) error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return fmt.Errorf("%s: %w", u.object, err)
				}
			}
			if err := p.put(ctx, namespace, u); err != nil {
				return err
			}
			mu.Lock()
			report.Objects = append(report.Objects, u.object)
			report.Bytes += u.size
			mu.Unlock()
			bar.Increment()
			return nil
		}
	}
	errs := runner.RunPool(ctx, p.opts.Concurrency, jobs)
	sort.Strings(report.Objects)
	if len(errs) > 0 {
		return report, fmt.Errorf("%d of %d uploads failed: %w", len(errs), len(uploads), errors.Join(errs...))
	}
	return report, nil
}

func (p *Publisher) namespace(ctx context.Context) (string, error) {
	if p.opts.Namespace != "" {
		return p.opts.Namespace, nil
	}
	resp, err := p.store.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
	if err != nil {
		return "", fmt.Errorf("fetching namespace: %w", err)
	}
	if resp.Value == nil {
		return "", errors.New("fetching namespace: empty response")
	}
	p.log.Debug("fetched namespace", zap.String("namespace", *resp.Value))
	return *resp.Value, nil
}

func (p *Publisher) put(ctx context.Context, namespace string, u upload) error {
	backoff := p.opts.Backoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = p.putOnce(ctx, namespace, u)
		if err == nil || !retryable(err) || attempt == maxAttempts {
			break
		}
		p.log.Warn("upload throttled, retrying",
			zap.String("object", u.object),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", u.object, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		return fmt.Errorf("uploading %s: %w", u.object, err)
	}
	return nil
}

func (p *Publisher) putOnce(ctx context.Context, namespace string, u upload) error {
	f, err := os.Open(u.local)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = p.store.PutObject(ctx, objectstorage.PutObjectRequest{
		NamespaceName: common.String(namespace),
		BucketName:    common.String(p.opts.Bucket),
		ObjectName:    common.String(u.object),
		ContentLength: common.Int64(u.size),
		PutObjectBody: f,
	})
	return err
}

// retryable reports throttling and server-side failures.
func retryable(err error) bool {
	serviceErr, ok := common.IsServiceError(err)
	if !ok {
		return false
	}
	code := serviceErr.GetHTTPStatusCode()
	return code == 429 || code >= 500
}

func collect(root, prefix string) ([]upload, error) {
	base := filepath.Base(filepath.Clean(root))
	var uploads []upload
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		uploads = append(uploads, upload{
			local:  p,
			object: path.Join(prefix, base, filepath.ToSlash(rel)),
			size:   info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return uploads, nil
}
