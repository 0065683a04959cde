package blobstore

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Store and throttles byte throughput through a shared
// token bucket. Reads and writes draw from the same limiter, so a store
// shared between savers and loaders stays within one global budget.
type RateLimited struct {
	inner   Store
	limiter *rate.Limiter
}

// defaultBurst is used when no positive burst size is given. A non-positive
// burst would make every wait spin without consuming budget.
const defaultBurst = 64 << 10

// NewRateLimited wraps inner with a limit of bytesPerSecond and the given
// burst size in bytes. A burst smaller than 1 falls back to defaultBurst.
func NewRateLimited(inner Store, bytesPerSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// wait blocks until n bytes of budget are available, splitting requests
// larger than the burst size.
func (s *RateLimited) wait(ctx context.Context, n int) error {
	for n > 0 {
		chunk := n
		if chunk > s.limiter.Burst() {
			chunk = s.limiter.Burst()
		}
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Open opens a blob whose reads are throttled. The context given here also
// bounds the waits of later ReadAt calls.
func (s *RateLimited) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &rateLimitedBlob{inner: b, store: s, ctx: ctx}, nil
}

// Create creates a writable blob whose writes are throttled.
func (s *RateLimited) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &rateLimitedWritableBlob{inner: w, store: s, ctx: ctx}, nil
}

// Put writes a blob atomically, after acquiring budget for its full size.
func (s *RateLimited) Put(ctx context.Context, name string, data []byte) error {
	if err := s.wait(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

// Delete removes a blob. Metadata operations are not throttled.
func (s *RateLimited) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns the names of all blobs matching the prefix.
func (s *RateLimited) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type rateLimitedBlob struct {
	inner Blob
	store *RateLimited
	ctx   context.Context
}

func (b *rateLimitedBlob) ReadAt(p []byte, off int64) (int, error) {
	if err := b.store.wait(b.ctx, len(p)); err != nil {
		return 0, err
	}
	return b.inner.ReadAt(p, off)
}

func (b *rateLimitedBlob) Size() int64 { return b.inner.Size() }

func (b *rateLimitedBlob) Close() error { return b.inner.Close() }

type rateLimitedWritableBlob struct {
	inner WritableBlob
	store *RateLimited
	ctx   context.Context
}

func (w *rateLimitedWritableBlob) Write(p []byte) (int, error) {
	if err := w.store.wait(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.inner.Write(p)
}

func (w *rateLimitedWritableBlob) Sync() error { return w.inner.Sync() }

func (w *rateLimitedWritableBlob) Close() error { return w.inner.Close() }
