package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/fetcher"
)

// DefaultMaxEntryBytes caps the size of a single cached response.
const DefaultMaxEntryBytes = 32 << 20

// CachingFetcher serves Download from the cache and fills it from the
// wrapped fetcher. Cache errors are logged and never fail a download.
type CachingFetcher struct {
	next     fetcher.Fetcher
	cache    *Cache
	ttl      time.Duration
	maxBytes int64
}

// NewCachingFetcher wraps next with cache. Entries live for ttl.
func NewCachingFetcher(next fetcher.Fetcher, cache *Cache, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{next: next, cache: cache, ttl: ttl, maxBytes: DefaultMaxEntryBytes}
}

// CacheKey derives the cache key for a URL. Secret query parameters are
// redacted first so keys never embed them.
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(fetcher.RedactURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// Download implements fetcher.Fetcher.
func (c *CachingFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	key := CacheKey(rawURL)
	logURL := fetcher.RedactURL(rawURL)

	body, err := c.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("store: cache read failed", zap.String("url", logURL), zap.Error(err))
	} else if body != nil {
		zap.L().Debug("store: cache hit", zap.String("url", logURL))
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	rc, err := c.next.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(io.LimitReader(rc, c.maxBytes+1))
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	if int64(len(buf)) > c.maxBytes {
		zap.L().Debug("store: response too large to cache", zap.String("url", logURL))
		return &multiReadCloser{Reader: io.MultiReader(bytes.NewReader(buf), rc), closer: rc}, nil
	}
	_ = rc.Close()

	if err := c.cache.Set(ctx, key, buf, c.ttl); err != nil {
		zap.L().Warn("store: cache write failed", zap.String("url", logURL), zap.Error(err))
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

type multiReadCloser struct {
	io.Reader
	closer io.Closer
}

func (m *multiReadCloser) Close() error { return m.closer.Close() }
