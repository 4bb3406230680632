package certificate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SAP-F-2025/enrollment-service/internal/cache"
)

// ErrTemplateUnavailable marks a template that could not be fetched
var ErrTemplateUnavailable = errors.New("certificate template unavailable")

// maxTemplateBytes caps the template download
const maxTemplateBytes = 32 << 20

// TemplateSource provides the raster certificate template
type TemplateSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPTemplateSource downloads the template from a URL and keeps a copy in redis
type HTTPTemplateSource struct {
	url    string
	client *http.Client
	cache  *cache.CacheHelper
	ttl    time.Duration
}

func NewHTTPTemplateSource(url string, timeout time.Duration, cacheHelper *cache.CacheHelper, ttl time.Duration) *HTTPTemplateSource {
	if ttl <= 0 {
		ttl = cache.TemplateCacheConfig.TTL
	}
	return &HTTPTemplateSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cache:  cacheHelper,
		ttl:    ttl,
	}
}

func (s *HTTPTemplateSource) Fetch(ctx context.Context) ([]byte, error) {
	if data, err := s.cache.GetBytes(ctx, s.url); err == nil {
		return data, nil
	} else if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Template cache read failed", "error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrTemplateUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}

	if err := s.cache.SetBytes(ctx, s.url, data, s.ttl); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Template cache write failed", "error", err)
	}
	return data, nil
}
