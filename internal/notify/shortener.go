package notify

import (
	"context"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
)

// Shortener turns action links into TinyURL links. Any failure returns the
// original link.
type Shortener struct {
	http     *resty.Client
	endpoint string
	memo     *cache.Cache
	log      *logger.Logger
}

func NewShortener(endpoint string, timeout time.Duration, log *logger.Logger) *Shortener {
	return &Shortener{
		http:     resty.New().SetTimeout(timeout),
		endpoint: endpoint,
		memo:     cache.New(24*time.Hour, time.Hour),
		log:      log.Named("shortener"),
	}
}

func (s *Shortener) Shorten(ctx context.Context, link string) string {
	if v, ok := s.memo.Get(link); ok {
		return v.(string)
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("url", link).
		Get(s.endpoint)
	if err != nil {
		s.log.Debug("Shortening failed: %v", err)
		return link
	}
	if !resp.IsSuccess() {
		s.log.Debug("Shortener returned %s", resp.Status())
		return link
	}

	short := strings.TrimSpace(resp.String())
	if !strings.HasPrefix(short, "http") {
		return link
	}
	s.memo.SetDefault(link, short)
	return short
}
