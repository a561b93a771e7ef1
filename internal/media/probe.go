package media

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/product"
)

const (
	DefaultProbeTimeout = 2500 * time.Millisecond
	minProbeTimeout     = 500 * time.Millisecond
	maxProbeTimeout     = 7 * time.Second
	probeConcurrency    = 4
)

var imageExtension = regexp.MustCompile(`(?i)\.(?:apng|avif|gif|jpe?g|jfif|pjpeg|pjp|png|svg|webp|heic|heif)$`)

// Statuses after which a HEAD failure is retried as a ranged GET. Many image
// hosts reject HEAD outright.
var retryWithGet = map[int]bool{
	http.StatusForbidden:           true,
	http.StatusMethodNotAllowed:    true,
	http.StatusNotAcceptable:       true,
	http.StatusInternalServerError: true,
	http.StatusNotImplemented:      true,
}

// Prober verifies product media URLs.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	metrics metrics.Recorder
	logger  *slog.Logger
}

// ClampTimeout bounds a probe timeout to [500ms, 7s]; zero or negative
// values use the default.
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultProbeTimeout
	case d < minProbeTimeout:
		return minProbeTimeout
	case d > maxProbeTimeout:
		return maxProbeTimeout
	}
	return d
}

func NewProber(timeout time.Duration, rec metrics.Recorder) *Prober {
	return &Prober{
		client:  &http.Client{},
		timeout: ClampTimeout(timeout),
		metrics: metrics.OrNop(rec),
		logger:  slog.Default(),
	}
}

// Ensure returns copies of products whose media URL is either a reachable
// image or a placeholder. Probes run concurrently.
func (p *Prober) Ensure(ctx context.Context, products []product.Product) []product.Product {
	out := make([]product.Product, len(products))
	var g errgroup.Group
	g.SetLimit(probeConcurrency)
	for i, prod := range products {
		g.Go(func() error {
			out[i] = p.ensureOne(ctx, prod)
			return nil
		})
	}
	g.Wait()
	return out
}

func (p *Prober) ensureOne(ctx context.Context, prod product.Product) product.Product {
	if strings.HasPrefix(prod.MediaURL, "http") {
		if p.Probe(ctx, prod.MediaURL) {
			return prod
		}
		p.metrics.Record("ai.media_fallback_applied", map[string]any{"reason": "invalid_remote"})
	} else {
		p.metrics.Record("ai.media_fallback_applied", map[string]any{"reason": "missing_remote"})
	}
	prod.MediaURL = Placeholder(prod)
	return prod
}

// Probe reports whether rawURL serves an image.
func (p *Prober) Probe(ctx context.Context, rawURL string) bool {
	resp, err := p.fetch(ctx, http.MethodHead, rawURL)
	if err != nil {
		p.recordError(err)
		return false
	}
	resp.Body.Close()

	if isOK(resp.StatusCode) {
		ct := resp.Header.Get("Content-Type")
		return isImageMIME(ct) || (ct == "" && hasImageExtension(rawURL))
	}
	if !retryWithGet[resp.StatusCode] {
		return false
	}

	resp, err = p.fetch(ctx, http.MethodGet, rawURL)
	if err != nil {
		p.recordError(err)
		return false
	}
	resp.Body.Close()
	if !isOK(resp.StatusCode) {
		return false
	}
	return isImageMIME(resp.Header.Get("Content-Type")) || hasImageExtension(rawURL)
}

func (p *Prober) fetch(ctx context.Context, method, rawURL string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
		req.Header.Set("Accept", "image/*")
	}
	return p.client.Do(req)
}

func (p *Prober) recordError(err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return
	}
	p.metrics.Record("ai.media_probe_error", map[string]any{"reason": err.Error()})
	p.logger.Debug("media probe failed", "error", err)
}

func isOK(status int) bool { return status >= 200 && status < 300 }

func isImageMIME(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}

func hasImageExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return imageExtension.MatchString(u.Path)
}
