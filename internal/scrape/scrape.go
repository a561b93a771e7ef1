// Package scrape extracts product metadata from a retailer page so a user
// can add a product to the feed by URL.
package scrape

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/productpulse/pulse/internal/product"
)

const (
	userAgent      = "ProductDiscoveryBot/1.0"
	defaultTimeout = 8 * time.Second
	maxPageBytes   = 2 << 20
	maxRobotsBytes = 512 << 10
)

var (
	ErrUnsupportedScheme = errors.New("only http/https URLs allowed")
	ErrBlockedHost       = errors.New("URL blocked for security")
	ErrDisallowed        = errors.New("robots.txt disallows scraping this path")
	ErrFetch             = errors.New("unable to fetch target")
)

// DefaultBlockedHosts are never fetched.
var DefaultBlockedHosts = []string{"localhost", "127.0.0.1", "169.254.169.254"}

// Metadata is what a product page yields. It becomes a Product with
// source "scrape" once the client fills in the rest.
type Metadata struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	PriceText string            `json:"priceText,omitempty"`
	BuyLinks  []product.BuyLink `json:"buyLinks"`
	Tags      []product.Tag     `json:"tags"`
}

type Fetcher struct {
	client  *http.Client
	blocked []string
}

type Option func(*Fetcher)

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithBlockedHosts replaces the default host block list.
func WithBlockedHosts(hosts ...string) Option {
	return func(f *Fetcher) { f.blocked = hosts }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.client = hc }
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: defaultTimeout},
		blocked: DefaultBlockedHosts,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads rawURL after checking its scheme, host and robots.txt, and
// extracts title, summary and price from the HTML.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return Metadata{}, ErrUnsupportedScheme
	}
	if slices.Contains(f.blocked, strings.ToLower(target.Hostname())) {
		return Metadata{}, ErrBlockedHost
	}

	origin := &url.URL{Scheme: target.Scheme, Host: target.Host}
	if robots := f.robots(ctx, origin); robots != "" && !allowedByRobots(robots, target.EscapedPath()) {
		return Metadata{}, ErrDisallowed
	}

	body, err := f.get(ctx, target.String(), maxPageBytes)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	page, err := parsePage(strings.NewReader(body))
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing page: %w", err)
	}

	return Metadata{
		URL:       target.String(),
		Title:     page.title,
		Summary:   page.summary,
		PriceText: page.price,
		BuyLinks: []product.BuyLink{{
			Label:     target.Hostname(),
			URL:       target.String(),
			PriceHint: page.price,
			Trusted:   true,
		}},
		Tags: []product.Tag{},
	}, nil
}

// robots returns the site's robots.txt, or "" when it cannot be read.
func (f *Fetcher) robots(ctx context.Context, origin *url.URL) string {
	body, err := f.get(ctx, origin.String()+"/robots.txt", maxRobotsBytes)
	if err != nil {
		return ""
	}
	return body
}

func (f *Fetcher) get(ctx context.Context, u string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// allowedByRobots applies the Disallow rules of the "User-agent: *" group to
// path. Rules outside that group are ignored.
func allowedByRobots(robots, path string) bool {
	applies := false
	sc := bufio.NewScanner(strings.NewReader(robots))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			if value == "*" {
				applies = true
			}
		case "disallow":
			if applies && value != "" && strings.HasPrefix(path, value) {
				return false
			}
		}
	}
	return true
}
