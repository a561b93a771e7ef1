package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const productPage = `<!doctype html>
<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="Walnut Monitor Riser">
<meta name="description" content="Solid walnut stand for one monitor.">
</head><body>
<h1>Walnut Monitor Riser</h1>
<span class="product-price"> $89.00 </span>
<span class="price">$1.00</span>
</body></html>`

func newSite(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(robots))
	})
	mux.HandleFunc("/p/riser", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != userAgent {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(productPage))
	})
	mux.HandleFunc("/p/bare", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div itemprop="price" content="12.50"></div></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchExtractsMetadata(t *testing.T) {
	srv := newSite(t, "")
	f := New(WithBlockedHosts(), WithHTTPClient(srv.Client()))

	md, err := f.Fetch(context.Background(), srv.URL+"/p/riser")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Title != "Walnut Monitor Riser" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.Summary != "Solid walnut stand for one monitor." {
		t.Errorf("Summary = %q", md.Summary)
	}
	if md.PriceText != "$89.00" {
		t.Errorf("PriceText = %q, want first price node", md.PriceText)
	}
	if len(md.BuyLinks) != 1 || !md.BuyLinks[0].Trusted || md.BuyLinks[0].URL != srv.URL+"/p/riser" {
		t.Errorf("BuyLinks = %+v", md.BuyLinks)
	}
	if !strings.HasPrefix(srv.URL, "http://"+md.BuyLinks[0].Label) {
		t.Errorf("label %q is not the host", md.BuyLinks[0].Label)
	}
}

func TestFetchFallbacks(t *testing.T) {
	srv := newSite(t, "")
	f := New(WithBlockedHosts(), WithHTTPClient(srv.Client()))

	md, err := f.Fetch(context.Background(), srv.URL+"/p/bare")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Title != fallbackTitle || md.Summary != fallbackSummary {
		t.Errorf("fallbacks = %q / %q", md.Title, md.Summary)
	}
	if md.PriceText != "12.50" {
		t.Errorf("PriceText = %q, want content attribute", md.PriceText)
	}
}

func TestFetchRejectsSchemeAndBlockedHosts(t *testing.T) {
	f := New()
	ctx := context.Background()

	if _, err := f.Fetch(ctx, "ftp://shop.example/item"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("ftp err = %v", err)
	}
	for _, u := range []string{"http://localhost/x", "http://127.0.0.1:8080/x", "http://169.254.169.254/latest/meta-data"} {
		if _, err := f.Fetch(ctx, u); !errors.Is(err, ErrBlockedHost) {
			t.Errorf("%s err = %v, want ErrBlockedHost", u, err)
		}
	}
}

func TestFetchHonorsRobots(t *testing.T) {
	srv := newSite(t, "User-agent: *\nDisallow: /p/\n")
	f := New(WithBlockedHosts(), WithHTTPClient(srv.Client()))

	_, err := f.Fetch(context.Background(), srv.URL+"/p/riser")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("err = %v, want ErrDisallowed", err)
	}
}

func TestFetchMissingPage(t *testing.T) {
	srv := newSite(t, "")
	f := New(WithBlockedHosts(), WithHTTPClient(srv.Client()))

	_, err := f.Fetch(context.Background(), srv.URL+"/p/missing")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestAllowedByRobots(t *testing.T) {
	robots := `# comment
User-agent: googlebot
Disallow: /private

User-agent: *
Disallow:
Disallow: /checkout
`
	if !allowedByRobots(robots, "/private/item") {
		t.Error("rule before the * group should not apply")
	}
	if allowedByRobots(robots, "/checkout/cart") {
		t.Error("/checkout should be disallowed")
	}
	if !allowedByRobots(robots, "/products/1") {
		t.Error("empty Disallow should allow everything")
	}
}
