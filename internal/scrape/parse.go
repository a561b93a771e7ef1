package scrape

import (
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	fallbackTitle   = "Product"
	fallbackSummary = "No summary available."
)

type page struct {
	title   string
	summary string
	price   string
}

func parsePage(r io.Reader) (page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return page{}, err
	}

	var (
		ogTitle, docTitle, description, ogDescription string
		price                                         string
		priceFound                                    bool
	)
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Meta:
			content, hasContent := attr(n, "content")
			if !hasContent {
				break
			}
			if p, _ := attr(n, "property"); p == "og:title" && ogTitle == "" {
				ogTitle = content
			}
			if p, _ := attr(n, "property"); p == "og:description" && ogDescription == "" {
				ogDescription = content
			}
			if name, _ := attr(n, "name"); name == "description" && description == "" {
				description = content
			}
		case atom.Title:
			if docTitle == "" {
				docTitle = strings.TrimSpace(text(n))
			}
		}
		if !priceFound && isPriceNode(n) {
			priceFound = true
			price = strings.TrimSpace(text(n))
			if price == "" {
				price, _ = attr(n, "content")
			}
		}
	}

	return page{
		title:   firstNonEmpty(ogTitle, docTitle, fallbackTitle),
		summary: firstNonEmpty(description, ogDescription, fallbackSummary),
		price:   strings.TrimSpace(price),
	}, nil
}

// isPriceNode matches [itemprop="price"], .price and .product-price.
func isPriceNode(n *html.Node) bool {
	if v, ok := attr(n, "itemprop"); ok && v == "price" {
		return true
	}
	class, _ := attr(n, "class")
	fields := strings.Fields(class)
	return slices.Contains(fields, "price") || slices.Contains(fields, "product-price")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
