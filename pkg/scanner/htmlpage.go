package scanner

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"imgharvest/pkg/fetch"
)

// HTMLPage is a Page over a remote HTML document. Each walk re-fetches and
// re-parses the document, so images injected between ticks are seen.
type HTMLPage struct {
	pageURL *url.URL
	client  *fetch.Client
}

// NewHTMLPage creates a page source for the document at rawURL
func NewHTMLPage(rawURL string, client *fetch.Client) (*HTMLPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported page scheme %q", u.Scheme)
	}

	return &HTMLPage{pageURL: u, client: client}, nil
}

// URL returns the page's address
func (p *HTMLPage) URL() string {
	return p.pageURL.String()
}

// Images fetches the document and extracts every img source. Relative
// sources are resolved against the page URL; data: and blob: sources pass
// through untouched for the scanner to classify.
func (p *HTMLPage) Images(ctx context.Context) ([]Image, error) {
	body, err := p.client.FetchBytes(ctx, p.pageURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var images []Image
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		images = append(images, Image{Src: p.absolutize(src)})
	})

	return images, nil
}

func (p *HTMLPage) absolutize(src string) string {
	if Classify(src) != ClassIgnored {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	if ref.Scheme != "" {
		// A real non-http scheme stays ignored
		return src
	}
	return p.pageURL.ResolveReference(ref).String()
}
