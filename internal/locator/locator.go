// Package locator finds the page images of a chapter in its HTML. The rule
// for telling manga pages apart from site chrome is a Strategy so that other
// site layouts can be plugged in.
package locator

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/mangapdf/internal/chapters"
	"golang.org/x/net/html/charset"
)

type Strategy interface {
	Name() string
	Locate(doc *goquery.Document, base *url.URL) []chapters.ImageRef
}

// ParseHTML decodes body using the charset from contentType or the document's
// meta tags and parses it.
func ParseHTML(body []byte, contentType string) (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return doc, nil
}

// Locate parses body and runs s against it.
func Locate(s Strategy, body []byte, contentType, pageURL string) ([]chapters.ImageRef, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("page url: %w", err)
	}

	doc, err := ParseHTML(body, contentType)
	if err != nil {
		return nil, err
	}

	return s.Locate(doc, base), nil
}

// sourceOf returns the first usable value among attrs, resolved against base.
func sourceOf(sel *goquery.Selection, attrs []string, base *url.URL) (string, bool) {
	for _, k := range attrs {
		v, ok := sel.Attr(k)
		if !ok {
			continue
		}

		v = strings.TrimSpace(v)
		if v == "" || strings.HasPrefix(strings.ToLower(v), "data:") {
			continue
		}

		return resolve(base, v)
	}

	return "", false
}

// resolve makes raw absolute against base; only http(s) results are usable.
func resolve(base *url.URL, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return "", false
	}

	if !u.IsAbs() {
		if base == nil {
			return "", false
		}
		u = base.ResolveReference(u)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}

	return u.String(), true
}
