package locator

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/mangapdf/internal/chapters"
)

var (
	DefaultMarkers     = []string{"wp-manga-chapter-img", "img-responsive", "lazyload"}
	DefaultSourceAttrs = []string{"src", "data-src"}
)

// ClassMarker selects img elements whose class attribute contains one of
// Markers. It is the layout used by WordPress manga reader themes.
type ClassMarker struct {
	Markers     []string
	SourceAttrs []string
}

func NewClassMarker(markers, attrs []string) *ClassMarker {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	if len(attrs) == 0 {
		attrs = DefaultSourceAttrs
	}

	return &ClassMarker{Markers: markers, SourceAttrs: attrs}
}

func (*ClassMarker) Name() string { return "class-marker" }

func (c *ClassMarker) Locate(doc *goquery.Document, base *url.URL) []chapters.ImageRef {
	var out []chapters.ImageRef

	matched := 0
	doc.Find("img[class]").Each(func(_ int, img *goquery.Selection) {
		class, _ := img.Attr("class")
		if !c.matches(class) {
			return
		}

		idx := matched
		matched++

		src, ok := sourceOf(img, c.SourceAttrs, base)
		if !ok {
			return
		}

		out = append(out, chapters.ImageRef{Index: idx, URL: src})
	})

	return out
}

func (c *ClassMarker) matches(class string) bool {
	for _, m := range c.Markers {
		if m != "" && strings.Contains(class, m) {
			return true
		}
	}

	return false
}
