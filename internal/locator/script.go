package locator

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/mangapdf/internal/chapters"
)

var (
	reNuxt      = regexp.MustCompile(`(?s)window\.__NUXT__\s*=\s*(\{.*?\});`)
	reLooseURL  = regexp.MustCompile(`https?://[^\s"'<>\\]+`)
	reQuotedRel = regexp.MustCompile(`["'](/[A-Za-z0-9/\-._~%]+)["']`)
)

// Script finds pages that readers only list in inline JavaScript: an
// embedded window.__NUXT__ state, image arrays assigned to variables or
// plain URLs inside script bodies. Markup images are ignored so that
// thumbnails around the reader do not leak in.
type Script struct {
	g *Generic
}

func NewScript(allowExt []string) *Script {
	return &Script{g: NewGeneric(allowExt)}
}

func (*Script) Name() string { return "script" }

func (s *Script) Locate(doc *goquery.Document, base *url.URL) []chapters.ImageRef {
	var found []candidate
	seen := map[string]bool{}

	add := func(raw string) {
		raw = strings.TrimSpace(strings.ReplaceAll(raw, `\/`, `/`))
		u, ok := resolve(base, raw)
		if !ok || seen[u] || !s.g.usable(u) {
			return
		}
		seen[u] = true
		found = append(found, candidate{url: u, order: len(found)})
	}

	doc.Find("script").Each(func(_ int, el *goquery.Selection) {
		if src, ok := el.Attr("src"); ok && strings.TrimSpace(src) != "" {
			return
		}

		body := el.Text()
		if strings.TrimSpace(body) == "" {
			return
		}

		if m := reNuxt.FindStringSubmatch(body); len(m) > 1 {
			var root any
			if json.Unmarshal([]byte(m[1]), &root) == nil {
				s.walk(root, base, add)
			}
		}

		// unescaped copy so JSON-encoded slashes still match
		plain := strings.ReplaceAll(body, `\/`, `/`)
		for _, u := range reLooseURL.FindAllString(plain, -1) {
			add(u)
		}
		for _, m := range reQuotedRel.FindAllStringSubmatch(plain, -1) {
			add(m[1])
		}
	})

	return collapse(found)
}

// walk visits arrays in order and objects by sorted key so the result does
// not depend on map iteration.
func (s *Script) walk(v any, base *url.URL, add func(string)) {
	switch t := v.(type) {
	case string:
		str := strings.TrimSpace(t)
		ls := strings.ToLower(str)
		if strings.HasPrefix(ls, "http://") || strings.HasPrefix(ls, "https://") {
			add(str)
			return
		}
		if looksLikeHTML(str) {
			frag, err := goquery.NewDocumentFromReader(strings.NewReader(str))
			if err == nil {
				for _, r := range s.g.Locate(frag, base) {
					add(r.URL)
				}
			}
		}
	case []any:
		for _, x := range t {
			s.walk(x, base, add)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.walk(t[k], base, add)
		}
	}
}

func looksLikeHTML(s string) bool {
	if s == "" {
		return false
	}

	for _, tag := range []string{"<img", "<picture", "<source", "<div"} {
		if strings.Contains(s, tag) {
			return true
		}
	}

	return false
}
