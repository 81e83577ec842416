package locator

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/mangapdf/internal/chapters"
)

var (
	reSizeSuffix    = regexp.MustCompile(`[-_]\d{2,5}x\d{2,5}`)
	reParseSize     = regexp.MustCompile(`[-_](\d{2,5})x(\d{2,5})`)
	reBackgroundURL = regexp.MustCompile(`url\((?:["']?)([^"')]+)(?:["']?)\)`)

	genericAttrs  = []string{"src", "data-src", "data-lazy-src", "data-original"}
	chromeMarkers = []string{"logo", "cover", "profile", "avatar", "banner"}
)

// Generic is the fallback for sites without a known class marker: every
// img, picture source and CSS background image whose URL ends in an allowed
// extension, minus obvious site chrome. Size variants of one image
// (foo-300x450.jpg, foo.jpg) collapse into a single page.
type Generic struct {
	allowed *regexp.Regexp
}

func NewGeneric(allowExt []string) *Generic {
	return &Generic{allowed: buildExtRegex(normalizeExtList(allowExt))}
}

func (*Generic) Name() string { return "generic" }

type candidate struct {
	url   string
	order int
}

func (g *Generic) Locate(doc *goquery.Document, base *url.URL) []chapters.ImageRef {
	var found []candidate
	seen := map[string]bool{}

	add := func(raw string) {
		u, ok := resolve(base, strings.TrimSpace(raw))
		if !ok || seen[u] || !g.usable(u) {
			return
		}
		seen[u] = true
		found = append(found, candidate{url: u, order: len(found)})
	}

	// group selector keeps document order across element kinds
	doc.Find("img, source[srcset], [style]").Each(func(_ int, el *goquery.Selection) {
		switch goquery.NodeName(el) {
		case "img":
			src := ""
			for _, k := range genericAttrs {
				if v, ok := el.Attr(k); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(strings.TrimSpace(v), "data:") {
					src = v
					break
				}
			}
			if src == "" {
				if ss, ok := el.Attr("srcset"); ok {
					src = firstSrcset(ss)
				}
			}
			if src != "" {
				add(src)
			}
		case "source":
			if ss, ok := el.Attr("srcset"); ok {
				if first := firstSrcset(ss); first != "" {
					add(first)
				}
			}
		}

		if style, ok := el.Attr("style"); ok && strings.Contains(strings.ToLower(style), "background-image") {
			for _, m := range reBackgroundURL.FindAllStringSubmatch(style, -1) {
				add(m[1])
			}
		}
	})

	return collapse(found)
}

func (g *Generic) usable(u string) bool {
	lu := strings.ToLower(u)

	p := lu
	if parsed, err := url.Parse(lu); err == nil {
		p = parsed.Path
	}
	if !g.allowed.MatchString(p) {
		return false
	}

	// path only; hosts like discover-manga.com are not chrome
	for _, m := range chromeMarkers {
		if strings.Contains(p, m) {
			return false
		}
	}

	return true
}

func firstSrcset(ss string) string {
	for p := range strings.SplitSeq(ss, ",") {
		if parts := strings.Fields(strings.TrimSpace(p)); len(parts) > 0 {
			return parts[0]
		}
	}

	return ""
}

// collapse keeps one URL per size-variant group, positioned where the group
// was first seen.
func collapse(found []candidate) []chapters.ImageRef {
	type group struct {
		first int
		items []candidate
	}

	groups := map[string]*group{}
	var keys []string

	for _, c := range found {
		key := normalizeBase(c.url)
		g, ok := groups[key]
		if !ok {
			g = &group{first: c.order}
			groups[key] = g
			keys = append(keys, key)
		}
		g.items = append(g.items, c)
	}

	out := make([]chapters.ImageRef, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, chapters.ImageRef{Index: g.first, URL: pickBest(g.items).url})
	}

	return out
}

// pickBest prefers the unsuffixed original, else the largest WxH variant.
func pickBest(items []candidate) candidate {
	var sized []candidate
	for _, it := range items {
		if !reSizeSuffix.MatchString(it.url) {
			return it
		}
		sized = append(sized, it)
	}

	best := sized[0]
	bw, bh := parseWxH(best.url)
	for _, it := range sized[1:] {
		w, h := parseWxH(it.url)
		if w*h > bw*bh {
			best, bw, bh = it, w, h
		}
	}

	return best
}

func normalizeExtList(list []string) []string {
	out := []string{}
	for _, ext := range list {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ext = strings.TrimPrefix(ext, ".")
		if ext != "" {
			out = append(out, regexp.QuoteMeta(ext))
		}
	}

	return out
}

func buildExtRegex(exts []string) *regexp.Regexp {
	if len(exts) == 0 {
		exts = []string{"jpg", "jpeg", "png", "webp"}
	}

	return regexp.MustCompile(`(?i)\.(` + strings.Join(exts, "|") + `)$`)
}

func normalizeBase(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	ext := path.Ext(u.Path)
	base := strings.TrimSuffix(u.Path, ext)
	base = reSizeSuffix.ReplaceAllString(base, "")
	base = strings.TrimRight(base, "-_")

	return u.Host + base + ext
}

func parseWxH(u string) (int, int) {
	if m := reParseSize.FindStringSubmatch(u); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		return w, h
	}

	return 0, 0
}
