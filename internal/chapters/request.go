package chapters

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrInvalidURL = errors.New("chapter url must be an absolute http(s) url")
	ErrUnsafeName = errors.New("output name must be a plain file name")

	reUnderscore = regexp.MustCompile(`_+`)
)

// Request is one chapter download: where the pages live and what to call the result.
type Request struct {
	PageURL    string
	OutputName string
}

// NewRequest validates the page URL and normalises the output name. An empty
// name is derived from the URL path.
func NewRequest(rawURL, name, ext string) (Request, error) {
	u, err := ParsePageURL(rawURL)
	if err != nil {
		return Request{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName(u)
	}

	return Request{
		PageURL:    u.String(),
		OutputName: OutputName(name, ext),
	}, nil
}

// NewRemoteRequest is NewRequest for names sent by remote users. The name
// must be a plain file name that stays inside the output folder.
func NewRemoteRequest(rawURL, name, ext string) (Request, error) {
	if n := strings.TrimSpace(name); n != "" && !plainName(n) {
		return Request{}, fmt.Errorf("%w: %q", ErrUnsafeName, n)
	}

	return NewRequest(rawURL, name, ext)
}

func plainName(n string) bool {
	if filepath.IsAbs(n) || filepath.VolumeName(n) != "" {
		return false
	}
	if strings.ContainsAny(n, `/\`) {
		return false
	}

	return n != "." && n != ".."
}

func ParsePageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	return u, nil
}

// OutputName appends ext (".pdf", ".cbz") unless the name already carries it.
func OutputName(name, ext string) string {
	if ext == "" {
		return name
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		return name
	}

	return name + ext
}

// OutputPath places the output name under dir unless it is already absolute.
func (r Request) OutputPath(dir string) string {
	if filepath.IsAbs(r.OutputName) || dir == "" {
		return r.OutputName
	}

	return filepath.Join(dir, r.OutputName)
}

// DefaultName builds a file name from the last two path segments,
// e.g. /manga/one-piece/chapter-12/ -> one_piece_chapter_12.
func DefaultName(u *url.URL) string {
	segs := []string{}
	for _, s := range strings.Split(path.Clean(u.Path), "/") {
		if s != "" && s != "." {
			segs = append(segs, s)
		}
	}
	if len(segs) > 2 {
		segs = segs[len(segs)-2:]
	}

	name := sanitize(strings.Join(segs, "_"))
	if name == "" {
		name = sanitize(u.Hostname())
	}
	if name == "" {
		name = "chapter"
	}

	return name
}

func sanitize(s string) string {
	s = strings.ToLower(s)

	repl := []string{
		"•", "_",
		"-", "_",
		"—", "_",
		"–", "_",
		"/", "_",
		"\\", "_",
		".", "_",
		" ", "_",
		"(", "",
		")", "",
	}
	for i := 0; i < len(repl); i += 2 {
		s = strings.ReplaceAll(s, repl[i], repl[i+1])
	}

	clean := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			clean = append(clean, r)
		}
	}

	return strings.Trim(reUnderscore.ReplaceAllString(string(clean), "_"), "_")
}
