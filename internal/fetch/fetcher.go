// Package fetch retrieves the chapter page.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/brogergvhs/mangapdf/internal/ui"
)

// ErrUnreachable wraps transport failures: DNS, refused connections, timeouts.
var ErrUnreachable = errors.New("network unreachable")

type Page struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

func (p Page) OK() bool {
	return p.Status == http.StatusOK
}

type Fetcher struct {
	client *http.Client
	log    *ui.Logger
}

func New(c *http.Client, log *ui.Logger) *Fetcher {
	return &Fetcher{client: c, log: log}
}

// Fetch performs a single GET. Non-2xx statuses are returned in Page, not as
// errors; the caller decides what to do with them.
func (f *Fetcher) Fetch(ctx context.Context, target string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.log.Debugf("Warning: failed to close response body for %s: %v\n", target, cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}

	f.log.Debugf("Fetched %s: HTTP %d, %d bytes\n", target, resp.StatusCode, len(body))

	return Page{
		URL:         target,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
