// Package downloader retrieves page images one after another into a scratch
// directory. A failed page is an Outcome, not an error.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/ui"
)

// ImageExt is the extension of every scratch file.
const ImageExt = ".jpg"

// Progress receives per-page updates; *ui.ProgressHandle satisfies it.
type Progress interface {
	SetTotal(total int)
	Update(done, failed int, bytes int64)
	MarkDone()
}

type Outcome struct {
	Ref    chapters.ImageRef
	Image  chapters.RetrievedImage
	Status int
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

type Downloader struct {
	client *http.Client
	log    *ui.Logger
}

func New(c *http.Client, log *ui.Logger) *Downloader {
	return &Downloader{
		client: c,
		log:    log,
	}
}

// Retrieve downloads refs in order into dir, creating dir on the first
// successful response. It returns the survivors in input order plus one
// Outcome per ref. The only error is context cancellation.
func (d *Downloader) Retrieve(
	ctx context.Context,
	refs []chapters.ImageRef,
	dir string,
	referer string,
	ph Progress,
) ([]chapters.RetrievedImage, []Outcome, error) {

	if ph != nil {
		ph.SetTotal(len(refs))
		defer ph.MarkDone()
	}

	images := make([]chapters.RetrievedImage, 0, len(refs))
	outcomes := make([]Outcome, 0, len(refs))

	var failed int
	var doneBytes int64

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return images, outcomes, err
		}

		path := filepath.Join(dir, ref.FileName(ImageExt))
		base := doneBytes

		progress := func(n int64) {
			if ph != nil {
				ph.Update(i, failed, base+n)
			}
		}

		status, size, err := d.download(ctx, ref.URL, path, dir, referer, progress)
		out := Outcome{Ref: ref, Status: status, Err: err}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return images, outcomes, ctxErr
			}

			failed++
			d.log.Warnf("Failed to download page %d (%s): %v\n", ref.Index, ref.URL, err)
		} else {
			doneBytes += size
			out.Image = chapters.RetrievedImage{Index: ref.Index, URL: ref.URL, Path: path, Size: size}
			images = append(images, out.Image)
			d.log.Debugf("Downloaded page %d: %s (%d bytes)\n", ref.Index, ref.URL, size)
		}

		outcomes = append(outcomes, out)

		if ph != nil {
			ph.Update(i+1, failed, doneBytes)
		}
	}

	return images, outcomes, nil
}

// ErrStatus is returned for any response other than 200.
var ErrStatus = errors.New("unexpected status")

func (d *Downloader) download(
	ctx context.Context,
	u, output, dir, referer string,
	progress func(done int64),
) (int, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}

	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			d.log.Debugf("Warning: failed to close response body for %s: %v\n", u, cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, 0, fmt.Errorf("%w: HTTP %d", ErrStatus, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return resp.StatusCode, 0, fmt.Errorf("scratch dir: %w", err)
	}

	f, err := os.Create(output)
	if err != nil {
		return resp.StatusCode, 0, err
	}

	written, err := copyWithProgress(f, resp.Body, progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return resp.StatusCode, 0, err
	}

	return resp.StatusCode, written, nil
}
