package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	total  int
	done   int
	failed int
	bytes  int64
	marked bool
}

func (p *recordingProgress) SetTotal(total int) { p.total = total }
func (p *recordingProgress) Update(done, failed int, bytes int64) {
	p.done, p.failed, p.bytes = done, failed, bytes
}
func (p *recordingProgress) MarkDone() { p.marked = true }

func newDownloader(t *testing.T) *Downloader {
	t.Helper()

	c, err := util.NewHTTPClient(util.HTTPClientOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)

	return New(c, ui.NewTestLogger())
}

func imageServer(t *testing.T, failing map[string]int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := failing[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("img:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func refs(base string, n int) []chapters.ImageRef {
	out := make([]chapters.ImageRef, n)
	for i := range out {
		out[i] = chapters.ImageRef{Index: i * 2, URL: fmt.Sprintf("%s/p/%d.jpg", base, i)}
	}
	return out
}

func TestRetrieveDropsFailuresAndKeepsOrder(t *testing.T) {
	srv := imageServer(t, map[string]int{"/p/2.jpg": http.StatusInternalServerError})
	dir := filepath.Join(t.TempDir(), "run-1")
	ph := &recordingProgress{}

	images, outcomes, err := newDownloader(t).Retrieve(context.Background(), refs(srv.URL, 5), dir, srv.URL, ph)
	require.NoError(t, err)

	require.Len(t, outcomes, 5)
	require.Len(t, images, 4)

	assert.Equal(t, []int{0, 2, 6, 8}, []int{images[0].Index, images[1].Index, images[2].Index, images[3].Index})
	assert.False(t, outcomes[2].OK())
	assert.Equal(t, http.StatusInternalServerError, outcomes[2].Status)
	assert.ErrorIs(t, outcomes[2].Err, ErrStatus)

	for _, img := range images {
		b, err := os.ReadFile(img.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(len(b)), img.Size)
	}
	assert.Equal(t, filepath.Join(dir, "0006.jpg"), images[2].Path)

	assert.Equal(t, 5, ph.total)
	assert.Equal(t, 5, ph.done)
	assert.Equal(t, 1, ph.failed)
	assert.True(t, ph.marked)
}

func TestRetrieveCreatesScratchLazily(t *testing.T) {
	srv := imageServer(t, map[string]int{"/p/0.jpg": http.StatusNotFound, "/p/1.jpg": http.StatusForbidden})
	dir := filepath.Join(t.TempDir(), "run-2")

	images, outcomes, err := newDownloader(t).Retrieve(context.Background(), refs(srv.URL, 2), dir, "", nil)
	require.NoError(t, err)

	assert.Empty(t, images)
	assert.Len(t, outcomes, 2)
	assert.NoDirExists(t, dir)
}

func TestRetrieveNetworkErrorIsPerItem(t *testing.T) {
	srv := imageServer(t, nil)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	in := []chapters.ImageRef{
		{Index: 0, URL: deadURL + "/x.jpg"},
		{Index: 1, URL: srv.URL + "/p/1.jpg"},
	}

	images, outcomes, err := newDownloader(t).Retrieve(context.Background(), in, t.TempDir(), "", nil)
	require.NoError(t, err)

	require.Len(t, images, 1)
	assert.Equal(t, 1, images[0].Index)
	assert.Error(t, outcomes[0].Err)
}

func TestRetrieveStopsOnCancel(t *testing.T) {
	srv := imageServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images, _, err := newDownloader(t).Retrieve(ctx, refs(srv.URL, 3), t.TempDir(), "", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, images)
}
