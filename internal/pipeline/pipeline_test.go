package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/brogergvhs/mangapdf/internal/assembler"
	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/fetch"
	"github.com/brogergvhs/mangapdf/internal/locator"
	"github.com/brogergvhs/mangapdf/internal/store"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: uint8(w % 255), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// site serves /chapter with five marked pages (/p/0.png../p/4.png, width
// 100+20*i), /empty with none and /broken with one undecodable page.
func site(t *testing.T, failing map[string]int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/chapter", func(w http.ResponseWriter, _ *http.Request) {
		var b strings.Builder
		b.WriteString(`<html><body><img class="site-logo" src="/logo.png">`)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&b, `<img class="wp-manga-chapter-img" src="/p/%d.png">`, i)
		}
		b.WriteString(`</body></html>`)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><img class="avatar" src="/a.png"><p>nothing</p></body></html>`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><img class="lazyload" data-src="/junk.jpg"></body></html>`))
	})
	mux.HandleFunc("/junk.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("definitely not an image"))
	})
	mux.HandleFunc("/p/", func(w http.ResponseWriter, r *http.Request) {
		if code, ok := failing[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/p/"), ".png"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pagePNG(t, 100+20*i, 150))
	})
	mux.HandleFunc("/missing", http.NotFound)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type memRecorder struct {
	recs   []store.DownloadRecord
	err    error
	before func()
}

func (m *memRecorder) RecordDownload(_ context.Context, rec store.DownloadRecord) error {
	if m.before != nil {
		m.before()
	}
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

type memNotifier struct{ msgs []string }

func (m *memNotifier) Notify(_ context.Context, msg string) error {
	m.msgs = append(m.msgs, msg)
	return nil
}

type env struct {
	out, scratch string
	rec          *memRecorder
	note         *memNotifier
}

func newRunner(t *testing.T, a assembler.Assembler, opts ...Option) (*Runner, *env) {
	t.Helper()

	c, err := util.NewHTTPClient(util.HTTPClientOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	log := ui.NewTestLogger()
	strategy, err := locator.Select("", locator.Options{})
	require.NoError(t, err)

	e := &env{
		out:     t.TempDir(),
		scratch: filepath.Join(t.TempDir(), "scratch"),
		rec:     &memRecorder{},
		note:    &memNotifier{},
	}

	if a == nil {
		a = assembler.NewPDF()
	}

	all := append([]Option{WithRecorder(e.rec), WithNotifier(e.note)}, opts...)
	r := New(
		Options{OutputDir: e.out, ScratchRoot: e.scratch},
		fetch.New(c, log),
		strategy,
		downloader.New(c, log),
		a,
		log,
		all...,
	)

	return r, e
}

func request(t *testing.T, srv *httptest.Server, path, name string) chapters.Request {
	t.Helper()
	req, err := chapters.NewRequest(srv.URL+path, name, ".pdf")
	require.NoError(t, err)
	return req
}

func TestRunBuildsPDFFromSurvivorsInOrder(t *testing.T) {
	srv := site(t, map[string]int{"/p/2.png": http.StatusInternalServerError})
	r, e := newRunner(t, nil)

	res, err := r.Run(context.Background(), request(t, srv, "/chapter", "ch1"))
	require.NoError(t, err)

	assert.Equal(t, Done, res.State)
	assert.Len(t, res.Located, 5)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].Ref.Index)
	assert.Equal(t, http.StatusInternalServerError, res.Failed[0].Status)

	var idx []int
	for _, img := range res.Retrieved {
		idx = append(idx, img.Index)
	}
	assert.Equal(t, []int{0, 1, 3, 4}, idx)

	out := filepath.Join(e.out, "ch1.pdf")
	assert.Equal(t, out, res.Output)

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	dims, err := api.PageDimsFile(out)
	require.NoError(t, err)
	require.Len(t, dims, 4)
	for i := 1; i < len(dims); i++ {
		assert.Greater(t, dims[i].Width, dims[i-1].Width, "page %d out of order", i)
	}

	assert.NoDirExists(t, res.ScratchDir)
	assert.NoDirExists(t, e.scratch, "empty scratch root is removed")

	require.Len(t, e.rec.recs, 1)
	assert.True(t, res.Recorded)
	assert.Equal(t, srv.URL+"/chapter", e.rec.recs[0].URL)
	assert.Equal(t, "ch1.pdf", e.rec.recs[0].OutputName)
	assert.Contains(t, e.note.msgs, "PDF created: "+out)
}

func TestRunFetchFailed(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, nil)

	res, err := r.Run(context.Background(), request(t, srv, "/missing", "x"))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrFetchFailed)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)

	assert.Equal(t, FetchFailedState, res.State)
	assert.Empty(t, res.ScratchDir)
	assert.NoDirExists(t, e.scratch)
	assert.NoFileExists(t, filepath.Join(e.out, "x.pdf"))
	assert.Empty(t, e.rec.recs)
}

func TestRunUnreachableIsFetchFailed(t *testing.T) {
	srv := site(t, nil)
	req := request(t, srv, "/chapter", "x")
	srv.Close()

	r, _ := newRunner(t, nil)
	_, err := r.Run(context.Background(), req)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, fetch.ErrUnreachable)
}

func TestRunNoImagesFound(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, nil)

	res, err := r.Run(context.Background(), request(t, srv, "/empty", "x"))

	assert.ErrorIs(t, err, ErrNoImagesFound)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, NoImagesFound, kind)

	assert.Equal(t, NoImages, res.State)
	assert.NoDirExists(t, e.scratch)
	assert.NoFileExists(t, filepath.Join(e.out, "x.pdf"))
}

func TestRunAllImagesFailed(t *testing.T) {
	failing := map[string]int{}
	for i := 0; i < 5; i++ {
		failing[fmt.Sprintf("/p/%d.png", i)] = http.StatusForbidden
	}
	srv := site(t, failing)
	r, e := newRunner(t, nil)

	res, err := r.Run(context.Background(), request(t, srv, "/chapter", "x"))

	assert.ErrorIs(t, err, ErrAllImagesFailed)
	assert.Equal(t, NoneRetrieved, res.State)
	assert.Len(t, res.Failed, 5)
	assert.NoDirExists(t, e.scratch)
	assert.NoFileExists(t, filepath.Join(e.out, "x.pdf"))
	assert.Empty(t, e.rec.recs)
}

func TestRunAssemblyFailedKeepsScratch(t *testing.T) {
	srv := site(t, nil)
	tracker := util.NewScratchTracker("")
	r, e := newRunner(t, nil, WithTracker(tracker))

	res, err := r.Run(context.Background(), request(t, srv, "/broken", "x"))

	assert.ErrorIs(t, err, ErrAssemblyFailed)
	assert.Equal(t, AssemblyFailedState, res.State)
	assert.FileExists(t, filepath.Join(res.ScratchDir, "0000.jpg"))
	assert.NoFileExists(t, filepath.Join(e.out, "x.pdf"))
	assert.Empty(t, e.rec.recs)

	// an interrupt after the run must not take the evidence with it
	tracker.Cleanup()
	assert.DirExists(t, res.ScratchDir)
}

func TestRunKeepScratch(t *testing.T) {
	srv := site(t, nil)
	r, _ := newRunner(t, nil)
	r.opts.KeepScratch = true

	res, err := r.Run(context.Background(), request(t, srv, "/chapter", "keep"))
	require.NoError(t, err)

	entries, err := os.ReadDir(res.ScratchDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRunsAreIndependent(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, nil)
	ctx := context.Background()

	a, err := r.Run(ctx, request(t, srv, "/chapter", "a"))
	require.NoError(t, err)
	b, err := r.Run(ctx, request(t, srv, "/chapter", "b"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ScratchDir, b.ScratchDir)
	for _, name := range []string{"a.pdf", "b.pdf"} {
		n, err := api.PageCountFile(filepath.Join(e.out, name))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}
	assert.Len(t, e.rec.recs, 2)
}

func TestRecordFailureDoesNotFailRun(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, nil)
	e.rec.err = errors.New("disk full")

	res, err := r.Run(context.Background(), request(t, srv, "/chapter", "x"))
	require.NoError(t, err)

	assert.Equal(t, Done, res.State)
	assert.False(t, res.Recorded)
	assert.FileExists(t, res.Output)
}

func TestRecordHappensBeforeScratchCleanup(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, nil)

	var scratchAtRecord []string
	e.rec.before = func() {
		entries, err := os.ReadDir(e.scratch)
		require.NoError(t, err)
		for _, ent := range entries {
			scratchAtRecord = append(scratchAtRecord, ent.Name())
		}
	}

	res, err := r.Run(context.Background(), request(t, srv, "/chapter", "x"))
	require.NoError(t, err)

	require.Len(t, scratchAtRecord, 1)
	assert.Equal(t, filepath.Base(res.ScratchDir), scratchAtRecord[0])
	assert.NoDirExists(t, res.ScratchDir)
	assert.True(t, res.Recorded)
}

func TestRunCancelled(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, request(t, srv, "/chapter", "x"))
	assert.ErrorIs(t, err, context.Canceled)
	_, isKind := KindOf(err)
	assert.False(t, isKind)
	assert.NoDirExists(t, e.scratch)
}

func TestRunCBZ(t *testing.T) {
	srv := site(t, nil)
	r, e := newRunner(t, assembler.NewCBZ())

	req, err := chapters.NewRequest(srv.URL+"/chapter", "vol1", ".cbz")
	require.NoError(t, err)

	res, err := r.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.out, "vol1.cbz"), res.Output)
	assert.Contains(t, e.note.msgs, "CBZ created: "+res.Output)
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: AllImagesFailed, URL: "http://x"})

	assert.ErrorIs(t, err, ErrAllImagesFailed)
	assert.NotErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, "AllImagesFailed http://x", errors.Unwrap(err).Error())
}
