// Package pipeline runs one chapter download from page URL to output file:
// fetch, locate, retrieve, assemble, then record and clean up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brogergvhs/mangapdf/internal/assembler"
	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/fetch"
	"github.com/brogergvhs/mangapdf/internal/locator"
	"github.com/brogergvhs/mangapdf/internal/notify"
	"github.com/brogergvhs/mangapdf/internal/store"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/google/uuid"
)

type Fetcher interface {
	Fetch(ctx context.Context, target string) (fetch.Page, error)
}

type Retriever interface {
	Retrieve(
		ctx context.Context,
		refs []chapters.ImageRef,
		dir string,
		referer string,
		ph downloader.Progress,
	) ([]chapters.RetrievedImage, []downloader.Outcome, error)
}

// Recorder is the persistence side of a successful run.
type Recorder interface {
	RecordDownload(ctx context.Context, rec store.DownloadRecord) error
}

type Options struct {
	// OutputDir is prepended to relative output names.
	OutputDir string
	// ScratchRoot holds one run-<uuid> directory per run.
	ScratchRoot string
	KeepScratch bool
}

type Runner struct {
	opts Options

	fetcher   Fetcher
	strategy  locator.Strategy
	retriever Retriever
	assembler assembler.Assembler
	log       *ui.Logger

	recorder Recorder
	notifier notify.Notifier
	tracker  *util.ScratchTracker
	progress func(label string) downloader.Progress
	now      func() time.Time
}

type Option func(*Runner)

func WithRecorder(r Recorder) Option {
	return func(rn *Runner) { rn.recorder = r }
}

func WithNotifier(n notify.Notifier) Option {
	return func(rn *Runner) {
		if n != nil {
			rn.notifier = n
		}
	}
}

// WithTracker registers each run's scratch directory so an interrupt
// handler can remove it.
func WithTracker(t *util.ScratchTracker) Option {
	return func(rn *Runner) { rn.tracker = t }
}

// WithProgress supplies a progress sink per run, labelled with the output name.
func WithProgress(f func(label string) downloader.Progress) Option {
	return func(rn *Runner) { rn.progress = f }
}

func WithClock(now func() time.Time) Option {
	return func(rn *Runner) { rn.now = now }
}

func New(
	opts Options,
	f Fetcher,
	s locator.Strategy,
	r Retriever,
	a assembler.Assembler,
	log *ui.Logger,
	extra ...Option,
) *Runner {
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = filepath.Join(os.TempDir(), "mangapdf")
	}

	rn := &Runner{
		opts:      opts,
		fetcher:   f,
		strategy:  s,
		retriever: r,
		assembler: a,
		log:       log,
		notifier:  notify.Noop{},
		now:       time.Now,
	}
	for _, o := range extra {
		o(rn)
	}

	return rn
}

// Result describes a finished run, successful or not.
type Result struct {
	Request    chapters.Request
	State      State
	Output     string
	ScratchDir string

	Located   []chapters.ImageRef
	Retrieved []chapters.RetrievedImage
	Failed    []downloader.Outcome
	Bytes     int64

	Elapsed  time.Duration
	Recorded bool
}

// Run executes one chapter download. Run-level failures are *Error values;
// a cancelled ctx is returned as ctx.Err().
func (r *Runner) Run(ctx context.Context, req chapters.Request) (res Result, err error) {
	start := r.now()
	res = Result{Request: req, State: Start}
	defer func() { res.Elapsed = r.now().Sub(start) }()

	r.report(ctx, r.log.Infof, "Attempting to access URL: %s", req.PageURL)

	page, err := r.fetcher.Fetch(ctx, req.PageURL)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.State = FetchFailedState
		r.report(ctx, r.log.Errorf, "Failed to get response from %s: %v", req.PageURL, err)
		return res, &Error{Kind: FetchFailed, URL: req.PageURL, Err: err}
	}
	if !page.OK() {
		res.State = FetchFailedState
		r.report(ctx, r.log.Errorf, "Failed to get response from %s. Status code: %d", req.PageURL, page.Status)
		return res, &Error{
			Kind:   FetchFailed,
			URL:    req.PageURL,
			Status: page.Status,
			Err:    fmt.Errorf("HTTP %d", page.Status),
		}
	}
	res.State = Fetched

	refs, err := locator.Locate(r.strategy, page.Body, page.ContentType, req.PageURL)
	if err != nil || len(refs) == 0 {
		res.State = NoImages
		r.report(ctx, r.log.Warnf, "No manga images found on %s", req.PageURL)
		return res, &Error{Kind: NoImagesFound, URL: req.PageURL, Err: err}
	}
	res.State = Located
	res.Located = refs
	r.log.Infof("Located %d images on %s (strategy %s)\n", len(refs), req.PageURL, r.strategy.Name())

	dir := filepath.Join(r.opts.ScratchRoot, util.ScratchPrefix+uuid.NewString())
	res.ScratchDir = dir
	if r.tracker != nil {
		r.tracker.Track(dir)
	}

	res.State = Retrieving
	var ph downloader.Progress
	if r.progress != nil {
		ph = r.progress(filepath.Base(req.OutputName))
	}

	images, outcomes, err := r.retriever.Retrieve(ctx, refs, dir, req.PageURL, ph)
	res.Retrieved = images
	for _, o := range outcomes {
		if !o.OK() {
			res.Failed = append(res.Failed, o)
		}
	}
	for _, img := range images {
		res.Bytes += img.Size
	}

	if err != nil {
		r.discardScratch(dir)
		return res, err
	}

	if len(images) == 0 {
		res.State = NoneRetrieved
		r.discardScratch(dir)
		r.report(ctx, r.log.Warnf, "No images downloaded, %s not created", req.OutputName)
		return res, &Error{
			Kind: AllImagesFailed,
			URL:  req.PageURL,
			Err:  fmt.Errorf("0 of %d images retrieved", len(refs)),
		}
	}

	output := req.OutputPath(r.opts.OutputDir)
	label := strings.ToUpper(strings.TrimPrefix(r.assembler.Ext(), "."))
	r.report(ctx, r.log.Infof, "Creating %s: %s", label, output)

	paths := chapters.Paths(images)
	if err := r.assembler.Assemble(ctx, paths, output); err != nil {
		if ctx.Err() != nil {
			r.discardScratch(dir)
			return res, ctx.Err()
		}

		res.State = AssemblyFailedState
		// scratch stays on disk for manual recovery
		if r.tracker != nil {
			r.tracker.Untrack(dir)
		}
		r.report(ctx, r.log.Errorf, "Failed to create %s: %v (images kept in %s)", output, err, dir)
		return res, &Error{Kind: AssemblyFailed, URL: req.PageURL, Err: err}
	}
	res.State = Assembled
	res.Output = output
	r.report(ctx, r.log.Infof, "%s created: %s", label, output)

	res.Recorded = r.record(ctx, req)

	if r.opts.KeepScratch {
		r.log.Infof("Keeping scratch images in %s\n", dir)
	} else {
		if err := assembler.Cleanup(paths, dir); err != nil {
			r.log.Warnf("Failed to remove scratch files: %v\n", err)
		} else {
			r.log.Debugf("Deleted scratch directory: %s\n", dir)
		}
		util.RemoveIfEmpty(r.opts.ScratchRoot)
	}
	if r.tracker != nil {
		r.tracker.Untrack(dir)
	}

	res.State = Done

	return res, nil
}

func (r *Runner) record(ctx context.Context, req chapters.Request) bool {
	if r.recorder == nil {
		return false
	}

	rec := store.DownloadRecord{
		URL:        req.PageURL,
		OutputName: req.OutputName,
		Timestamp:  r.now().UTC(),
	}
	if err := r.recorder.RecordDownload(ctx, rec); err != nil {
		r.report(ctx, r.log.Errorf, "Failed to record download of %s: %v", req.PageURL, err)
		return false
	}

	r.log.Debugf("Download recorded: %s -> %s\n", rec.URL, rec.OutputName)
	return true
}

// discardScratch removes whatever a failed or cancelled retrieval left behind.
func (r *Runner) discardScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warnf("Failed to remove %s: %v\n", dir, err)
	}
	util.RemoveIfEmpty(r.opts.ScratchRoot)

	if r.tracker != nil {
		r.tracker.Untrack(dir)
	}
}

// report logs msg and forwards it to the notifier. Notification failures are
// logged and otherwise ignored.
func (r *Runner) report(ctx context.Context, logf func(string, ...any), format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logf("%s", msg)

	if err := r.notifier.Notify(ctx, msg); err != nil {
		r.log.Errorf("Failed to send notification: %v\n", err)
	}
}
