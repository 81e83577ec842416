package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/assembler"
	"github.com/brogergvhs/mangapdf/internal/auth"
	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/fetch"
	"github.com/brogergvhs/mangapdf/internal/locator"
	"github.com/brogergvhs/mangapdf/internal/notify"
	"github.com/brogergvhs/mangapdf/internal/pipeline"
	"github.com/brogergvhs/mangapdf/internal/store"
	"github.com/brogergvhs/mangapdf/internal/telegram"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"
)

// app holds what every command builds from the merged config. Nothing here
// is global; each command creates one and closes it.
type app struct {
	cfg  *config.Config
	used string
	log  *ui.Logger

	notifier notify.Notifier
	store    store.Store
}

func newApp(opts config.Options) (*app, error) {
	opts.IgnoreConfig = flagIgnoreConfig
	opts.Debug = opts.Debug || flagDebug
	opts.EnvFile = flagEnvFile
	if opts.LogFile == "" {
		opts.LogFile = flagLogFile
	}

	cfg, used, err := config.LoadMerged(opts)
	if err != nil {
		return nil, err
	}

	log, err := ui.NewLogger(cfg.Debug, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, used: used, log: log}
	a.notifier = notify.NewBestEffort(a.buildNotifier(), log)

	return a, nil
}

// buildNotifier posts to every chat listed in telegram.log_channel_id
// (comma separated). Without a bot token nothing is sent.
func (a *app) buildNotifier() notify.Notifier {
	tg := a.cfg.Telegram
	if tg.BotToken == "" || tg.LogChannelID == "" {
		return notify.Noop{}
	}

	client := telegram.NewClient(tg.BotToken)

	var targets []notify.Notifier
	for _, id := range strings.Split(tg.LogChannelID, ",") {
		n, err := notify.NewTelegram(client, id)
		if err != nil {
			continue
		}
		targets = append(targets, n)
	}

	a.log.Debugf("Telegram log channel enabled (%d chats)\n", len(targets))
	return notify.NewMulti(targets...)
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	st, err := store.Open(ctx, store.Config{
		Driver:        a.cfg.Store.Driver,
		SQLitePath:    a.cfg.Store.SQLitePath,
		MongoURI:      a.cfg.Store.MongoURI,
		MongoDatabase: a.cfg.Store.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
	}

	a.store = st
	return st, nil
}

func (a *app) authService(st store.Store) *auth.Service {
	return auth.New(st, a.cfg.Telegram.OwnerID, a.notifier, a.log)
}

// newRunner wires fetcher, locator, retriever and assembler from config.
func (a *app) newRunner(rec pipeline.Recorder, extra ...pipeline.Option) (*pipeline.Runner, assembler.Assembler, error) {
	strategy, err := locator.Select(a.cfg.Strategy, locator.Options{
		Markers:     a.cfg.ImageMarkers,
		SourceAttrs: a.cfg.SourceAttrs,
		AllowExt:    a.cfg.AllowExt,
	})
	if err != nil {
		return nil, nil, err
	}

	asm, err := assembler.Select(a.cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:          a.cfg.Timeout(),
		UserAgent:        a.cfg.UserAgent,
		Cookie:           a.cfg.Cookie,
		CookieFile:       a.cfg.CookieFile,
		CloudflareBypass: a.cfg.CloudflareBypass,
		DebugLogger:      a.log,
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{pipeline.WithNotifier(a.notifier)}
	if rec != nil {
		opts = append(opts, pipeline.WithRecorder(rec))
	}
	opts = append(opts, extra...)

	r := pipeline.New(
		pipeline.Options{
			OutputDir:   a.cfg.Output,
			ScratchRoot: a.cfg.ScratchDir,
			KeepScratch: a.cfg.KeepScratch,
		},
		fetch.New(client, a.log),
		strategy,
		downloader.New(client, a.log),
		asm,
		a.log,
		opts...,
	)

	return r, asm, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnf("Failed to close store: %v\n", err)
		}
	}
	_ = a.log.Close()
}
