package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brogergvhs/mangapdf/internal/bot"
	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/pipeline"
	"github.com/brogergvhs/mangapdf/internal/telegram"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Serve /download, /history and /add_auth over a Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		tg := a.cfg.Telegram
		if tg.BotToken == "" {
			return errors.New("telegram.bot_token (or MANGAPDF_TELEGRAM_TOKEN) is required")
		}
		if tg.OwnerID == "" {
			a.log.Warnf("telegram.owner_id is not set; nobody can add users\n")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := a.openStore(ctx)
		if err != nil {
			return err
		}

		runner, asm, err := a.newRunner(st)
		if err != nil {
			return err
		}

		download := func(ctx context.Context, rawURL, name string) (pipeline.Result, error) {
			req, err := chapters.NewRemoteRequest(rawURL, name, asm.Ext())
			if err != nil {
				return pipeline.Result{}, err
			}
			return runner.Run(ctx, req)
		}

		poll := time.Duration(tg.PollTimeoutSeconds) * time.Second
		client := telegram.NewClient(tg.BotToken,
			telegram.WithHTTPClient(&http.Client{Timeout: poll + 15*time.Second}),
		)

		b := bot.New(client, a.authService(st), st, download, a.log, poll)
		return b.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
