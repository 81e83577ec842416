// Package bot serves chapter downloads over a Telegram bot using long polling.
package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brogergvhs/mangapdf/internal/auth"
	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/pipeline"
	"github.com/brogergvhs/mangapdf/internal/store"
	"github.com/brogergvhs/mangapdf/internal/telegram"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"
)

const (
	historyLimit = 10
	retryDelay   = 3 * time.Second
)

// API is the part of the Bot API the bot uses; *telegram.Client implements it.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text string) error
}

type History interface {
	ListDownloads(ctx context.Context) ([]store.DownloadRecord, error)
}

// DownloadFunc runs one chapter download for a page URL and output name.
type DownloadFunc func(ctx context.Context, rawURL, name string) (pipeline.Result, error)

type Bot struct {
	api      API
	auth     *auth.Service
	history  History
	download DownloadFunc
	log      *ui.Logger
	poll     time.Duration
}

func New(api API, a *auth.Service, h History, download DownloadFunc, log *ui.Logger, poll time.Duration) *Bot {
	if poll <= 0 {
		poll = 30 * time.Second
	}

	return &Bot{
		api:      api,
		auth:     a,
		history:  h,
		download: download,
		log:      log,
		poll:     poll,
	}
}

// Run polls for updates until ctx is cancelled. Messages are handled one at
// a time, so downloads never overlap.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64

	b.log.Infof("Bot started, polling for updates\n")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.poll)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			b.log.Warnf("getUpdates failed: %v\n", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" {
				continue
			}

			reply := b.Handle(ctx, u.Message)
			if reply == "" {
				continue
			}

			chat := strconv.FormatInt(u.Message.Chat.ID, 10)
			if err := b.api.SendMessage(ctx, chat, reply); err != nil {
				b.log.Errorf("Failed to reply in chat %s: %v\n", chat, err)
			}
		}
	}
}

// Handle executes one command message and returns the reply text.
func (b *Bot) Handle(ctx context.Context, msg *telegram.Message) string {
	cmd, args := parseCommand(msg.Text)
	if cmd == "" {
		return ""
	}

	var userID, username string
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
		username = msg.From.Username
	}
	b.log.Debugf("Command /%s from %s (%s)\n", cmd, userID, username)

	switch cmd {
	case "start", "help":
		return "Welcome to mangapdf! Use /download <url> <pdf_name>, /history, or /add_auth <username> <password> (owner only)."
	case "add_auth":
		return b.addAuth(ctx, userID, args)
	case "download":
		return b.downloadCmd(ctx, userID, username, args)
	case "history":
		return b.historyCmd(ctx, userID, username)
	default:
		return "Unknown command. Send /start for help."
	}
}

func (b *Bot) addAuth(ctx context.Context, userID string, args []string) string {
	if len(args) != 2 {
		return "Usage: /add_auth <username> <password>"
	}

	err := b.auth.AddUser(ctx, args[0], args[1], userID)
	switch {
	case err == nil:
		return fmt.Sprintf("User '%s' added successfully!", args[0])
	case errors.Is(err, auth.ErrNotOwner):
		return "Only the owner can add new users."
	case errors.Is(err, store.ErrUserExists):
		return fmt.Sprintf("Username '%s' already exists. Try a different username.", args[0])
	default:
		b.log.Errorf("add_auth failed: %v\n", err)
		return "Failed to add user. Check logs."
	}
}

func (b *Bot) downloadCmd(ctx context.Context, userID, username string, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /download <url> <pdf_name>"
	}

	if reply, ok := b.authorize(ctx, userID, username); !ok {
		return reply
	}

	name := ""
	if len(args) == 2 {
		name = args[1]
	}

	res, err := b.download(ctx, args[0], name)
	if err != nil {
		return downloadFailure(err)
	}

	label := strings.ToUpper(strings.TrimPrefix(filepath.Ext(res.Output), "."))
	msg := fmt.Sprintf("%s '%s' created successfully! %d pages", label, res.Request.OutputName, len(res.Retrieved))
	if n := len(res.Failed); n > 0 {
		msg += fmt.Sprintf(", %d failed", n)
	}

	return msg + fmt.Sprintf(" (%s).", util.Human(res.Bytes))
}

func (b *Bot) historyCmd(ctx context.Context, userID, username string) string {
	if reply, ok := b.authorize(ctx, userID, username); !ok {
		return reply
	}

	recs, err := b.history.ListDownloads(ctx)
	if err != nil {
		b.log.Errorf("history failed: %v\n", err)
		return "Failed to read download history. Check logs."
	}
	if len(recs) == 0 {
		return "No downloads yet."
	}

	if len(recs) > historyLimit {
		recs = recs[len(recs)-historyLimit:]
	}

	var sb strings.Builder
	sb.WriteString("Recent downloads:\n")
	for _, r := range recs {
		fmt.Fprintf(&sb, "%s  %s\n  %s\n", r.Timestamp.Format("2006-01-02 15:04"), r.OutputName, r.URL)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// authorize admits the owner and any registered user, matched by Telegram
// username or numeric id.
func (b *Bot) authorize(ctx context.Context, userID, username string) (string, bool) {
	if b.auth.IsOwner(userID) {
		return "", true
	}

	for _, id := range []string{username, userID} {
		if id == "" {
			continue
		}
		ok, err := b.auth.IsRegistered(ctx, id)
		if err != nil {
			b.log.Errorf("authorization lookup failed: %v\n", err)
			return "Authorization check failed. Check logs.", false
		}
		if ok {
			return "", true
		}
	}

	return "You are not authorized to download.", false
}

func downloadFailure(err error) string {
	if errors.Is(err, chapters.ErrUnsafeName) {
		return "The file name must be a plain name without folders."
	}

	kind, ok := pipeline.KindOf(err)
	if !ok {
		return fmt.Sprintf("Download failed: %v", err)
	}

	switch kind {
	case pipeline.FetchFailed:
		return "Could not load that page. Check that the link is correct."
	case pipeline.NoImagesFound:
		return "No manga images found on that page."
	case pipeline.AllImagesFailed:
		return "No images could be downloaded, nothing was created."
	default:
		return "Failed to create the file. Check logs."
	}
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	return strings.ToLower(cmd), fields[1:]
}
