// Package notify delivers short status messages about runs to a channel
// outside the process.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/telegram"
	"github.com/brogergvhs/mangapdf/internal/ui"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// Telegram posts messages to a chat or channel through a bot.
type Telegram struct {
	client *telegram.Client
	chatID string
}

func NewTelegram(client *telegram.Client, chatID string) (*Telegram, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	return &Telegram{client: client, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, message string) error {
	return t.client.SendMessage(ctx, t.chatID, message)
}

type Multi struct {
	notifiers []Notifier
}

func NewMulti(items ...Notifier) *Multi {
	filtered := make([]Notifier, 0, len(items))
	for _, item := range items {
		if item != nil {
			filtered = append(filtered, item)
		}
	}

	return &Multi{notifiers: filtered}
}

// Notify tries every notifier and joins the failures.
func (m *Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// BestEffort logs delivery failures and never returns them.
type BestEffort struct {
	next Notifier
	log  *ui.Logger
}

func NewBestEffort(next Notifier, log *ui.Logger) *BestEffort {
	if next == nil {
		next = Noop{}
	}

	return &BestEffort{next: next, log: log}
}

func (b *BestEffort) Notify(ctx context.Context, message string) error {
	if err := b.next.Notify(ctx, message); err != nil {
		b.log.Errorf("Failed to send notification: %v\n", err)
	}

	return nil
}
