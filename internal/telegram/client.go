// Package telegram adapts the Bot API library to what the bot and the log
// channel need: sending text messages and long-polling for updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const DefaultBaseURL = "https://api.telegram.org"

type User struct {
	ID       int64
	Username string
}

type Chat struct {
	ID int64
}

type Message struct {
	MessageID int64
	From      *User
	Chat      Chat
	Text      string
}

type Update struct {
	UpdateID int64
	Message  *Message
}

// APIError is a response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type Client struct {
	api  *tgbotapi.BotAPI
	http *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.api.SetAPIEndpoint(strings.TrimRight(u, "/") + "/bot%s/%s") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client without contacting Telegram; the token is first
// used by the first request.
func NewClient(token string, opts ...Option) *Client {
	api := &tgbotapi.BotAPI{Token: token, Buffer: 100}
	api.SetAPIEndpoint(tgbotapi.APIEndpoint)

	c := &Client{
		api:  api,
		http: &http.Client{Timeout: 70 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}

	return c
}

// SendMessage posts text to chatID, which may be numeric or an @channel name.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = strings.TrimSpace(chatID)

	msg := tgbotapi.NewMessageToChannel(chatID, text)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	}

	_, err := c.bind(ctx).Send(msg)
	return c.wrap("sendMessage", err)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = int(timeout.Seconds())
	cfg.AllowedUpdates = []string{"message"}

	raw, err := c.bind(ctx).GetUpdates(cfg)
	if err != nil {
		return nil, c.wrap("getUpdates", err)
	}

	out := make([]Update, 0, len(raw))
	for _, u := range raw {
		out = append(out, Update{UpdateID: int64(u.UpdateID), Message: convertMessage(u.Message)})
	}

	return out, nil
}

// bind returns a copy of the library client whose requests carry ctx.
func (c *Client) bind(ctx context.Context) *tgbotapi.BotAPI {
	api := *c.api
	api.Client = ctxDoer{ctx: ctx, http: c.http}

	return &api
}

type ctxDoer struct {
	ctx  context.Context
	http *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.http.Do(req.WithContext(d.ctx))
}

func (c *Client) wrap(method string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{Method: method, Code: apiErr.Code, Description: apiErr.Message}
	}

	// transport errors quote the request URL, which carries the token
	msg := err.Error()
	if c.api.Token != "" {
		msg = strings.ReplaceAll(msg, c.api.Token, "***")
	}

	return fmt.Errorf("telegram %s: %s", method, msg)
}

func convertMessage(m *tgbotapi.Message) *Message {
	if m == nil {
		return nil
	}

	out := &Message{MessageID: int64(m.MessageID), Text: m.Text}
	if m.From != nil {
		out.From = &User{ID: m.From.ID, Username: m.From.UserName}
	}
	if m.Chat != nil {
		out.Chat = Chat{ID: m.Chat.ID}
	}

	return out
}
