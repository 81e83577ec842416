// Package auth checks credentials against the user registry and guards who
// may add users to it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/notify"
	"github.com/brogergvhs/mangapdf/internal/store"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"golang.org/x/crypto/bcrypt"
)

const MaxAttempts = 3

var (
	ErrNotOwner   = errors.New("only the owner can add new users")
	ErrAuthFailed = errors.New("authentication failed: max attempts reached")
	ErrNoUsers    = errors.New("no authorized users found")
)

// UserStore is the slice of store.Store this package needs.
type UserStore interface {
	ListUsers(ctx context.Context) (map[string]string, error)
	AddUser(ctx context.Context, username, secret string) error
}

// Credentials supplies one username/password pair per call.
type Credentials interface {
	Username() (string, error)
	Password() (string, error)
}

type Service struct {
	users  UserStore
	owner  string
	notify notify.Notifier
	log    *ui.Logger
	cost   int
}

type Option func(*Service)

// WithCost overrides the bcrypt cost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func New(users UserStore, owner string, n notify.Notifier, log *ui.Logger, opts ...Option) *Service {
	if n == nil {
		n = notify.Noop{}
	}
	s := &Service{
		users:  users,
		owner:  strings.TrimSpace(owner),
		notify: n,
		log:    log,
		cost:   bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(s)
	}

	return s
}

// IsOwner reports whether id matches the configured owner. An unset owner
// matches nobody.
func (s *Service) IsOwner(id string) bool {
	return s.owner != "" && strings.TrimSpace(id) == s.owner
}

// CheckOwner returns ErrNotOwner, after logging and notifying the attempt,
// unless requester is the owner.
func (s *Service) CheckOwner(ctx context.Context, requester string) error {
	if s.IsOwner(requester) {
		return nil
	}

	s.report(ctx, s.log.Warnf, "Unauthorized attempt to add user by %s", requester)
	return ErrNotOwner
}

func (s *Service) AddUser(ctx context.Context, username, password, requester string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	if err := s.CheckOwner(ctx, requester); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.AddUser(ctx, username, string(hash)); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			s.report(ctx, s.log.Warnf, "Username '%s' already exists", username)
		}
		return err
	}

	s.report(ctx, s.log.Infof, "New authorized user added: %s", username)
	return nil
}

// Verify checks one username/password pair.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}

	return match(users, username, password), nil
}

// IsRegistered reports whether username exists in the registry.
func (s *Service) IsRegistered(ctx context.Context, username string) (bool, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}

	_, ok := users[strings.TrimSpace(username)]
	return ok, nil
}

// Authenticate asks creds for up to MaxAttempts pairs and returns the
// username that matched.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		s.report(ctx, s.log.Warnf, "No authorized users found")
		return "", ErrNoUsers
	}

	for left := MaxAttempts; left > 0; {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name, err := creds.Username()
		if err != nil {
			return "", err
		}
		pass, err := creds.Password()
		if err != nil {
			return "", err
		}

		if match(users, name, pass) {
			s.report(ctx, s.log.Infof, "User '%s' authenticated successfully", name)
			return name, nil
		}

		left--
		s.report(ctx, s.log.Warnf, "Authentication failed for '%s'. Attempts left: %d", name, left)
	}

	s.report(ctx, s.log.Errorf, "Authentication failed: Max attempts reached")
	return "", ErrAuthFailed
}

func (s *Service) report(ctx context.Context, logf func(string, ...any), format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logf("%s", msg)
	if err := s.notify.Notify(ctx, msg); err != nil {
		s.log.Errorf("Failed to send notification: %v", err)
	}
}

func match(users map[string]string, username, password string) bool {
	hash, ok := users[strings.TrimSpace(username)]
	if !ok {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
