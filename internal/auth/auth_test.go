package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/brogergvhs/mangapdf/internal/store"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	users map[string]string
}

func (m *memUsers) ListUsers(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.users))
	for k, v := range m.users {
		out[k] = v
	}
	return out, nil
}

func (m *memUsers) AddUser(_ context.Context, name, secret string) error {
	if _, ok := m.users[name]; ok {
		return store.ErrUserExists
	}
	m.users[name] = secret
	return nil
}

type collect struct{ msgs []string }

func (c *collect) Notify(_ context.Context, m string) error {
	c.msgs = append(c.msgs, m)
	return nil
}

type scripted struct {
	pairs [][2]string
	i     int
}

func (s *scripted) Username() (string, error) {
	if s.i >= len(s.pairs) {
		return "", errors.New("no more input")
	}
	return s.pairs[s.i][0], nil
}

func (s *scripted) Password() (string, error) {
	p := s.pairs[s.i][1]
	s.i++
	return p, nil
}

func newService(t *testing.T) (*Service, *memUsers, *collect) {
	t.Helper()
	users := &memUsers{users: map[string]string{}}
	n := &collect{}
	return New(users, "42", n, ui.NewTestLogger(), WithCost(bcrypt.MinCost)), users, n
}

func TestAddUserOwnerOnly(t *testing.T) {
	s, users, n := newService(t)
	ctx := context.Background()

	err := s.AddUser(ctx, "alice", "pw", "7")
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Empty(t, users.users)
	assert.Contains(t, n.msgs, "Unauthorized attempt to add user by 7")

	require.NoError(t, s.AddUser(ctx, "alice", "pw", "42"))
	assert.NotEqual(t, "pw", users.users["alice"], "password must be hashed")

	assert.ErrorIs(t, s.AddUser(ctx, "alice", "other", "42"), store.ErrUserExists)
}

func TestOwnerUnsetMatchesNobody(t *testing.T) {
	s := New(&memUsers{users: map[string]string{}}, "", nil, ui.NewTestLogger())
	assert.False(t, s.IsOwner(""))
	assert.False(t, s.IsOwner("42"))
}

func TestAuthenticateSucceedsWithinAttempts(t *testing.T) {
	s, _, n := newService(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, "alice", "secret", "42"))

	creds := &scripted{pairs: [][2]string{{"alice", "nope"}, {"alice", "secret"}}}
	name, err := s.Authenticate(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.Contains(t, n.msgs, "Authentication failed for 'alice'. Attempts left: 2")
	assert.Contains(t, n.msgs, "User 'alice' authenticated successfully")
}

func TestAuthenticateGivesUpAfterThree(t *testing.T) {
	s, _, n := newService(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, "alice", "secret", "42"))

	creds := &scripted{pairs: [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"alice", "secret"}}}
	_, err := s.Authenticate(ctx, creds)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, 3, creds.i)
	assert.Contains(t, n.msgs, "Authentication failed: Max attempts reached")
}

func TestAuthenticateNoUsers(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Authenticate(context.Background(), &scripted{})
	assert.ErrorIs(t, err, ErrNoUsers)
}

func TestVerifyAndIsRegistered(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, "bob", "hunter2", "42"))

	ok, err := s.Verify(ctx, "bob", "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify(ctx, "bob", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsRegistered(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsRegistered(ctx, "eve")
	require.NoError(t, err)
	assert.False(t, ok)
}
