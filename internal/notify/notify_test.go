package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brogergvhs/mangapdf/internal/telegram"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	msgs []string
	err  error
}

func (r *recorder) Notify(_ context.Context, m string) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	a := &recorder{err: errors.New("down")}
	b := &recorder{}

	err := NewMulti(a, nil, b).Notify(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, []string{"hi"}, a.msgs)
	assert.Equal(t, []string{"hi"}, b.msgs)
}

func TestBestEffortSwallowsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	log := ui.NewTestLogger().WithOutput(&buf)

	n := NewBestEffort(&recorder{err: errors.New("boom")}, log)
	assert.NoError(t, n.Notify(context.Background(), "x"))
	assert.Contains(t, buf.String(), "boom")
}

func TestTelegramNotifier(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	_, err := NewTelegram(telegram.NewClient("t"), " ")
	assert.Error(t, err)

	n, err := NewTelegram(telegram.NewClient("t", telegram.WithBaseURL(srv.URL)), "@logs")
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), "PDF created"))
	assert.Equal(t, 1, hits)
}
