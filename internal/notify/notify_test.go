package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// capHandler — простой slog.Handler, сохраняющий записи для проверок.
type capHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *capHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capHandler) WithGroup(string) slog.Handler      { return h }

func attrsOf(r slog.Record) map[string]string {
	out := map[string]string{}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

func TestLog_LevelBySeverity(t *testing.T) {
	h := &capHandler{}
	n := NewLog(slog.New(h))

	cases := []struct {
		sev  Severity
		want slog.Level
	}{
		{SeverityInfo, slog.LevelInfo},
		{SeveritySuccess, slog.LevelInfo},
		{SeverityWarning, slog.LevelWarn},
		{SeverityError, slog.LevelError},
	}

	for _, c := range cases {
		require.NoError(t, n.Notify(context.Background(), Notification{Title: "t", Description: "d", Severity: c.sev}))
	}

	require.Len(t, h.records, len(cases))
	for i, c := range cases {
		r := h.records[i]
		require.Equal(t, c.want, r.Level)
		require.Equal(t, "notification", r.Message)
		a := attrsOf(r)
		require.Equal(t, "t", a["title"])
		require.Equal(t, string(c.sev), a["severity"])
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	var got []string
	boom := errors.New("boom")

	m := Multi{
		Func(func(_ context.Context, n Notification) error { got = append(got, "a:"+n.Title); return nil }),
		nil,
		Func(func(context.Context, Notification) error { return boom }),
		Func(func(_ context.Context, n Notification) error { got = append(got, "c:"+n.Title); return nil }),
	}

	err := m.Notify(context.Background(), Notification{Title: "x"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"a:x", "c:x"}, got)
}

func TestSeverity_Valid(t *testing.T) {
	require.True(t, SeverityInfo.Valid())
	require.True(t, SeverityError.Valid())
	require.False(t, Severity("fatal").Valid())
	require.NoError(t, Nop.Notify(context.Background(), Notification{}))
}
