// realtime — websocket-клиент хаба уведомлений админки.
//
// Хаб шлёт JSON-сообщения {"type","title","description","severity"};
// клиент пересылает их в notify.Notifier. Потеря соединения переживается
// автоматическим переподключением с паузами из Backoff.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pribylovaa/kiosk-admin/internal/notify"
)

// DefaultBackoff — паузы перед попытками переподключения.
var DefaultBackoff = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

var ErrRetriesExhausted = errors.New("realtime: reconnect attempts exhausted")

// TokenSource выдаёт действующий access-токен. Реализуется *authclient.Client,
// поэтому перед подключением срабатывает проактивный refresh.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Message — сообщение хаба.
type Message struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// State — состояние подключения.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

type Client struct {
	url      string
	tokens   TokenSource
	notifier notify.Notifier
	log      *slog.Logger
	backoff  []time.Duration
	dialer   *websocket.Dialer

	state atomic.Int32
}

func New(url string, tokens TokenSource, n notify.Notifier, log *slog.Logger, backoff []time.Duration) *Client {
	if n == nil {
		n = notify.Nop
	}
	if log == nil {
		log = slog.Default()
	}
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}

	return &Client{
		url:      url,
		tokens:   tokens,
		notifier: n,
		log:      log.With(slog.String("component", "realtime")),
		backoff:  backoff,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *Client) State() State { return State(c.state.Load()) }

// Run подключается к хабу и обрабатывает сообщения до отмены ctx.
// Возвращает nil при отмене, ошибку при неудачном первом подключении
// или ErrRetriesExhausted, если переподключиться не удалось.
func (c *Client) Run(ctx context.Context) error {
	const op = "realtime.Client.Run"

	c.state.Store(int32(StateConnecting))

	conn, err := c.dial(ctx)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		if ctx.Err() != nil {
			return nil
		}
		c.toast(ctx, "Realtime unavailable", "Could not connect to the notification hub.", notify.SeverityError)
		return fmt.Errorf("%s: %w", op, err)
	}

	c.state.Store(int32(StateConnected))
	c.log.Info("realtime_connected")

	for {
		err := c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			c.state.Store(int32(StateDisconnected))
			return nil
		}

		c.state.Store(int32(StateReconnecting))
		c.log.Warn("realtime_connection_lost", slog.String("err", err.Error()))
		c.toast(ctx, "Connection lost", "Reconnecting to the notification hub...", notify.SeverityWarning)

		conn, err = c.reconnect(ctx)
		if err != nil {
			c.state.Store(int32(StateDisconnected))
			if ctx.Err() != nil {
				return nil
			}
			c.toast(ctx, "Realtime disconnected", "Live updates are off. Reload to try again.", notify.SeverityError)
			return fmt.Errorf("%s: %w", op, err)
		}

		c.state.Store(int32(StateConnected))
		c.log.Info("realtime_reconnected")
		c.toast(ctx, "Reconnected", "Live updates restored.", notify.SeveritySuccess)
	}
}

func (c *Client) reconnect(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for i, d := range c.backoff {
		if d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}

		lastErr = err
		c.log.Warn("realtime_reconnect_failed", slog.Int("attempt", i+1), slog.String("err", err.Error()))
	}

	return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	h := http.Header{}
	if c.tokens != nil {
		tok, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		h.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, h)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// readLoop читает сообщения до ошибки соединения или отмены ctx.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			return err
		}

		if m.Title == "" {
			c.log.Debug("realtime_message_skipped", slog.String("type", m.Type))
			continue
		}

		sev := notify.Severity(m.Severity)
		if !sev.Valid() {
			sev = notify.SeverityInfo
		}

		c.toast(ctx, m.Title, m.Description, sev)
	}
}

func (c *Client) toast(ctx context.Context, title, desc string, sev notify.Severity) {
	err := c.notifier.Notify(ctx, notify.Notification{Title: title, Description: desc, Severity: sev})
	if err != nil {
		c.log.Warn("notify_failed", slog.String("err", err.Error()))
	}
}
