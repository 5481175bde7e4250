package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrTelegramConfig = errors.New("telegram token or chat_id missing")

// Telegram дублирует уведомления в чат дежурных через Bot API sendMessage.
// MinSeverity отсекает шум: по умолчанию отправляются только warning и error.
type Telegram struct {
	token       string
	chatID      int64
	prefix      string
	baseURL     string
	minSeverity Severity
	httpClient  *http.Client
}

func NewTelegram(token string, chatID int64, prefix string, minSeverity Severity) *Telegram {
	if !minSeverity.Valid() {
		minSeverity = SeverityWarning
	}

	return &Telegram{
		token:       token,
		chatID:      chatID,
		prefix:      prefix,
		baseURL:     "https://api.telegram.org",
		minSeverity: minSeverity,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func rank(s Severity) int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuccess:
		return 1
	}
	return 0
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	const op = "notify.Telegram.Notify"

	if t.token == "" || t.chatID == 0 {
		return fmt.Errorf("%s: %w", op, ErrTelegramConfig)
	}

	if rank(n.Severity) < rank(t.minSeverity) {
		return nil
	}

	var sb strings.Builder
	if t.prefix != "" {
		fmt.Fprintf(&sb, "[%s] ", t.prefix)
	}
	fmt.Fprintf(&sb, "%s: %s", strings.ToUpper(string(n.Severity)), n.Title)
	if n.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(n.Description)
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": t.chatID,
		"text":    sb.String(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s: status=%d body=%s", op, resp.StatusCode, string(raw))
	}

	return nil
}
