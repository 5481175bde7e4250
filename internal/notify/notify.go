// notify — приёмники пользовательских уведомлений (toast): лог, Telegram, история в MongoDB.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Severity — уровень уведомления.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid сообщает, является ли значение одним из известных уровней.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification — одно уведомление для оператора.
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

//go:generate mockgen -destination=../../mocks/mock_notifier.go -package=mocks github.com/pribylovaa/kiosk-admin/internal/notify Notifier

// Notifier принимает уведомления. Реализации не должны блокировать надолго:
// клиент вызывает Notify синхронно на пути запроса.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func адаптирует функцию к Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop молча отбрасывает уведомления.
var Nop Notifier = Func(func(context.Context, Notification) error { return nil })

// Multi рассылает уведомление во все приёмники по порядку.
// Ошибка одного приёмника не мешает остальным; ошибки объединяются.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log пишет уведомления в slog с уровнем по Severity.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

func (l *Log) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	l.log.Log(ctx, level, "notification",
		slog.String("title", n.Title),
		slog.String("description", n.Description),
		slog.String("severity", string(n.Severity)),
	)
	return nil
}
