// session — хранилища пары токенов (credential store) для аутентифицированного клиента.
//
// Контракт минимален: Get/Set/Clear. В любой момент валидна только одна пара,
// Set полностью заменяет предыдущую.
package session

import (
	"context"
	"errors"

	"github.com/pribylovaa/kiosk-admin/internal/models"
)

var (
	// ErrStoreUnavailable — бэкенд хранилища не ответил или вернул ошибку.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSchemaMissing — таблица сессий не создана (postgres).
	ErrSchemaMissing = errors.New("session schema missing")
)

//go:generate mockgen -destination=../../mocks/mock_store.go -package=mocks github.com/pribylovaa/kiosk-admin/internal/session Store

// Store задаёт контракт хранилища пары токенов.
type Store interface {
	// Get возвращает текущую пару и признак её наличия.
	Get(ctx context.Context) (models.TokenPair, bool, error)
	// Set заменяет пару.
	Set(ctx context.Context, pair models.TokenPair) error
	// Clear удаляет пару (logout / терминальный отказ refresh).
	Clear(ctx context.Context) error
}
