package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/kiosk-admin/internal/api"
	"github.com/pribylovaa/kiosk-admin/internal/authclient"
	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
)

var (
	errBadBody = apperrors.NewKind(http.StatusBadRequest, "invalid_argument", "malformed json body")
	errBadID   = apperrors.NewKind(http.StatusBadRequest, "invalid_argument", "malformed id")
)

// Session — операции с сессией администратора. Реализуется *authclient.Client.
type Session interface {
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context) error
	Status(ctx context.Context) (authclient.Status, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	Session   Session
	API       *api.API
	Validator *api.Validator
}

func New(s Session, a *api.API) *Handlers {
	return &Handlers{Session: s, API: a, Validator: api.NewValidator()}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apperrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errBadID
	}
	return id, nil
}
