// api — типизированные ресурсы REST API админки поверх аутентифицированного клиента.
//
// Каждый экран админки сводится к одному шаблону: страница сущностей,
// просмотр/создание/изменение одной сущности, повторная выборка.
// Resource[T, In] реализует этот шаблон для любого пути.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/pribylovaa/kiosk-admin/internal/models"
)

// Doer выполняет JSON-запрос относительно базового URL апстрима.
// Реализуется *authclient.Client.
type Doer interface {
	DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error
}

// ReadOnly — ресурс только для чтения (List/Get).
type ReadOnly[T any] struct {
	c    Doer
	name string
	path string
}

func NewReadOnly[T any](c Doer, name, path string) *ReadOnly[T] {
	return &ReadOnly[T]{c: c, name: name, path: path}
}

// Name — имя ресурса (для маршрутов и логов).
func (r *ReadOnly[T]) Name() string { return r.name }

// List возвращает страницу сущностей.
func (r *ReadOnly[T]) List(ctx context.Context, p models.ListParams) (models.Page[T], error) {
	var out models.Page[T]
	if err := r.c.DoJSON(ctx, http.MethodGet, r.path, p.Query(), nil, &out); err != nil {
		return models.Page[T]{}, fmt.Errorf("api.%s.List: %w", r.name, err)
	}

	if out.Items == nil {
		out.Items = []T{}
	}

	return out, nil
}

func (r *ReadOnly[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var out T
	if err := r.c.DoJSON(ctx, http.MethodGet, r.itemPath(id), nil, nil, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("api.%s.Get: %w", r.name, err)
	}

	return out, nil
}

func (r *ReadOnly[T]) itemPath(id uuid.UUID) string {
	return r.path + "/" + id.String()
}

// Resource — полный CRUD. Payload проверяется до отправки запроса.
type Resource[T, In any] struct {
	*ReadOnly[T]
	v *Validator
}

func NewResource[T, In any](c Doer, v *Validator, name, path string) *Resource[T, In] {
	return &Resource[T, In]{ReadOnly: NewReadOnly[T](c, name, path), v: v}
}

func (r *Resource[T, In]) Create(ctx context.Context, in In) (T, error) {
	var out T
	if err := r.v.Validate(in); err != nil {
		return out, fmt.Errorf("api.%s.Create: %w", r.name, err)
	}

	if err := r.c.DoJSON(ctx, http.MethodPost, r.path, nil, in, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("api.%s.Create: %w", r.name, err)
	}

	return out, nil
}

// Update — PATCH с полным input-объектом.
func (r *Resource[T, In]) Update(ctx context.Context, id uuid.UUID, in In) (T, error) {
	var out T
	if err := r.v.Validate(in); err != nil {
		return out, fmt.Errorf("api.%s.Update: %w", r.name, err)
	}

	if err := r.c.DoJSON(ctx, http.MethodPatch, r.itemPath(id), nil, in, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("api.%s.Update: %w", r.name, err)
	}

	return out, nil
}

func (r *Resource[T, In]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.c.DoJSON(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("api.%s.Delete: %w", r.name, err)
	}

	return nil
}

// Orders — заказы только читаются, кроме смены статуса (отмена, возврат).
type Orders struct {
	*ReadOnly[models.Order]
	v *Validator
}

func (o *Orders) UpdateStatus(ctx context.Context, id uuid.UUID, in models.OrderStatusInput) (models.Order, error) {
	const op = "api.orders.UpdateStatus"

	if err := o.v.Validate(in); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	var out models.Order
	if err := o.c.DoJSON(ctx, http.MethodPatch, o.itemPath(id)+"/status", nil, in, &out); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
