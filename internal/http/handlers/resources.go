package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
	"github.com/pribylovaa/kiosk-admin/internal/models"
)

// Reader — ресурс только для чтения (*api.ReadOnly[T]).
type Reader[T any] interface {
	List(ctx context.Context, p models.ListParams) (models.Page[T], error)
	Get(ctx context.Context, id uuid.UUID) (T, error)
}

// Writer — ресурс с полным CRUD (*api.Resource[T, In]).
type Writer[T, In any] interface {
	Reader[T]
	Create(ctx context.Context, in In) (T, error)
	Update(ctx context.Context, id uuid.UUID, in In) (T, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MountReadOnly регистрирует GET /{path} и GET /{path}/{id}.
func MountReadOnly[T any](rt chi.Router, path string, res Reader[T]) {
	rt.Get(path, func(w http.ResponseWriter, r *http.Request) {
		page, err := res.List(r.Context(), models.ListParamsFromQuery(r.URL.Query()))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	})

	rt.Get(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		item, err := res.Get(r.Context(), id)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})
}

// MountResource добавляет к чтению POST, PATCH и DELETE.
func MountResource[T, In any](rt chi.Router, path string, res Writer[T, In]) {
	MountReadOnly[T](rt, path, res)

	rt.Post(path, func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeStrict(r, &in); err != nil {
			apperrors.WriteError(w, r, errBadBody)
			return
		}

		item, err := res.Create(r.Context(), in)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})

	rt.Patch(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		var in In
		if err := decodeStrict(r, &in); err != nil {
			apperrors.WriteError(w, r, errBadBody)
			return
		}

		item, err := res.Update(r.Context(), id, in)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})

	rt.Delete(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := res.Delete(r.Context(), id); err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// UpdateOrderStatus — PATCH /orders/{id}/status.
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	var in models.OrderStatusInput
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, errBadBody)
		return
	}

	order, err := h.API.Orders.UpdateStatus(r.Context(), id, in)
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Register — единая точка регистрации REST-эндпойнтов BFF.
func (h *Handlers) Register(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/session", h.SessionStatus)

	a := h.API
	MountResource[models.Organization, models.OrganizationInput](r, "/organizations", a.Organizations)
	MountResource[models.Store, models.StoreInput](r, "/stores", a.Stores)
	MountResource[models.Kiosk, models.KioskInput](r, "/kiosks", a.Kiosks)
	MountResource[models.Device, models.DeviceInput](r, "/devices", a.Devices)
	MountResource[models.Product, models.ProductInput](r, "/products", a.Products)
	MountResource[models.Menu, models.MenuInput](r, "/menus", a.Menus)
	MountResource[models.Workflow, models.WorkflowInput](r, "/workflows", a.Workflows)
	MountResource[models.Notification, models.NotificationInput](r, "/notifications", a.Notifications)

	MountReadOnly[models.Order](r, "/orders", a.Orders)
	r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
	MountReadOnly[models.SyncEvent](r, "/sync-events", a.SyncEvents)
}
