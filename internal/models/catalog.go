// Модели каталога и продаж: продукты, меню, заказы.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Available   bool            `json:"available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description,omitempty" validate:"omitempty,max=1024"`
	Category    string          `json:"category" validate:"required,max=64"`
	Price       decimal.Decimal `json:"price" validate:"required,gt=0"`
	ImageURL    string          `json:"image_url,omitempty" validate:"omitempty,url"`
	Available   *bool           `json:"available,omitempty"`
}

type Menu struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	ProductIDs []uuid.UUID `json:"product_ids"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type MenuInput struct {
	Name       string      `json:"name" validate:"required,max=128"`
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1,dive,required"`
	Active     *bool       `json:"active,omitempty"`
}

// OrderStatus — статус заказа; переходы между статусами проверяет апстрим.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID        uuid.UUID       `json:"id"`
	KioskID   uuid.UUID       `json:"kiosk_id"`
	Number    string          `json:"number"`
	Status    OrderStatus     `json:"status"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type OrderStatusInput struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending preparing completed cancelled refunded"`
	Reason string      `json:"reason,omitempty" validate:"omitempty,max=256"`
}
