// Модели парка киосков: организации, магазины, киоски, устройства.
package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrganizationInput struct {
	Name   string `json:"name" validate:"required,max=128"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  string `json:"phone,omitempty" validate:"omitempty,e164"`
	Active *bool  `json:"active,omitempty"`
}

type Store struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Latitude       float64   `json:"latitude,omitempty"`
	Longitude      float64   `json:"longitude,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type StoreInput struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=128"`
	Address        string    `json:"address" validate:"required,max=256"`
	Latitude       float64   `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude      float64   `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Active         *bool     `json:"active,omitempty"`
}

// KioskStatus — состояние киоска, как его сообщает апстрим.
type KioskStatus string

const (
	KioskOnline      KioskStatus = "online"
	KioskOffline     KioskStatus = "offline"
	KioskMaintenance KioskStatus = "maintenance"
)

type Kiosk struct {
	ID         uuid.UUID   `json:"id"`
	StoreID    uuid.UUID   `json:"store_id"`
	MenuID     *uuid.UUID  `json:"menu_id,omitempty"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Status     KioskStatus `json:"status"`
	LastSeenAt *time.Time  `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type KioskInput struct {
	StoreID uuid.UUID   `json:"store_id" validate:"required"`
	MenuID  *uuid.UUID  `json:"menu_id,omitempty"`
	Code    string      `json:"code" validate:"required,alphanum,max=32"`
	Name    string      `json:"name" validate:"required,max=128"`
	Status  KioskStatus `json:"status,omitempty" validate:"omitempty,oneof=online offline maintenance"`
}

type Device struct {
	ID           uuid.UUID `json:"id"`
	KioskID      uuid.UUID `json:"kiosk_id"`
	Kind         string    `json:"kind"`
	SerialNumber string    `json:"serial_number"`
	Firmware     string    `json:"firmware,omitempty"`
	Healthy      bool      `json:"healthy"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DeviceInput struct {
	KioskID      uuid.UUID `json:"kiosk_id" validate:"required"`
	Kind         string    `json:"kind" validate:"required,oneof=grinder brewer milk_frother payment_terminal printer dispenser"`
	SerialNumber string    `json:"serial_number" validate:"required,max=64"`
	Firmware     string    `json:"firmware,omitempty" validate:"omitempty,max=32"`
}
