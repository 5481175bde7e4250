// Модели операционного контура: воркфлоу, уведомления, события синхронизации.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WorkflowStep struct {
	Name    string          `json:"name"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params,omitempty"`
	Timeout int             `json:"timeout_sec,omitempty"`
}

type Workflow struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	ProductID *uuid.UUID     `json:"product_id,omitempty"`
	Steps     []WorkflowStep `json:"steps"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type WorkflowStepInput struct {
	Name    string          `json:"name" validate:"required,max=64"`
	Action  string          `json:"action" validate:"required,max=64"`
	Params  json.RawMessage `json:"params,omitempty"`
	Timeout int             `json:"timeout_sec,omitempty" validate:"gte=0,lte=3600"`
}

type WorkflowInput struct {
	Name      string              `json:"name" validate:"required,max=128"`
	ProductID *uuid.UUID          `json:"product_id,omitempty"`
	Steps     []WorkflowStepInput `json:"steps" validate:"required,min=1,dive"`
	Active    *bool               `json:"active,omitempty"`
}

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Severity  string     `json:"severity"`
	KioskID   *uuid.UUID `json:"kiosk_id,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}

type NotificationInput struct {
	Title    string     `json:"title" validate:"required,max=128"`
	Body     string     `json:"body" validate:"required,max=2048"`
	Severity string     `json:"severity" validate:"required,oneof=info success warning error"`
	KioskID  *uuid.UUID `json:"kiosk_id,omitempty"`
	Read     *bool      `json:"read,omitempty"`
}

// SyncEvent — запись журнала синхронизации киоска с облаком (только чтение).
type SyncEvent struct {
	ID         uuid.UUID       `json:"id"`
	KioskID    uuid.UUID       `json:"kiosk_id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
