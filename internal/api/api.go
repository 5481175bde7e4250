package api

import "github.com/pribylovaa/kiosk-admin/internal/models"

// API агрегирует все ресурсы админки.
type API struct {
	Organizations *Resource[models.Organization, models.OrganizationInput]
	Stores        *Resource[models.Store, models.StoreInput]
	Kiosks        *Resource[models.Kiosk, models.KioskInput]
	Devices       *Resource[models.Device, models.DeviceInput]
	Products      *Resource[models.Product, models.ProductInput]
	Menus         *Resource[models.Menu, models.MenuInput]
	Workflows     *Resource[models.Workflow, models.WorkflowInput]
	Notifications *Resource[models.Notification, models.NotificationInput]
	Orders        *Orders
	SyncEvents    *ReadOnly[models.SyncEvent]
}

// New создаёт ресурсы поверх одного клиента. Пути совпадают с именами ресурсов.
func New(c Doer) *API {
	v := NewValidator()

	return &API{
		Organizations: NewResource[models.Organization, models.OrganizationInput](c, v, "organizations", "/organizations"),
		Stores:        NewResource[models.Store, models.StoreInput](c, v, "stores", "/stores"),
		Kiosks:        NewResource[models.Kiosk, models.KioskInput](c, v, "kiosks", "/kiosks"),
		Devices:       NewResource[models.Device, models.DeviceInput](c, v, "devices", "/devices"),
		Products:      NewResource[models.Product, models.ProductInput](c, v, "products", "/products"),
		Menus:         NewResource[models.Menu, models.MenuInput](c, v, "menus", "/menus"),
		Workflows:     NewResource[models.Workflow, models.WorkflowInput](c, v, "workflows", "/workflows"),
		Notifications: NewResource[models.Notification, models.NotificationInput](c, v, "notifications", "/notifications"),
		Orders:        &Orders{ReadOnly: NewReadOnly[models.Order](c, "orders", "/orders"), v: v},
		SyncEvents:    NewReadOnly[models.SyncEvent](c, "sync-events", "/sync-events"),
	}
}
