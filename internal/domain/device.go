package domain

import "time"

// Device session statuses. A session walks initializing -> qr_pending ->
// authenticated -> connected; auth_failure, disconnected and error are
// terminal until the next Start.
const (
	DeviceInitializing = "initializing"
	DeviceQrPending    = "qr_pending"
	DeviceAuthed       = "authenticated"
	DeviceConnected    = "connected"
	DeviceAuthFailure  = "auth_failure"
	DeviceDisconnected = "disconnected"
	DeviceError        = "error"
)

// WaDevice is the persisted session record for one named WhatsApp device.
// The whatsmeow credential store keys off Jid; this row keys off the
// user-facing device name.
type WaDevice struct {
	ID          int64     `json:"id,string" gorm:"primaryKey"`
	Name        string    `json:"deviceName" gorm:"uniqueIndex"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Jid         string    `json:"-"`
	Status      string    `json:"status" gorm:"index"`
	LastError   string    `json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (WaDevice) TableName() string {
	return "wa_device"
}
