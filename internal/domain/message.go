package domain

import "time"

// Outbound job statuses.
const (
	MsgPending   = "pending"
	MsgSent      = "sent"
	MsgDelivered = "delivered"
	MsgPlayed    = "played"
	MsgRead      = "read"
	MsgFailed    = "failed"
	MsgRevoked   = "revoked"
)

// Inbox statuses.
const (
	InboxUnread = "unread"
	InboxRead   = "read"
)

// WaMessage is one scheduled outbound job. Body is fully rendered at
// schedule time; later template edits never touch queued rows.
type WaMessage struct {
	ID            int64      `json:"id,string" gorm:"primaryKey"`
	DeviceName    string     `json:"deviceName" gorm:"index"`
	ToNumber      string     `json:"toNumber" gorm:"index"`
	RecipientName string     `json:"recipientName,omitempty"`
	Body          string     `json:"message"`
	TemplateName  string     `json:"templateName,omitempty"`
	ImageID       string     `json:"imageId,omitempty"`
	MediaPath     string     `json:"mediaPath,omitempty"`
	Status        string     `json:"status" gorm:"index"`
	Error         string     `json:"error,omitempty"`
	ProviderID    string     `json:"-" gorm:"index"`
	DispatchAt    time.Time  `json:"scheduledTime" gorm:"index"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	StatusAt      *time.Time `json:"timestamp,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"-"`
}

func (WaMessage) TableName() string {
	return "wa_message"
}

// WaInboxMessage is one received message captured from a connected device.
type WaInboxMessage struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	DeviceName string    `json:"deviceName" gorm:"index"`
	FromNumber string    `json:"fromNumber" gorm:"index"`
	SenderJid  string    `json:"-" gorm:"index"`
	SenderName string    `json:"senderName,omitempty"`
	Body       string    `json:"body"`
	Status     string    `json:"status" gorm:"index"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

func (WaInboxMessage) TableName() string {
	return "wa_inbox_message"
}
