package devices

import (
	"context"
	"time"
)

// IncomingMessage is a received chat message handed up from a transport.
type IncomingMessage struct {
	FromNumber string
	SenderJid  string
	SenderName string
	Body       string
	Timestamp  time.Time
}

// EventSink receives transport callbacks. The registry implements it; a
// transport never touches the database or the event bus directly.
type EventSink interface {
	OnQR(deviceName, code string)
	OnAuthenticated(deviceName, jid, phoneNumber string)
	OnConnected(deviceName string)
	OnDisconnected(deviceName, reason string)
	OnAuthFailure(deviceName, reason string)
	OnReceipt(deviceName string, providerIDs []string, status string)
	OnIncoming(deviceName string, msg IncomingMessage)
}

// Transport is one device's connection to WhatsApp. Connect starts the
// session and returns; progress arrives through the EventSink.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	Logout(ctx context.Context) error
	SendText(ctx context.Context, toNumber, body string) (providerID string, err error)
	SendImage(ctx context.Context, toNumber, caption, path string) (providerID string, err error)
	CheckNumbers(ctx context.Context, numbers []string) (map[string]bool, error)
}

// TransportFactory builds a transport for a named device. jid is empty for
// a device that has never paired.
type TransportFactory func(deviceName, jid string, sink EventSink) (Transport, error)
