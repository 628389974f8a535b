// Package events carries engine notifications from the registry and the
// tracker to realtime subscribers. Delivery is best effort; clients
// reconcile through the polling endpoints.
package events

import (
	evbus "github.com/asaskevich/EventBus"
)

const (
	TopicDeviceStatus  = "device_status_update"
	TopicMessageStatus = "outgoing_message_status_update"
)

// DeviceStatusEvent mirrors the device_status_update frame.
type DeviceStatusEvent struct {
	DeviceName string `json:"deviceName"`
	Status     string `json:"status"`
	QrCode     string `json:"qrCode,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MessageStatusEvent mirrors the outgoing_message_status_update frame.
// MessageID is the string form of the job id.
type MessageStatusEvent struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// Bus is the in-process publish side.
type Bus struct {
	bus evbus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) PublishDeviceStatus(evt DeviceStatusEvent) {
	b.bus.Publish(TopicDeviceStatus, evt)
}

func (b *Bus) PublishMessageStatus(evt MessageStatusEvent) {
	b.bus.Publish(TopicMessageStatus, evt)
}

// SubscribeDeviceStatus registers fn for device transitions. Handlers run
// async so a slow subscriber never blocks a publisher.
func (b *Bus) SubscribeDeviceStatus(fn func(evt DeviceStatusEvent)) error {
	return b.bus.SubscribeAsync(TopicDeviceStatus, fn, false)
}

func (b *Bus) SubscribeMessageStatus(fn func(evt MessageStatusEvent)) error {
	return b.bus.SubscribeAsync(TopicMessageStatus, fn, false)
}
