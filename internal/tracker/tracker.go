// Package tracker is the single writer of outbound message status. Every
// status change in the engine funnels through here so ordering per job is
// guaranteed and realtime updates fire exactly when a row changes.
package tracker

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/events"
	"github.com/bjo163/wablast/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// allowed holds the outbound status machine. Anything missing here is an
// invalid transition and gets dropped.
var allowed = map[string]map[string]bool{
	domain.MsgPending: {
		domain.MsgSent:   true,
		domain.MsgFailed: true,
	},
	domain.MsgSent: {
		domain.MsgDelivered: true,
		domain.MsgFailed:    true,
		domain.MsgRevoked:   true,
	},
	domain.MsgDelivered: {
		domain.MsgPlayed:  true,
		domain.MsgRead:    true,
		domain.MsgRevoked: true,
	},
}

var statusMetric = map[string]string{
	domain.MsgSent:      metrics.MessageSent,
	domain.MsgFailed:    metrics.MessageFailed,
	domain.MsgDelivered: metrics.MessageDelivered,
	domain.MsgRead:      metrics.MessageRead,
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type Tracker struct {
	db  *gorm.DB
	bus *events.Bus

	mu    sync.Mutex
	locks map[int64]*lockEntry
}

func New(db *gorm.DB, bus *events.Bus) *Tracker {
	return &Tracker{
		db:    db,
		bus:   bus,
		locks: make(map[int64]*lockEntry),
	}
}

func (t *Tracker) lock(id int64) func() {
	t.mu.Lock()
	e, ok := t.locks[id]
	if !ok {
		e = &lockEntry{}
		t.locks[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

// Record applies one status transition to the job. Accepted transitions
// persist, publish a realtime update and bump metrics; invalid ones are
// logged and dropped without touching the row.
func (t *Tracker) Record(id int64, status string, errMsg string) error {
	unlock := t.lock(id)
	defer unlock()

	var msg domain.WaMessage
	if err := t.db.First(&msg, id).Error; err != nil {
		return err
	}

	if !allowed[msg.Status][status] {
		ierr := &domain.InvalidTransitionError{MessageID: id, From: msg.Status, To: status}
		zap.L().Warn("tracker: dropped status update",
			zap.Int64("message_id", id),
			zap.String("from", msg.Status),
			zap.String("to", status))
		return ierr
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"status_at":  now,
		"updated_at": now,
	}
	if status == domain.MsgSent {
		updates["sent_at"] = now
	}
	if status == domain.MsgFailed && errMsg != "" {
		updates["error"] = errMsg
	}

	if err := t.db.Model(&domain.WaMessage{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}

	t.bus.PublishMessageStatus(events.MessageStatusEvent{
		MessageID: strconv.FormatInt(msg.ID, 10),
		Status:    status,
	})
	if name, ok := statusMetric[status]; ok {
		metrics.CounterIncr(name)
	}
	return nil
}

// RecordByProviderID resolves the provider message id delivered in a
// receipt back to a job and applies the transition. Unknown ids are
// receipts for messages sent outside the engine and are ignored.
func (t *Tracker) RecordByProviderID(deviceName, providerID, status string) {
	var msg domain.WaMessage
	err := t.db.Where("device_name = ? and provider_id = ?", deviceName, providerID).First(&msg).Error
	if err != nil {
		return
	}
	if err := t.Record(msg.ID, status, ""); err != nil {
		var ierr *domain.InvalidTransitionError
		if !errors.As(err, &ierr) {
			zap.L().Warn("tracker: receipt update failed",
				zap.String("device", deviceName),
				zap.String("provider_id", providerID),
				zap.Error(err))
		}
	}
}
