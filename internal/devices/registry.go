// Package devices owns the lifecycle of named WhatsApp sessions: pairing,
// resume, logout and the live status the rest of the engine keys off.
package devices

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/events"
	"github.com/bjo163/wablast/internal/tracker"
	"github.com/bjo163/wablast/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type session struct {
	name      string
	status    string
	phone     string
	jid       string
	qr        string
	transport Transport
	cancel    context.CancelFunc
}

// active reports whether the session is somewhere between Start and a
// terminal failure; Start is a no-op for active sessions.
func (s *session) active() bool {
	switch s.status {
	case domain.DeviceInitializing, domain.DeviceQrPending, domain.DeviceAuthed, domain.DeviceConnected:
		return true
	}
	return false
}

type Registry struct {
	db      *gorm.DB
	bus     *events.Bus
	track   *tracker.Tracker
	factory TransportFactory

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewRegistry(db *gorm.DB, bus *events.Bus, track *tracker.Tracker, factory TransportFactory) *Registry {
	return &Registry{
		db:       db,
		bus:      bus,
		track:    track,
		factory:  factory,
		sessions: make(map[string]*session),
	}
}

// Start begins or resumes the session for the named device. Starting an
// already active session is a no-op so repeated dashboard clicks and
// resume-after-restart behave identically.
func (r *Registry) Start(ctx context.Context, name string) error {
	if name == "" {
		return domain.NewValidationError("deviceName", "device name is required")
	}

	r.mu.Lock()
	if s, ok := r.sessions[name]; ok && s.active() {
		r.mu.Unlock()
		zap.L().Debug("registry: start ignored, session active",
			zap.String("device", name), zap.String("status", s.status))
		return nil
	}

	var rec domain.WaDevice
	err := r.db.Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = domain.WaDevice{
			ID:     common.UUIDint64(),
			Name:   name,
			Status: domain.DeviceInitializing,
		}
		if err := r.db.Create(&rec).Error; err != nil {
			r.mu.Unlock()
			return err
		}
	} else if err != nil {
		r.mu.Unlock()
		return err
	}

	transport, err := r.factory(name, rec.Jid, r)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		name:      name,
		status:    domain.DeviceInitializing,
		phone:     rec.PhoneNumber,
		jid:       rec.Jid,
		transport: transport,
		cancel:    cancel,
	}
	r.sessions[name] = s
	r.mu.Unlock()

	r.setStatus(name, domain.DeviceInitializing, "", "")

	go func() {
		if err := transport.Connect(sctx); err != nil {
			zap.L().Error("registry: connect failed", zap.String("device", name), zap.Error(err))
			r.setStatus(name, domain.DeviceError, "", err.Error())
		}
	}()

	return nil
}

// Logout unlinks the device and destroys the session. Unknown devices fail
// fast instead of creating anything.
func (r *Registry) Logout(ctx context.Context, name string) error {
	r.mu.Lock()
	s, ok := r.sessions[name]
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()

	if !ok {
		var count int64
		r.db.Model(&domain.WaDevice{}).Where("name = ?", name).Count(&count)
		if count == 0 {
			return domain.NewValidationError("deviceName", "device not found")
		}
	}

	if s != nil {
		s.cancel()
		if err := s.transport.Logout(ctx); err != nil {
			zap.L().Warn("registry: transport logout failed", zap.String("device", name), zap.Error(err))
		}
	}

	if err := r.db.Where("name = ?", name).Delete(&domain.WaDevice{}).Error; err != nil {
		zap.L().Warn("registry: delete device row failed", zap.String("device", name), zap.Error(err))
	}

	r.bus.PublishDeviceStatus(events.DeviceStatusEvent{
		DeviceName: name,
		Status:     domain.DeviceDisconnected,
		Reason:     "logged out",
	})
	zap.L().Info("registry: device logged out", zap.String("device", name))
	return nil
}

// Status returns the live session status without blocking on any network
// operation.
func (r *Registry) Status(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[name]
	if !ok {
		return domain.DeviceDisconnected, false
	}
	return s.status, true
}

// IsConnected reports whether the device can send right now.
func (r *Registry) IsConnected(name string) bool {
	st, ok := r.Status(name)
	return ok && st == domain.DeviceConnected
}

// FirstConnected returns the name of any currently connected device.
// Callers that predate named devices use it to pick a sender.
func (r *Registry) FirstConnected() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, s := range r.sessions {
		if s.status == domain.DeviceConnected {
			return name, true
		}
	}
	return "", false
}

// Transport hands out the live transport for dispatch and validation.
func (r *Registry) Transport(name string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[name]
	if !ok || s.status != domain.DeviceConnected {
		st := domain.DeviceDisconnected
		if ok {
			st = s.status
		}
		return nil, &domain.DeviceNotConnectedError{DeviceName: name, Status: st}
	}
	return s.transport, nil
}

// List returns every known device with its live status merged in.
func (r *Registry) List() ([]domain.WaDevice, error) {
	var recs []domain.WaDevice
	if err := r.db.Order("name asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	r.mu.RLock()
	for i := range recs {
		if s, ok := r.sessions[recs[i].Name]; ok {
			recs[i].Status = s.status
			if s.phone != "" {
				recs[i].PhoneNumber = s.phone
			}
		} else {
			recs[i].Status = domain.DeviceDisconnected
		}
	}
	r.mu.RUnlock()
	return recs, nil
}

// Resume restarts sessions that still hold stored credentials. Called once
// at boot so paired devices come back without a new QR scan.
func (r *Registry) Resume(ctx context.Context) {
	var recs []domain.WaDevice
	if err := r.db.Where("jid <> ''").Find(&recs).Error; err != nil {
		zap.L().Warn("registry: resume query failed", zap.Error(err))
		return
	}
	for _, rec := range recs {
		if err := r.Start(ctx, rec.Name); err != nil {
			zap.L().Warn("registry: resume failed", zap.String("device", rec.Name), zap.Error(err))
		}
	}
	if len(recs) > 0 {
		zap.L().Info("registry: resumed stored sessions", zap.Int("count", len(recs)))
	}
}

// Shutdown disconnects every session without unlinking credentials.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.sessions {
		s.cancel()
		s.transport.Disconnect()
		delete(r.sessions, name)
	}
}

func (r *Registry) setStatus(name, status, qr, reason string) {
	r.mu.Lock()
	s, ok := r.sessions[name]
	if !ok {
		// events that race a logout are dropped
		r.mu.Unlock()
		return
	}
	s.status = status
	s.qr = qr
	r.mu.Unlock()

	updates := map[string]interface{}{
		"status":     status,
		"last_error": reason,
		"updated_at": time.Now(),
	}
	if err := r.db.Model(&domain.WaDevice{}).Where("name = ?", name).Updates(updates).Error; err != nil {
		zap.L().Warn("registry: persist status failed", zap.String("device", name), zap.Error(err))
	}

	r.bus.PublishDeviceStatus(events.DeviceStatusEvent{
		DeviceName: name,
		Status:     status,
		QrCode:     qr,
		Reason:     reason,
	})
}

// EventSink implementation

func (r *Registry) OnQR(name, code string) {
	zap.L().Info("registry: qr issued", zap.String("device", name))
	r.setStatus(name, domain.DeviceQrPending, code, "")
}

func (r *Registry) OnAuthenticated(name, jid, phone string) {
	r.mu.Lock()
	if s, ok := r.sessions[name]; ok {
		s.jid = jid
		s.phone = phone
	}
	r.mu.Unlock()

	err := r.db.Model(&domain.WaDevice{}).Where("name = ?", name).Updates(map[string]interface{}{
		"jid":          jid,
		"phone_number": phone,
		"updated_at":   time.Now(),
	}).Error
	if err != nil {
		zap.L().Warn("registry: persist identity failed", zap.String("device", name), zap.Error(err))
	}

	zap.L().Info("registry: device authenticated",
		zap.String("device", name), zap.String("phone", phone))
	r.setStatus(name, domain.DeviceAuthed, "", "")
}

func (r *Registry) OnConnected(name string) {
	zap.L().Info("registry: device connected", zap.String("device", name))
	r.setStatus(name, domain.DeviceConnected, "", "")
}

func (r *Registry) OnDisconnected(name, reason string) {
	zap.L().Warn("registry: device disconnected",
		zap.String("device", name), zap.String("reason", reason))
	r.setStatus(name, domain.DeviceDisconnected, "", reason)
}

func (r *Registry) OnAuthFailure(name, reason string) {
	zap.L().Warn("registry: device auth failure",
		zap.String("device", name), zap.String("reason", reason))
	r.setStatus(name, domain.DeviceAuthFailure, "", reason)
}

func (r *Registry) OnReceipt(name string, providerIDs []string, status string) {
	for _, id := range providerIDs {
		r.track.RecordByProviderID(name, id, status)
	}
}

func (r *Registry) OnIncoming(name string, msg IncomingMessage) {
	row := domain.WaInboxMessage{
		ID:         common.UUIDint64(),
		DeviceName: name,
		FromNumber: msg.FromNumber,
		SenderJid:  msg.SenderJid,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		Status:     domain.InboxUnread,
		Timestamp:  msg.Timestamp,
	}
	if err := r.db.Create(&row).Error; err != nil {
		zap.L().Warn("registry: store inbox message failed",
			zap.String("device", name), zap.Error(err))
	}
}
