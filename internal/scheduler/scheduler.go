// Package scheduler queues outbound batches and runs one dispatch loop per
// device, sending strictly in dispatch-time order.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bjo163/wablast/internal/devices"
	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/events"
	"github.com/bjo163/wablast/internal/tracker"
	"github.com/bjo163/wablast/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// resyncInterval bounds how long a loop sleeps before re-reading the queue
// even without a wake signal.
const resyncInterval = 5 * time.Second

// Connector is the slice of the device registry the scheduler needs.
type Connector interface {
	IsConnected(name string) bool
	Transport(name string) (devices.Transport, error)
}

// BatchJob is one pre-rendered outbound message.
type BatchJob struct {
	ToNumber      string
	RecipientName string
	Body          string
}

// BatchRequest schedules len(Jobs) messages on one device, spaced Interval
// apart starting at StartAt.
type BatchRequest struct {
	DeviceName   string
	Jobs         []BatchJob
	StartAt      time.Time
	Interval     time.Duration
	TemplateName string
	ImageID      string
	MediaPath    string
}

type Service struct {
	db    *gorm.DB
	reg   Connector
	track *tracker.Tracker
	bus   *events.Bus

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	loops map[string]*deviceLoop
}

func New(db *gorm.DB, reg Connector, track *tracker.Tracker, bus *events.Bus) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		db:     db,
		reg:    reg,
		track:  track,
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
		loops:  make(map[string]*deviceLoop),
	}
}

// Start resumes loops for devices that still have pending jobs and wires
// reconnect wakeups. Pending jobs survive restarts untouched.
func (s *Service) Start() {
	var names []string
	err := s.db.Model(&domain.WaMessage{}).
		Where("status = ?", domain.MsgPending).
		Distinct().Pluck("device_name", &names).Error
	if err != nil {
		zap.L().Warn("scheduler: pending device scan failed", zap.Error(err))
	}
	for _, name := range names {
		s.ensureLoop(name)
	}
	if len(names) > 0 {
		zap.L().Info("scheduler: resumed dispatch loops", zap.Int("count", len(names)))
	}

	_ = s.bus.SubscribeDeviceStatus(func(evt events.DeviceStatusEvent) {
		if evt.Status == domain.DeviceConnected {
			s.ensureLoop(evt.DeviceName)
			s.wake(evt.DeviceName)
		}
	})
}

func (s *Service) Stop() {
	s.cancel()
}

// RollForward moves a start time that already passed to the same
// wall-clock on the next day. Future times are returned unchanged.
func RollForward(now, start time.Time) time.Time {
	for !start.After(now) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}

// ScheduleBatch validates the device, persists the jobs and wakes the
// dispatch loop. A disconnected device rejects the whole batch with zero
// rows written.
func (s *Service) ScheduleBatch(ctx context.Context, req BatchRequest) ([]domain.WaMessage, error) {
	if len(req.Jobs) == 0 {
		return nil, domain.NewValidationError("contacts", "no valid contacts to schedule")
	}
	if !s.reg.IsConnected(req.DeviceName) {
		return nil, &domain.DeviceNotConnectedError{DeviceName: req.DeviceName}
	}

	interval := req.Interval
	if interval <= 0 {
		interval = time.Second
	}

	now := time.Now()
	start := req.StartAt
	if start.IsZero() {
		start = now
	} else if start.Before(now) {
		rolled := RollForward(now, start)
		zap.L().Info("scheduler: start time in the past, rolled forward",
			zap.String("device", req.DeviceName),
			zap.Time("requested", start),
			zap.Time("rolled", rolled))
		start = rolled
	}

	msgs := make([]domain.WaMessage, 0, len(req.Jobs))
	for i, job := range req.Jobs {
		msgs = append(msgs, domain.WaMessage{
			ID:            common.UUIDint64(),
			DeviceName:    req.DeviceName,
			ToNumber:      job.ToNumber,
			RecipientName: job.RecipientName,
			Body:          job.Body,
			TemplateName:  req.TemplateName,
			ImageID:       req.ImageID,
			MediaPath:     req.MediaPath,
			Status:        domain.MsgPending,
			DispatchAt:    start.Add(time.Duration(i) * interval),
		})
	}

	if err := s.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		return nil, err
	}

	zap.L().Info("scheduler: batch queued",
		zap.String("device", req.DeviceName),
		zap.Int("jobs", len(msgs)),
		zap.Time("start", start),
		zap.Duration("interval", interval))

	s.ensureLoop(req.DeviceName)
	s.wake(req.DeviceName)
	return msgs, nil
}

func (s *Service) ensureLoop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loops[name]; ok {
		return
	}
	l := &deviceLoop{
		name: name,
		svc:  s,
		wake: make(chan struct{}, 1),
	}
	s.loops[name] = l
	go l.run(s.ctx)
}

func (s *Service) wake(name string) {
	s.mu.Lock()
	l, ok := s.loops[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// deviceLoop drains one device's queue in dispatch-time order. It owns no
// job state beyond the row it is currently sending.
type deviceLoop struct {
	name string
	svc  *Service
	wake chan struct{}
}

func (l *deviceLoop) run(ctx context.Context) {
	zap.L().Debug("scheduler: dispatch loop started", zap.String("device", l.name))
	for {
		if ctx.Err() != nil {
			return
		}

		var job domain.WaMessage
		err := l.svc.db.Where("device_name = ? and status = ?", l.name, domain.MsgPending).
			Order("dispatch_at asc, id asc").
			First(&job).Error
		if err != nil {
			// queue empty, idle until new work arrives
			if !l.pause(ctx, resyncInterval) {
				return
			}
			continue
		}

		if delay := time.Until(job.DispatchAt); delay > 0 {
			if delay > resyncInterval {
				delay = resyncInterval
			}
			if !l.pause(ctx, delay) {
				return
			}
			continue
		}

		// a disconnected device keeps its queue intact and resumes in
		// order on reconnect
		transport, err := l.svc.reg.Transport(l.name)
		if err != nil {
			if !l.pause(ctx, resyncInterval) {
				return
			}
			continue
		}

		l.dispatch(ctx, transport, &job)
	}
}

// pause waits for a wake signal, the timeout or shutdown. Returns false on
// shutdown.
func (l *deviceLoop) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-l.wake:
		return true
	case <-timer.C:
		return true
	}
}

func (l *deviceLoop) dispatch(ctx context.Context, transport devices.Transport, job *domain.WaMessage) {
	var providerID string
	var err error
	if job.MediaPath != "" {
		providerID, err = transport.SendImage(ctx, job.ToNumber, job.Body, job.MediaPath)
	} else {
		providerID, err = transport.SendText(ctx, job.ToNumber, job.Body)
	}

	if err != nil {
		terr := &domain.TransportError{DeviceName: l.name, Err: err}
		zap.L().Warn("scheduler: send failed",
			zap.Int64("message_id", job.ID),
			zap.String("device", l.name),
			zap.String("to", job.ToNumber),
			zap.Error(err))
		if rerr := l.svc.track.Record(job.ID, domain.MsgFailed, terr.Error()); rerr != nil {
			zap.L().Warn("scheduler: mark failed error", zap.Int64("message_id", job.ID), zap.Error(rerr))
		}
		return
	}

	// store the provider id before flipping status so a fast receipt can
	// already resolve the job
	if providerID != "" {
		if uerr := l.svc.db.Model(&domain.WaMessage{}).Where("id = ?", job.ID).
			Update("provider_id", providerID).Error; uerr != nil {
			zap.L().Warn("scheduler: persist provider id failed", zap.Int64("message_id", job.ID), zap.Error(uerr))
		}
	}
	if rerr := l.svc.track.Record(job.ID, domain.MsgSent, ""); rerr != nil {
		zap.L().Warn("scheduler: mark sent error", zap.Int64("message_id", job.ID), zap.Error(rerr))
	}
}
