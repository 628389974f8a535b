package devices

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/events"
	"github.com/bjo163/wablast/internal/tracker"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeTransport struct {
	name string
	sink EventSink

	mu          sync.Mutex
	connects    int32
	logouts     int32
	sent        []string
	failNumbers map[string]bool
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	atomic.AddInt32(&f.connects, 1)
	return nil
}

func (f *fakeTransport) Disconnect() {}

func (f *fakeTransport) Logout(ctx context.Context) error {
	atomic.AddInt32(&f.logouts, 1)
	return nil
}

func (f *fakeTransport) SendText(ctx context.Context, toNumber, body string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, toNumber)
	f.mu.Unlock()
	return "FAKE-" + toNumber, nil
}

func (f *fakeTransport) SendImage(ctx context.Context, toNumber, caption, path string) (string, error) {
	return f.SendText(ctx, toNumber, caption)
}

func (f *fakeTransport) CheckNumbers(ctx context.Context, numbers []string) (map[string]bool, error) {
	out := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		out[n] = !f.failNumbers[n]
	}
	return out, nil
}

func newTestRegistry(t *testing.T) (*Registry, *gorm.DB, map[string]*fakeTransport) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:devices_test?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&domain.WaDevice{}, &domain.WaMessage{}, &domain.WaInboxMessage{}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.Exec("delete from wa_device")
		db.Exec("delete from wa_message")
		db.Exec("delete from wa_inbox_message")
	})

	bus := events.NewBus()
	track := tracker.New(db, bus)
	transports := make(map[string]*fakeTransport)
	var mu sync.Mutex
	factory := func(name, jid string, sink EventSink) (Transport, error) {
		f := &fakeTransport{name: name, sink: sink}
		mu.Lock()
		transports[name] = f
		mu.Unlock()
		return f, nil
	}
	return NewRegistry(db, bus, track, factory), db, transports
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartIsIdempotentWhileActive(t *testing.T) {
	r, _, transports := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Start(ctx, "dev-a"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&transports["dev-a"].connects) == 1 })

	// second start while initializing must not spawn another transport
	if err := r.Start(ctx, "dev-a"); err != nil {
		t.Fatal(err)
	}
	transports["dev-a"].sink.OnConnected("dev-a")
	if err := r.Start(ctx, "dev-a"); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&transports["dev-a"].connects); got != 1 {
		t.Fatalf("connects = %d, want 1", got)
	}
	if !r.IsConnected("dev-a") {
		t.Fatal("device should be connected")
	}
}

func TestStartRequiresName(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	err := r.Start(context.Background(), "")
	var verr *domain.ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("Start(\"\") = %v, want ValidationError", err)
	}
}

func asValidation(err error, target **domain.ValidationError) bool {
	v, ok := err.(*domain.ValidationError)
	if ok {
		*target = v
	}
	return ok
}

func TestSessionLifecycleEvents(t *testing.T) {
	r, db, transports := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Start(ctx, "dev-b"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := r.Status("dev-b"); return ok })
	sink := transports["dev-b"].sink

	sink.OnQR("dev-b", "QR-PAYLOAD-1")
	st, _ := r.Status("dev-b")
	if st != domain.DeviceQrPending {
		t.Fatalf("status = %s, want qr_pending", st)
	}

	sink.OnAuthenticated("dev-b", "628111@s.whatsapp.net", "628111")
	sink.OnConnected("dev-b")

	if !r.IsConnected("dev-b") {
		t.Fatal("not connected after OnConnected")
	}

	var rec domain.WaDevice
	if err := db.Where("name = ?", "dev-b").First(&rec).Error; err != nil {
		t.Fatal(err)
	}
	if rec.Jid != "628111@s.whatsapp.net" || rec.PhoneNumber != "628111" {
		t.Fatalf("identity not persisted: %+v", rec)
	}

	sink.OnDisconnected("dev-b", "connection lost")
	st, _ = r.Status("dev-b")
	if st != domain.DeviceDisconnected {
		t.Fatalf("status = %s, want disconnected", st)
	}

	if _, err := r.Transport("dev-b"); err == nil {
		t.Fatal("Transport must refuse a disconnected device")
	}
}

func TestLogoutUnknownDeviceFailsFast(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if err := r.Logout(context.Background(), "ghost"); err == nil {
		t.Fatal("logout of unknown device must fail")
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	r, db, transports := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Start(ctx, "dev-c"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := r.Status("dev-c"); return ok })
	transports["dev-c"].sink.OnConnected("dev-c")

	if err := r.Logout(ctx, "dev-c"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&transports["dev-c"].logouts); got != 1 {
		t.Fatalf("transport logouts = %d, want 1", got)
	}
	if _, ok := r.Status("dev-c"); ok {
		t.Fatal("session still present after logout")
	}
	var count int64
	db.Model(&domain.WaDevice{}).Where("name = ?", "dev-c").Count(&count)
	if count != 0 {
		t.Fatal("device row survived logout")
	}
}

func TestQrEventCarriesCode(t *testing.T) {
	r, _, transports := newTestRegistry(t)
	bus := r.bus

	got := make(chan events.DeviceStatusEvent, 8)
	if err := bus.SubscribeDeviceStatus(func(evt events.DeviceStatusEvent) {
		got <- evt
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Start(context.Background(), "dev-d"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := r.Status("dev-d"); return ok })
	transports["dev-d"].sink.OnQR("dev-d", "QR-XYZ")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-got:
			if evt.Status == domain.DeviceQrPending {
				if evt.QrCode != "QR-XYZ" || evt.DeviceName != "dev-d" {
					t.Fatalf("qr event = %+v", evt)
				}
				return
			}
		case <-deadline:
			t.Fatal("no qr_pending event")
		}
	}
}

func TestIncomingMessageStored(t *testing.T) {
	r, db, transports := newTestRegistry(t)

	if err := r.Start(context.Background(), "dev-e"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := r.Status("dev-e"); return ok })

	transports["dev-e"].sink.OnIncoming("dev-e", IncomingMessage{
		FromNumber: "628222",
		SenderJid:  "628222@s.whatsapp.net",
		SenderName: "Rina",
		Body:       "halo kak",
		Timestamp:  time.Now(),
	})

	var row domain.WaInboxMessage
	if err := db.Where("device_name = ?", "dev-e").First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if row.Status != domain.InboxUnread || row.Body != "halo kak" {
		t.Fatalf("inbox row = %+v", row)
	}
}
