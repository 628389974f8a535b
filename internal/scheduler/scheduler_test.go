package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bjo163/wablast/internal/devices"
	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/events"
	"github.com/bjo163/wablast/internal/tracker"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeTransport struct {
	mu          sync.Mutex
	sent        []string
	onSend      func(toNumber string)
	failNumbers map[string]bool
}

func (f *fakeTransport) SendText(ctx context.Context, toNumber, body string) (string, error) {
	f.mu.Lock()
	if f.failNumbers[toNumber] {
		f.mu.Unlock()
		return "", errors.New("number not on whatsapp")
	}
	f.sent = append(f.sent, toNumber)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(toNumber)
	}
	return "PROV-" + toNumber, nil
}

func (f *fakeTransport) SendImage(ctx context.Context, toNumber, caption, path string) (string, error) {
	return f.SendText(ctx, toNumber, caption)
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) Disconnect()                       {}
func (f *fakeTransport) Logout(ctx context.Context) error  { return nil }
func (f *fakeTransport) CheckNumbers(ctx context.Context, numbers []string) (map[string]bool, error) {
	return nil, nil
}

func (f *fakeTransport) sentNumbers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeConn struct {
	mu        sync.Mutex
	connected map[string]bool
	tr        map[string]*fakeTransport
}

func newFakeConn() *fakeConn {
	return &fakeConn{connected: make(map[string]bool), tr: make(map[string]*fakeTransport)}
}

func (c *fakeConn) setConnected(name string, up bool) {
	c.mu.Lock()
	c.connected[name] = up
	if up && c.tr[name] == nil {
		c.tr[name] = &fakeTransport{}
	}
	c.mu.Unlock()
}

func (c *fakeConn) IsConnected(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected[name]
}

func (c *fakeConn) Transport(name string) (devices.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected[name] {
		return nil, &domain.DeviceNotConnectedError{DeviceName: name}
	}
	return c.tr[name], nil
}

func (c *fakeConn) transport(name string) *fakeTransport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr[name]
}

func newTestService(t *testing.T) (*Service, *fakeConn, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:scheduler_test?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&domain.WaMessage{}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.Exec("delete from wa_message")
	})

	bus := events.NewBus()
	conn := newFakeConn()
	svc := New(db, conn, tracker.New(db, bus), bus)
	t.Cleanup(svc.Stop)
	return svc, conn, db
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRollForward(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	past := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	rolled := RollForward(now, past)
	want := time.Date(2025, 6, 11, 9, 30, 0, 0, time.UTC)
	if !rolled.Equal(want) {
		t.Fatalf("rolled = %v, want %v", rolled, want)
	}

	old := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	rolled = RollForward(now, old)
	if !rolled.Equal(want) {
		t.Fatalf("multi-day roll = %v, want %v", rolled, want)
	}
	if h, m, _ := rolled.Clock(); h != 9 || m != 30 {
		t.Fatalf("wall clock changed: %v", rolled)
	}
}

func TestScheduleBatchDispatchOffsets(t *testing.T) {
	svc, conn, _ := newTestService(t)
	conn.setConnected("dev-a", true)

	start := time.Now().Add(time.Hour).Truncate(time.Second)
	msgs, err := svc.ScheduleBatch(context.Background(), BatchRequest{
		DeviceName: "dev-a",
		StartAt:    start,
		Interval:   10 * time.Second,
		Jobs: []BatchJob{
			{ToNumber: "62811", Body: "a"},
			{ToNumber: "62812", Body: "b"},
			{ToNumber: "62813", Body: "c"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(msgs))
	}
	for i, m := range msgs {
		want := start.Add(time.Duration(i) * 10 * time.Second)
		if !m.DispatchAt.Equal(want) {
			t.Fatalf("dispatch[%d] = %v, want %v", i, m.DispatchAt, want)
		}
		if m.Status != domain.MsgPending {
			t.Fatalf("status = %s, want pending", m.Status)
		}
	}
}

func TestScheduleBatchRejectsDisconnected(t *testing.T) {
	svc, _, db := newTestService(t)

	_, err := svc.ScheduleBatch(context.Background(), BatchRequest{
		DeviceName: "dev-off",
		Jobs:       []BatchJob{{ToNumber: "62811", Body: "x"}},
	})
	if _, ok := err.(*domain.DeviceNotConnectedError); !ok {
		t.Fatalf("err = %v, want DeviceNotConnectedError", err)
	}

	var count int64
	db.Model(&domain.WaMessage{}).Where("device_name = ?", "dev-off").Count(&count)
	if count != 0 {
		t.Fatalf("rows written for rejected batch: %d", count)
	}
}

func TestScheduleBatchEmpty(t *testing.T) {
	svc, conn, _ := newTestService(t)
	conn.setConnected("dev-a", true)

	_, err := svc.ScheduleBatch(context.Background(), BatchRequest{DeviceName: "dev-a"})
	if err == nil {
		t.Fatal("empty batch must be rejected")
	}
}

func TestDispatchSendsInOrder(t *testing.T) {
	svc, conn, db := newTestService(t)
	conn.setConnected("dev-b", true)

	_, err := svc.ScheduleBatch(context.Background(), BatchRequest{
		DeviceName: "dev-b",
		Interval:   time.Millisecond,
		Jobs: []BatchJob{
			{ToNumber: "62801", Body: "1"},
			{ToNumber: "62802", Body: "2"},
			{ToNumber: "62803", Body: "3"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return len(conn.transport("dev-b").sentNumbers()) == 3
	})

	got := conn.transport("dev-b").sentNumbers()
	want := []string{"62801", "62802", "62803"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("send order = %v, want %v", got, want)
		}
	}

	waitFor(t, func() bool {
		var count int64
		db.Model(&domain.WaMessage{}).
			Where("device_name = ? and status = ?", "dev-b", domain.MsgSent).Count(&count)
		return count == 3
	})

	var msgs []domain.WaMessage
	if err := db.Where("device_name = ?", "dev-b").Find(&msgs).Error; err != nil {
		t.Fatal(err)
	}
	for _, m := range msgs {
		if m.ProviderID == "" {
			t.Fatalf("provider id missing on %d", m.ID)
		}
		if m.SentAt == nil {
			t.Fatalf("sent_at missing on %d", m.ID)
		}
	}
}

func TestDisconnectedMidBatchResumesInOrder(t *testing.T) {
	svc, conn, db := newTestService(t)
	conn.setConnected("dev-c", true)

	// drop the connection right after the second send completes
	tr := &fakeTransport{}
	tr.onSend = func(toNumber string) {
		if toNumber == "62902" {
			conn.setConnected("dev-c", false)
		}
	}
	conn.mu.Lock()
	conn.tr["dev-c"] = tr
	conn.mu.Unlock()

	_, err := svc.ScheduleBatch(context.Background(), BatchRequest{
		DeviceName: "dev-c",
		Interval:   time.Millisecond,
		Jobs: []BatchJob{
			{ToNumber: "62901", Body: "1"},
			{ToNumber: "62902", Body: "2"},
			{ToNumber: "62903", Body: "3"},
			{ToNumber: "62904", Body: "4"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(tr.sentNumbers()) == 2 })

	// queue must hold position while offline
	time.Sleep(50 * time.Millisecond)
	var pending int64
	db.Model(&domain.WaMessage{}).
		Where("device_name = ? and status = ?", "dev-c", domain.MsgPending).Count(&pending)
	if pending != 2 {
		t.Fatalf("pending while offline = %d, want 2", pending)
	}

	tr.mu.Lock()
	tr.onSend = nil
	tr.mu.Unlock()
	conn.setConnected("dev-c", true)
	svc.wake("dev-c")

	waitFor(t, func() bool { return len(tr.sentNumbers()) == 4 })
	got := tr.sentNumbers()
	want := []string{"62901", "62902", "62903", "62904"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resume order = %v, want %v", got, want)
		}
	}
}

func TestFailedSendContinuesBatch(t *testing.T) {
	svc, conn, db := newTestService(t)
	conn.setConnected("dev-d", true)

	// transport that rejects one recipient
	tr := &fakeTransport{failNumbers: map[string]bool{"62992": true}}
	conn.mu.Lock()
	conn.tr["dev-d"] = tr
	conn.mu.Unlock()

	_, err := svc.ScheduleBatch(context.Background(), BatchRequest{
		DeviceName: "dev-d",
		Interval:   time.Millisecond,
		Jobs: []BatchJob{
			{ToNumber: "62991", Body: "1"},
			{ToNumber: "62992", Body: "2"},
			{ToNumber: "62993", Body: "3"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		var done int64
		db.Model(&domain.WaMessage{}).
			Where("device_name = ? and status in ?", "dev-d", []string{domain.MsgSent, domain.MsgFailed}).
			Count(&done)
		return done == 3
	})

	var failed domain.WaMessage
	if err := db.Where("device_name = ? and status = ?", "dev-d", domain.MsgFailed).First(&failed).Error; err != nil {
		t.Fatal(err)
	}
	if failed.ToNumber != "62992" || failed.Error == "" {
		t.Fatalf("failed row = %+v", failed)
	}

	var sent int64
	db.Model(&domain.WaMessage{}).
		Where("device_name = ? and status = ?", "dev-d", domain.MsgSent).Count(&sent)
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ct      domain.Contact
		want    string
	}{
		{
			"both casings",
			"Halo {Nama}, salam {nama}!",
			domain.Contact{RecipientName: "Budi"},
			"Halo Budi, salam Budi!",
		},
		{
			"additional message placeholder",
			"Promo: {pesan_tambahan}",
			domain.Contact{AdditionalMessage: "diskon 50%"},
			"Promo: diskon 50%",
		},
		{
			"extra message appended",
			"Halo {nama}",
			domain.Contact{RecipientName: "Sari", ExtraMessage: "Sampai jumpa"},
			"Halo Sari\n\nSampai jumpa",
		},
		{
			"extra message as whole body",
			"",
			domain.Contact{ExtraMessage: "Pesan utama"},
			"Pesan utama",
		},
		{
			"missing name keeps placeholder",
			"Halo {nama}",
			domain.Contact{},
			"Halo {nama}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.content, tt.ct); got != tt.want {
				t.Fatalf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}
