package devices

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"gorm.io/gorm"
)

// NewStore wraps the application's existing database connection so
// whatsmeow credential tables live next to the engine tables.
func NewStore(gdb *gorm.DB, dbType string) (*sqlstore.Container, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain underlying sql.DB")
	}

	driver := "postgres"
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(dbType)), "sqlite") {
		driver = "sqlite3"
		// sqlstore migrations need FK support, some sqlite builds default it off
		if _, err := sqlDB.ExecContext(context.Background(), "PRAGMA foreign_keys = ON;"); err != nil {
			zap.L().Warn("whatsmeow store: unable to enable sqlite foreign_keys pragma", zap.Error(err))
		}
	}

	container := sqlstore.NewWithDB(sqlDB, driver, nil)
	if err := container.Upgrade(context.Background()); err != nil {
		return nil, errors.Wrap(err, "sqlstore upgrade failed")
	}
	return container, nil
}

// NewWhatsmeowFactory returns a TransportFactory backed by the shared
// sqlstore container.
func NewWhatsmeowFactory(container *sqlstore.Container) TransportFactory {
	return func(deviceName, jid string, sink EventSink) (Transport, error) {
		return &waTransport{
			name:      deviceName,
			jid:       jid,
			container: container,
			sink:      sink,
		}, nil
	}
}

type waTransport struct {
	name      string
	jid       string
	container *sqlstore.Container
	sink      EventSink

	mu     sync.Mutex
	client *whatsmeow.Client
}

func (t *waTransport) device(ctx context.Context) (*store.Device, error) {
	if t.jid != "" {
		parsed, err := waTypes.ParseJID(t.jid)
		if err == nil {
			dev, err := t.container.GetDevice(ctx, parsed)
			if err == nil && dev != nil {
				return dev, nil
			}
			zap.L().Warn("whatsmeow: stored device lookup failed, pairing fresh",
				zap.String("device", t.name), zap.Error(err))
		}
	}
	return t.container.NewDevice(), nil
}

// Connect builds the client and starts the session. For an unpaired device
// the QR channel feeds pairing codes to the sink until success or timeout.
func (t *waTransport) Connect(ctx context.Context) error {
	dev, err := t.device(ctx)
	if err != nil {
		return err
	}

	cli := whatsmeow.NewClient(dev, nil)
	cli.AddEventHandler(t.handleEvent)

	t.mu.Lock()
	t.client = cli
	t.mu.Unlock()

	if cli.Store.ID == nil {
		qrChan, err := cli.GetQRChannel(ctx)
		if err != nil {
			return errors.Wrap(err, "qr channel")
		}
		go func() {
			for evt := range qrChan {
				switch evt.Event {
				case "code":
					t.sink.OnQR(t.name, evt.Code)
				case "success":
					// PairSuccess event carries the identity
				case "timeout":
					t.sink.OnAuthFailure(t.name, "pairing timed out")
				default:
					t.sink.OnAuthFailure(t.name, fmt.Sprintf("pairing failed: %s", evt.Event))
				}
			}
		}()
	}

	if err := cli.Connect(); err != nil {
		return errors.Wrap(err, "connect failed")
	}
	return nil
}

func (t *waTransport) getClient() *whatsmeow.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

func (t *waTransport) Disconnect() {
	if cli := t.getClient(); cli != nil {
		cli.Disconnect()
	}
}

func (t *waTransport) Logout(ctx context.Context) error {
	cli := t.getClient()
	if cli == nil {
		return nil
	}
	if err := cli.Logout(ctx); err != nil {
		// unlink anyway, the server may already have dropped the session
		zap.L().Warn("whatsmeow: logout returned error", zap.String("device", t.name), zap.Error(err))
		cli.Disconnect()
	}
	return nil
}

func (t *waTransport) SendText(ctx context.Context, toNumber, body string) (string, error) {
	cli := t.getClient()
	if cli == nil {
		return "", fmt.Errorf("client not connected")
	}
	jid := waTypes.NewJID(toNumber, waTypes.DefaultUserServer)
	resp, err := cli.SendMessage(ctx, jid, &waProto.Message{Conversation: proto.String(body)})
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

func (t *waTransport) SendImage(ctx context.Context, toNumber, caption, path string) (string, error) {
	cli := t.getClient()
	if cli == nil {
		return "", fmt.Errorf("client not connected")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read media file")
	}
	uploaded, err := cli.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return "", errors.Wrap(err, "media upload")
	}

	msg := &waProto.Message{
		ImageMessage: &waProto.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(http.DetectContentType(data)),
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
		},
	}

	jid := waTypes.NewJID(toNumber, waTypes.DefaultUserServer)
	resp, err := cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

func (t *waTransport) CheckNumbers(ctx context.Context, numbers []string) (map[string]bool, error) {
	cli := t.getClient()
	if cli == nil {
		return nil, fmt.Errorf("client not connected")
	}

	phones := make([]string, len(numbers))
	for i, n := range numbers {
		phones[i] = "+" + strings.TrimPrefix(n, "+")
	}
	resps, err := cli.IsOnWhatsApp(ctx, phones)
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(numbers))
	for i, resp := range resps {
		if i < len(numbers) {
			result[numbers[i]] = resp.IsIn
		}
	}
	return result, nil
}

func (t *waTransport) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.PairSuccess:
		t.jid = evt.ID.String()
		t.sink.OnAuthenticated(t.name, evt.ID.String(), evt.ID.User)

	case *events.Connected:
		// a freshly paired client reaches here without PairSuccess on resume
		if cli := t.getClient(); cli != nil && cli.Store.ID != nil && t.jid == "" {
			t.jid = cli.Store.ID.String()
			t.sink.OnAuthenticated(t.name, t.jid, cli.Store.ID.User)
		}
		t.sink.OnConnected(t.name)

	case *events.Disconnected:
		t.sink.OnDisconnected(t.name, "connection lost")

	case *events.StreamReplaced:
		t.sink.OnDisconnected(t.name, "stream replaced by another session")

	case *events.LoggedOut:
		t.sink.OnAuthFailure(t.name, fmt.Sprintf("logged out (%s)", evt.Reason.String()))

	case *events.Receipt:
		status := receiptStatus(evt.Type)
		if status == "" {
			return
		}
		ids := make([]string, len(evt.MessageIDs))
		for i, id := range evt.MessageIDs {
			ids[i] = string(id)
		}
		t.sink.OnReceipt(t.name, ids, status)

	case *events.Message:
		if evt.Info.IsFromMe || evt.Info.IsGroup {
			return
		}
		body := evt.Message.GetConversation()
		if body == "" {
			body = evt.Message.GetExtendedTextMessage().GetText()
		}
		if body == "" {
			return
		}
		t.sink.OnIncoming(t.name, IncomingMessage{
			FromNumber: evt.Info.Sender.User,
			SenderJid:  evt.Info.Sender.String(),
			SenderName: evt.Info.PushName,
			Body:       body,
			Timestamp:  evt.Info.Timestamp,
		})
	}
}

func receiptStatus(rt waTypes.ReceiptType) string {
	switch rt {
	case waTypes.ReceiptTypeDelivered:
		return "delivered"
	case waTypes.ReceiptTypeRead:
		return "read"
	case waTypes.ReceiptTypePlayed:
		return "played"
	default:
		return ""
	}
}
