package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// dashboard may be served from another origin
		return true
	},
}

type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine events out to every websocket connection. A client whose
// send buffer is full gets dropped; at-most-once delivery is the contract.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewHub(bus *Bus) *Hub {
	h := &Hub{clients: make(map[*wsClient]struct{})}
	_ = bus.SubscribeDeviceStatus(func(evt DeviceStatusEvent) {
		h.broadcast(TopicDeviceStatus, evt)
	})
	_ = bus.SubscribeMessageStatus(func(evt MessageStatusEvent) {
		h.broadcast(TopicMessageStatus, evt)
	})
	return h
}

func (h *Hub) broadcast(event string, data interface{}) {
	payload, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		zap.L().Warn("hub: marshal event failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			// slow consumer, close and forget
			go h.drop(cl)
		}
	}
}

func (h *Hub) drop(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleStream upgrades an HTTP request and serves the event stream until
// the peer goes away.
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("hub: websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	zap.L().Debug("hub: client connected", zap.String("remote", conn.RemoteAddr().String()))

	// reader only detects disconnects, inbound frames are ignored
	go func() {
		defer h.drop(cl)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for payload := range cl.send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(cl)
			break
		}
	}
	_ = conn.Close()
}
