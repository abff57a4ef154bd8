package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"riderBack/internal/shipment/geo"
)

const (
	writeWait  = 20 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Logger defines minimal logging interface required by the hub.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// TokenVerifier resolves a bearer token to a rider id.
type TokenVerifier func(token string) (string, error)

// LocationSink stores live rider positions.
type LocationSink interface {
	Update(ctx context.Context, riderID string, lon, lat float64, city string) error
	GoOffline(ctx context.Context, riderID string) error
}

// Event is the envelope of every server push.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// OfferPayload is pushed when a shipment is offered to the rider.
type OfferPayload struct {
	OfferID      string    `json:"offerId"`
	ShipmentID   string    `json:"shipmentId"`
	OrderNo      string    `json:"orderNo"`
	VendorName   string    `json:"vendorName"`
	EtaSeconds   int       `json:"offerEtaSeconds"`
	DistanceM    int       `json:"offerDistanceM"`
	ExpiresAt    time.Time `json:"offerExpiresAt"`
	ExpiresInSec int       `json:"expiresInSec"`
}

// StatusPayload is pushed after a shipment status change.
type StatusPayload struct {
	ShipmentID string `json:"shipmentId"`
	Status     string `json:"status"`
	Label      string `json:"label"`
	Final      bool   `json:"final"`
}

type locationMessage struct {
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
	City      string  `json:"city"`
}

// RiderHub manages websocket connections for riders. A connected rider streams its
// location in and receives offer and status pushes out.
type RiderHub struct {
	logger      Logger
	verify      TokenVerifier
	sink        LocationSink
	throttle    *geo.Throttle
	defaultCity string

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	locks map[string]*sync.Mutex
}

// NewRiderHub constructs the hub. sink may be nil to disable location tracking.
func NewRiderHub(logger Logger, verify TokenVerifier, sink LocationSink, throttle *geo.Throttle, defaultCity string) *RiderHub {
	if throttle == nil {
		throttle = geo.NewThrottle(0, 0)
	}
	return &RiderHub{
		logger:      logger,
		verify:      verify,
		sink:        sink,
		throttle:    throttle,
		defaultCity: defaultCity,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
		locks: make(map[string]*sync.Mutex),
	}
}

// ServeWS authenticates the rider from ?token= or the Authorization header and upgrades.
func (h *RiderHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	riderID, err := h.verify(token)
	if err != nil || riderID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("rider ws upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[riderID]; ok {
		_ = old.Close()
	}
	h.conns[riderID] = conn
	if _, ok := h.locks[riderID]; !ok {
		h.locks[riderID] = &sync.Mutex{}
	}
	h.mu.Unlock()

	h.logger.Infof("rider %s connected", riderID)

	go h.pingLoop(riderID, conn)
	go h.readLoop(riderID, conn)
}

// Connected reports whether the rider has an open connection.
func (h *RiderHub) Connected(riderID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[riderID]
	return ok
}

// SendOffer pushes an offer_created event.
func (h *RiderHub) SendOffer(riderID string, payload OfferPayload) {
	h.push(riderID, Event{Type: "offer_created", Data: payload})
}

// PushStatus pushes a shipment_status event.
func (h *RiderHub) PushStatus(riderID string, payload StatusPayload) {
	h.push(riderID, Event{Type: "shipment_status", Data: payload})
}

func (h *RiderHub) pingLoop(id string, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if !h.isCurrent(id, conn) {
			return
		}
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *RiderHub) readLoop(id string, conn *websocket.Conn) {
	defer h.closeConn(id, conn)

	conn.SetReadLimit(16 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			continue
		}
		trimmed := strings.TrimSpace(string(message))
		if strings.EqualFold(trimmed, "ping") {
			h.safeWrite(id, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
			continue
		}
		h.handleMessage(id, []byte(trimmed))
	}
}

func (h *RiderHub) handleMessage(id string, raw []byte) {
	var msg locationMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Errorf("rider %s sent malformed message: %v", id, err)
		return
	}
	if msg.Type != "" && msg.Type != "location" {
		return
	}
	if h.sink == nil || !geo.ValidCoords(msg.Longitude, msg.Latitude) {
		return
	}
	at := time.Now()
	if msg.Timestamp > 0 {
		at = time.UnixMilli(msg.Timestamp)
	}
	if !h.throttle.Allow(id, msg.Latitude, msg.Longitude, at) {
		return
	}
	city := msg.City
	if strings.TrimSpace(city) == "" {
		city = h.defaultCity
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.sink.Update(ctx, id, msg.Longitude, msg.Latitude, city); err != nil {
		h.logger.Errorf("rider %s location update failed: %v", id, err)
	}
}

func (h *RiderHub) isCurrent(id string, conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[id] == conn
}

func (h *RiderHub) closeConn(id string, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	current, ok := h.conns[id]
	removed := ok && current == conn
	if removed {
		delete(h.conns, id)
		delete(h.locks, id)
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	h.throttle.Forget(id)
	h.logger.Infof("rider %s disconnected", id)
	if h.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.sink.GoOffline(ctx, id); err != nil {
			h.logger.Errorf("rider %s go offline failed: %v", id, err)
		}
	}
}

func (h *RiderHub) safeWrite(id string, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[id]
	mu := h.locks[id]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := fn(conn)
	mu.Unlock()
	if err != nil {
		h.logger.Errorf("rider %s write failed: %v", id, err)
		h.closeConn(id, conn)
	}
}

func (h *RiderHub) push(id string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Errorf("rider ws marshal failed: %v", err)
		return
	}
	h.safeWrite(id, func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
}
