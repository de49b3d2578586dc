package notifier

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageTypeWizardUpdate - тип сообщения с новым состоянием мастера.
const MessageTypeWizardUpdate = "wizard_update"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
	outboxBuffer   = 256
)

// Notifier отправляет обновления подключенным клиентам сессии.
// Реализации не должны блокировать вызывающего.
type Notifier interface {
	SendToSession(sessionID, messageType string, payload interface{})
}

// NoopNotifier ничего не отправляет.
type NoopNotifier struct{}

func (NoopNotifier) SendToSession(string, string, interface{}) {}

// Message представляет сообщение для отправки через WebSocket.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`

	target string
}

// client представляет WebSocket-клиента одной сессии.
type client struct {
	id        uuid.UUID
	sessionID string
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
}

// Hub управляет WebSocket-соединениями, сгруппированными по сессиям.
type Hub struct {
	clients    map[uuid.UUID]*client
	register   chan *client
	unregister chan *client
	outbox     chan Message
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

var _ Notifier = (*Hub)(nil)

// NewHub создает новый Hub. allowedOrigins ограничивает Origin для апгрейда;
// запросы без Origin и с Origin того же хоста разрешены всегда.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[uuid.UUID]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		outbox:     make(chan Message, outboxBuffer),
		done:       make(chan struct{}),
		logger:     logger.Named("WebSocketHub"),
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Start запускает Hub в отдельной горутине.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run()
	}()
}

// Stop закрывает все соединения и останавливает Hub.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	h.wg.Wait()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.logger.Debug("Client connected", zap.String("clientID", c.id.String()), zap.String("sessionID", c.sessionID))

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				close(c.send)
				delete(h.clients, c.id)
				h.logger.Debug("Client disconnected", zap.String("clientID", c.id.String()), zap.String("sessionID", c.sessionID))
			}

		case msg := <-h.outbox:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("Failed to marshal websocket message", zap.Error(err), zap.String("type", msg.Type))
				continue
			}
			for id, c := range h.clients {
				if c.sessionID != msg.target {
					continue
				}
				select {
				case c.send <- data:
				default:
					// Медленный клиент: отключаем, страница получит состояние при переподключении
					close(c.send)
					delete(h.clients, id)
				}
			}
		}
	}
}

// SendToSession ставит сообщение в очередь для всех клиентов сессии. Не блокирует:
// при переполненной очереди сообщение отбрасывается.
func (h *Hub) SendToSession(sessionID, messageType string, payload interface{}) {
	msg := Message{Type: messageType, Payload: payload, target: sessionID}
	select {
	case <-h.done:
	case h.outbox <- msg:
	default:
		h.logger.Warn("Websocket outbox full, dropping message", zap.String("sessionID", sessionID), zap.String("type", messageType))
	}
}

// Serve обновляет соединение до WebSocket и привязывает его к сессии.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return err
	}

	c := &client{
		id:        uuid.New(),
		sessionID: sessionID,
		conn:      conn,
		hub:       h,
		send:      make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go c.readPump()
	go c.writePump()
	return nil
}

// readPump нужен только для обработки pong и закрытия; входящие сообщения игнорируются.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
