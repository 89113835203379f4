// WebSocket feed for real-time block and template notifications.
package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bil-network/bil-node/internal/ledger"
	"github.com/bil-network/bil-node/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Read-only feed, any origin may subscribe
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// Hub fans ledger events out to connected subscribers
type Hub struct {
	clients   sync.Map // clientID -> *wsClient
	clientSeq uint64

	events chan ledger.Event
	quit   chan struct{}
	wg     sync.WaitGroup
}

type wsClient struct {
	id   uint64
	conn *websocket.Conn

	writeMu sync.Mutex
	quit    chan struct{}
}

// NewHub creates an event hub
func NewHub() *Hub {
	return &Hub{
		events: make(chan ledger.Event, 64),
		quit:   make(chan struct{}),
	}
}

// Start begins the broadcast loop
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop disconnects all subscribers and stops the loop
func (h *Hub) Stop() {
	close(h.quit)
	h.wg.Wait()

	h.clients.Range(func(key, value interface{}) bool {
		client := value.(*wsClient)
		client.conn.Close()
		return true
	})
}

// Broadcast queues an event for all subscribers; the feed drops events rather
// than block the ledger
func (h *Hub) Broadcast(event ledger.Event) {
	select {
	case h.events <- event:
	default:
		util.Debug("WebSocket feed backlogged, dropping event")
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.quit:
			return
		case event := <-h.events:
			h.clients.Range(func(key, value interface{}) bool {
				client := value.(*wsClient)
				if err := client.send(event); err != nil {
					util.Debugf("WebSocket client %d write failed: %v", client.id, err)
					h.remove(client)
				}
				return true
			})
		}
	}
}

func (h *Hub) remove(client *wsClient) {
	if _, loaded := h.clients.LoadAndDelete(client.id); loaded {
		close(client.quit)
		client.conn.Close()
	}
}

func (c *wsClient) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleWebSocket upgrades a connection and subscribes it to the feed
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.Debugf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		id:   atomic.AddUint64(&s.hub.clientSeq, 1),
		conn: conn,
		quit: make(chan struct{}),
	}
	s.hub.clients.Store(client.id, client)

	util.Debugf("WebSocket client %d connected from %s", client.id, conn.RemoteAddr())

	// Send the current template so a fresh subscriber starts in sync
	if block := s.ledger.GetCurrentBlock(); block != nil {
		if err := client.send(ledger.Event{Type: "template", Block: block}); err != nil {
			s.hub.remove(client)
			return
		}
	}

	// Keepalive pings
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-client.quit:
				return
			case <-ticker.C:
				if err := client.ping(); err != nil {
					s.hub.remove(client)
					return
				}
			}
		}
	}()

	// Drain reads; the feed is one-way, a read error means disconnect
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(client)
				return
			}
		}
	}()
}
