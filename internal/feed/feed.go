// Package feed fans live settlement events out to websocket subscribers: a
// public ticker of wins, losses, pool resolutions, and deposits.
package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is one feed entry. Amounts are strings so the decimal survives JSON
// untouched.
type Event struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id,omitempty"`
	Game      string `json:"game,omitempty"`
	Stake     string `json:"stake,omitempty"`
	Payout    string `json:"payout,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub tracks subscribers and fans events out. Slow subscribers drop events
// rather than blocking the settlement path.
type Hub struct {
	log *zap.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan Event
	// done closes when Run returns, so handlers never block on a hub that
	// has already shut down.
	done chan struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:        log,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 100),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	clients := map[*client]bool{}
	defer func() {
		close(h.done)
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = true
		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.send)
			}
		case event := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- event:
				default:
					// Subscriber can't keep up; skip it for this event.
				}
			}
		}
	}
}

// Publish queues an event; if the hub buffer is full the event is dropped,
// the feed is best-effort.
func (h *Hub) Publish(event Event) {
	event.Timestamp = time.Now().Unix()
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("feed buffer full, dropping event", zap.String("type", event.Type))
	}
}

// Settlement publishes one resolved wager.
func (h *Hub) Settlement(userID int64, game, outcome string, stake, payout decimal.Decimal, detail string) {
	h.Publish(Event{
		Type:   "settlement:" + outcome,
		UserID: userID,
		Game:   game,
		Stake:  stake.String(),
		Payout: payout.String(),
		Detail: detail,
	})
}

// Handle upgrades a gin request into a feed subscription.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan Event, 16)}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			h.drop(cl)
			conn.Close()
		}()
		for event := range cl.send {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	// Drain reads so pings and closes are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(cl)
}

// drop hands a client back to Run, or returns immediately if the hub has
// already shut down and will never read the channel again.
func (h *Hub) drop(cl *client) {
	select {
	case h.unregister <- cl:
	case <-h.done:
	}
}
