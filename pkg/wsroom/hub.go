// Package wsroom is a local stand-in for a realtime room: browsers connect
// over a websocket and exchange text frames with the agent.
package wsroom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
)

var ErrNotConnected = errors.New("participant is not connected")

const (
	writeWait  = 10 * time.Second
	maxPending = 64
)

type conn struct {
	identity string
	ws       *websocket.Conn
	mu       sync.Mutex
}

func (c *conn) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks connected participants by identity.
type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu     sync.RWMutex
	conns  map[string]*conn
	closed bool

	// inbound is held while the handler runs so delivery order matches
	// arrival order, replayed messages included.
	inbound sync.Mutex
	handler func(contractx.InboundMessage)
	pending []contractx.InboundMessage
}

var _ contractx.Transport = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:   logx.Component("wsroom"),
		conns: make(map[string]*conn),
	}
}

// RegisterRoutes mounts GET /ws?identity=<id>.
func (h *Hub) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.handleWS)
}

func (h *Hub) handleWS(c *gin.Context) {
	identity := strings.TrimSpace(c.Query("identity"))
	if identity == "" {
		identity = "user-" + uuid.NewString()
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cn := &conn{identity: identity, ws: ws}
	h.mu.Lock()
	if old, ok := h.conns[identity]; ok {
		_ = old.ws.Close()
	}
	h.conns[identity] = cn
	count := len(h.conns)
	h.mu.Unlock()
	h.log.Info().Str("participant", identity).Int("connected", count).Msg("participant joined")

	defer func() {
		h.mu.Lock()
		if h.conns[identity] == cn {
			delete(h.conns, identity)
		}
		h.mu.Unlock()
		_ = ws.Close()
		h.log.Info().Str("participant", identity).Msg("participant left")
	}()

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("participant", identity).Msg("read failed")
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		h.deliver(contractx.InboundMessage{
			Payload:        data,
			SenderIdentity: identity,
			Kind:           contractx.DeliveryReliable,
		})
	}
}

// deliver hands msg to the subscriber, holding it until Subscribe is called.
func (h *Hub) deliver(msg contractx.InboundMessage) {
	h.inbound.Lock()
	defer h.inbound.Unlock()

	if h.handler == nil {
		if len(h.pending) >= maxPending {
			h.log.Warn().Str("participant", msg.SenderIdentity).Msg("pending queue full, dropping message")
			return
		}
		h.pending = append(h.pending, msg)
		return
	}
	h.handler(msg)
}

// Subscribe sets the inbound handler and flushes messages received before it.
// The handler must not block.
func (h *Hub) Subscribe(handler func(contractx.InboundMessage)) {
	h.inbound.Lock()
	defer h.inbound.Unlock()

	h.handler = handler
	for _, msg := range h.pending {
		handler(msg)
	}
	h.pending = nil
}

// Publish writes to each destination, or to every participant when none is
// given.
func (h *Hub) Publish(ctx context.Context, msg contractx.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	var missing []string
	if len(msg.DestinationIdentities) == 0 {
		for _, c := range h.conns {
			targets = append(targets, c)
		}
	} else {
		for _, id := range msg.DestinationIdentities {
			if c, ok := h.conns[id]; ok {
				targets = append(targets, c)
			} else {
				missing = append(missing, id)
			}
		}
	}
	h.mu.RUnlock()

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrNotConnected, strings.Join(missing, ",")))
	}
	for _, c := range targets {
		if err := c.write(msg.Payload); err != nil {
			errs = append(errs, fmt.Errorf("%w: write to %s: %v", contractx.ErrTransport, c.identity, err))
		}
	}
	return errors.Join(errs...)
}

// Connected lists the identities currently joined.
func (h *Hub) Connected() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	conns := h.conns
	h.conns = make(map[string]*conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "agent shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		_ = c.ws.Close()
	}
	return nil
}
