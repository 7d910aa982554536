package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"royalcourt/apps/server/internal/codec"
	"royalcourt/apps/server/internal/lobby"
	"royalcourt/apps/server/internal/room"
	"royalcourt/apps/server/internal/store"
	"royalcourt/card"
	"royalcourt/court"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
	requestTimeout = 5 * time.Second
	// remembered actionIds per connection
	actionMemory = 128
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the web client's origin once it has a fixed host
	},
}

var (
	errNotJoined  = errors.New("not joined to a room")
	errBadRequest = errors.New("bad request")
)

// Connection represents a WebSocket client connection
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway
	log     logrus.FieldLogger
	seq     uint64

	mu      sync.Mutex
	room    *room.Room
	seat    int
	actions map[string]struct{}
	order   []string
	closed  bool
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	lobby       *lobby.Lobby
	log         logrus.FieldLogger
}

// New creates a new Gateway instance
func New(lby *lobby.Lobby, log logrus.FieldLogger) *Gateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{
		connections: make(map[string]*Connection),
		lobby:       lby,
		log:         log.WithField("component", "gateway"),
	}
}

// HandleWebSocket handles WebSocket upgrade and connection
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("upgrade failed")
		return
	}

	c := &Connection{
		ID:      uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Gateway: g,
		seat:    court.NoSeat,
		actions: make(map[string]struct{}),
	}
	c.log = g.log.WithField("conn", c.ID)

	g.mu.Lock()
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()
	c.log.WithField("total", total).Info("client connected")

	go c.readPump()
	go c.writePump()
}

func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()

	c.mu.Lock()
	r := c.room
	c.room = nil
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()
	if r != nil {
		r.Unsubscribe(c.ID)
	}
	c.log.WithField("total", total).Info("client disconnected")
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("read error")
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.DecodeClient(data)
	if err != nil {
		c.sendError(errBadRequest, err.Error(), "")
		return
	}
	c.log.WithField("type", env.Type).Debug("received")

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch env.Type {
	case codec.TypeCreateRoom:
		ticket, err := c.Gateway.lobby.CreateRoom(ctx, env.Name, env.TargetPlayers, env.FillWithBots)
		c.afterJoin(ticket, err)
	case codec.TypeJoinRoom:
		ticket, err := c.Gateway.lobby.JoinRoom(ctx, env.Code, env.Name)
		c.afterJoin(ticket, err)
	case codec.TypeResume:
		if env.Seat == nil {
			c.sendError(errBadRequest, "resume needs a seat", "")
			return
		}
		ticket, err := c.Gateway.lobby.Resume(ctx, env.Code, *env.Seat, env.Token)
		c.afterJoin(ticket, err)
	case codec.TypeStartRound:
		r, seat := c.current()
		if r == nil {
			c.sendError(errNotJoined, "", "")
			return
		}
		if err := r.StartRound(seat); err != nil {
			c.sendError(err, "", "")
		}
	case codec.TypePlayCard:
		c.handlePlayCard(env)
	case codec.TypeRequestState:
		r, seat := c.current()
		if r == nil {
			c.sendError(errNotJoined, "", "")
			return
		}
		c.sendState(r.Snapshot(), seat)
	default:
		c.sendError(errBadRequest, "unknown message type "+env.Type, "")
	}
}

func (c *Connection) handlePlayCard(env codec.ClientEnvelope) {
	r, seat := c.current()
	if r == nil {
		c.sendError(errNotJoined, "", env.ActionID)
		return
	}
	if env.ActionID != "" && c.seenAction(env.ActionID) {
		// resubmitted after a lost reply; the move already landed
		c.sendState(r.Snapshot(), seat)
		return
	}
	played, err := card.Parse(env.Card)
	if err != nil {
		c.sendError(errBadRequest, err.Error(), env.ActionID)
		return
	}
	if _, err := r.SubmitMove(seat, played); err != nil {
		c.sendError(err, "", env.ActionID)
		return
	}
	c.rememberAction(env.ActionID)
}

func (c *Connection) afterJoin(ticket lobby.Ticket, err error) {
	if err != nil {
		c.sendError(err, "", "")
		return
	}
	c.send(&codec.ServerEnvelope{
		Type:     codec.TypeJoined,
		RoomCode: ticket.Code,
		Joined:   &codec.Joined{Code: ticket.Code, Seat: ticket.Seat, Token: ticket.Token},
	})
	if err := c.attach(ticket.Room, ticket.Seat); err != nil {
		c.sendError(err, "", "")
	}
}

// attach moves the connection to r and starts forwarding its updates.
func (c *Connection) attach(r *room.Room, seat int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return room.ErrRoomClosed
	}
	prev := c.room
	c.room = r
	c.seat = seat
	c.actions = make(map[string]struct{})
	c.order = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Unsubscribe(c.ID)
	}
	updates, err := r.Subscribe(c.ID)
	if err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"room": r.Code, "seat": seat}).Info("attached")
	go c.forward(r, seat, updates)
	return nil
}

func (c *Connection) forward(r *room.Room, seat int, updates <-chan room.Update) {
	for u := range updates {
		for _, mv := range u.Moves {
			for _, ev := range codec.EventsFor(mv) {
				c.send(&codec.ServerEnvelope{Type: codec.TypeEvent, RoomCode: r.Code, Event: &ev})
			}
		}
		c.sendState(u.Session, seat)
	}
}

func (c *Connection) current() (*room.Room, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.seat
}

func (c *Connection) seenAction(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.actions[id]
	return ok
}

func (c *Connection) rememberAction(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[id] = struct{}{}
	c.order = append(c.order, id)
	if len(c.order) > actionMemory {
		delete(c.actions, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *Connection) sendState(s *court.Session, seat int) {
	if s == nil {
		return
	}
	c.send(&codec.ServerEnvelope{Type: codec.TypeState, RoomCode: s.Code, State: codec.ViewFor(s, seat)})
}

func (c *Connection) sendError(err error, msg, actionID string) {
	reply := errorReply(err)
	if msg != "" {
		reply.Message = msg
	}
	reply.ActionID = actionID
	c.send(&codec.ServerEnvelope{Type: codec.TypeError, Error: reply})
}

func errorReply(err error) *codec.ErrorReply {
	switch {
	case errors.Is(err, store.ErrConflict):
		return &codec.ErrorReply{Code: "Conflict", Message: err.Error(), Retryable: true}
	case errors.Is(err, room.ErrRoomClosed):
		return &codec.ErrorReply{Code: "RoomClosed", Message: err.Error(), Retryable: true}
	case errors.Is(err, context.DeadlineExceeded):
		return &codec.ErrorReply{Code: "Timeout", Message: err.Error(), Retryable: true}
	case errors.Is(err, errNotJoined):
		return &codec.ErrorReply{Code: "NotJoined", Message: err.Error()}
	case errors.Is(err, errBadRequest):
		return &codec.ErrorReply{Code: "BadRequest", Message: err.Error()}
	}
	reply := codec.ErrorFor(err, false)
	if reply.Code == "Internal" {
		reply.Message = "internal error"
	}
	return reply
}

func (c *Connection) send(env *codec.ServerEnvelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	// seq is taken under the lock so frames leave in seq order
	c.seq++
	data, err := codec.Encode(env, c.seq)
	if err != nil {
		c.log.WithError(err).Error("encode failed")
		return
	}
	select {
	case c.Send <- data:
	default:
		// Drop if buffer full; the next state message resyncs the client
		c.log.Warn("send buffer full, dropping message")
	}
}
