// internal/messaging/socket.go
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// ReplyFunc delivers the outcome of a request back to its sender. For
// inbound requests it writes a channel-1 envelope; for fire-and-forget
// events it is a no-op.
type ReplyFunc func(err error, payload interface{})

// Handler processes one named application event from a socket.
type Handler func(payload json.RawMessage, reply ReplyFunc)

// Identity is the authenticated principal attached to a socket by the
// middleware pipeline. A nil identity means the connection is
// unauthenticated.
type Identity struct {
	UID  string
	Name string
}

// Socket represents one logical client session. It translates between the
// wire envelope and typed application events, and tracks its own room
// subscriptions symmetrically with the Broadcaster.
type Socket struct {
	id          string
	conn        *websocket.Conn
	broadcaster *Broadcaster
	request     *http.Request
	logger      *logrus.Logger

	mu            sync.Mutex
	subscriptions []string
	handlers      map[string]Handler
	pending       map[string]ReplyFunc
	nextRequestID uint64
	identity      *Identity
	onError       func(error)
	onClose       []func()

	// sendFn writes one frame; swapped out in tests.
	sendFn func(ctx context.Context, data []byte) error
}

func newSocket(id string, conn *websocket.Conn, b *Broadcaster, r *http.Request, logger *logrus.Logger) *Socket {
	s := &Socket{
		id:          id,
		conn:        conn,
		broadcaster: b,
		request:     r,
		logger:      logger,
		handlers:    make(map[string]Handler),
		pending:     make(map[string]ReplyFunc),
	}
	if conn != nil {
		s.sendFn = func(ctx context.Context, data []byte) error {
			return conn.Write(ctx, websocket.MessageText, data)
		}
	}
	return s
}

// ID returns the process-unique connection identity allocated at accept time.
func (s *Socket) ID() string { return s.id }

// Request returns the HTTP upgrade request captured at connect time.
func (s *Socket) Request() *http.Request { return s.request }

// Identity returns the authenticated principal, or nil.
func (s *Socket) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentity attaches the authenticated principal. Called by middleware
// during the handshake; immutable for the connection's lifetime afterwards.
func (s *Socket) SetIdentity(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

// On registers the handler for a named application event.
func (s *Socket) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = h
}

// OnError registers the local error hook. Protocol errors and handler
// panics land here; they never crash the server.
func (s *Socket) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// OnClose registers a close hook. Hooks run once, in registration order,
// when the transport closes.
func (s *Socket) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Emit sends a fire-and-forget channel-0 envelope.
func (s *Socket) Emit(event string, payload interface{}) {
	s.send(outEnvelope{Channel: channelEvent, Event: event, Payload: payload})
}

// EmitRequest sends a channel-0 envelope carrying a fresh correlation id
// and registers reply to run, at most once, when the matching channel-1
// envelope arrives. There is no protocol-level timeout.
func (s *Socket) EmitRequest(event string, payload interface{}, reply ReplyFunc) {
	s.mu.Lock()
	s.nextRequestID++
	id := strconv.FormatUint(s.nextRequestID, 10)
	s.pending[id] = reply
	s.mu.Unlock()

	s.send(outEnvelope{Channel: channelEvent, Event: event, Payload: payload, ID: id})
}

// Join subscribes the socket to a room, recording it in join order.
func (s *Socket) Join(room string) {
	s.broadcaster.Join(room, s)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub == room {
			return
		}
	}
	s.subscriptions = append(s.subscriptions, room)
}

// Leave unsubscribes the socket from a room, keeping the broadcaster's
// member set and the socket's own join list in step.
func (s *Socket) Leave(room string) {
	s.broadcaster.Leave(room, s)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscriptions {
		if sub == room {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return
		}
	}
}

// LeaveAll leaves every joined room in reverse join order. Individual
// failures are logged, never propagated.
func (s *Socket) LeaveAll() {
	s.mu.Lock()
	subs := make([]string, len(s.subscriptions))
	copy(subs, s.subscriptions)
	s.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		func(room string) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warnf("socket %s: leave %s failed: %v", s.id, room, r)
				}
			}()
			s.Leave(room)
		}(subs[i])
	}
}

// Subscriptions returns the rooms this socket has joined, in join order.
func (s *Socket) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]string, len(s.subscriptions))
	copy(subs, s.subscriptions)
	return subs
}

// To addresses every member of a room except this socket.
func (s *Socket) To(room string) *Group {
	members := s.broadcaster.Members(room)
	others := make([]*Socket, 0, len(members))
	for _, member := range members {
		if member != s {
			others = append(others, member)
		}
	}
	return &Group{members: others}
}

// In addresses every member of a room including this socket.
func (s *Socket) In(room string) *Group {
	return &Group{members: s.broadcaster.Members(room)}
}

// readPump reads frames until the connection closes, then runs close
// handling exactly once.
func (s *Socket) readPump(ctx context.Context) {
	defer s.handleClose()
	for {
		msgType, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Infof("socket %s closed normally", s.id)
			} else {
				s.logger.Debugf("socket %s read ended: %v", s.id, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			s.fireError(fmt.Errorf("unexpected binary frame"))
			continue
		}
		s.handleMessage(data)
	}
}

// handleMessage parses one envelope and dispatches it. Parse failures and
// handler panics surface through the error hook; they must never take the
// transport down.
func (s *Socket) handleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.fireError(fmt.Errorf("handler panic: %v", r))
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.fireError(fmt.Errorf("malformed envelope: %w", err))
		return
	}

	switch env.Channel {
	case channelEvent:
		reply := s.replyFor(env.ID)
		s.mu.Lock()
		h, ok := s.handlers[env.Event]
		s.mu.Unlock()
		if !ok {
			s.fireError(fmt.Errorf("unknown event %q", env.Event))
			return
		}
		h(env.Payload, reply)

	case channelAck:
		s.resolveAck(env)

	default:
		s.fireError(fmt.Errorf("unknown channel %d", env.Channel))
	}
}

// replyFor builds the reply callback for an inbound channel-0 envelope.
// Without an id the caller cannot observe a reply, so it is a no-op.
func (s *Socket) replyFor(id json.RawMessage) ReplyFunc {
	if len(id) == 0 {
		return func(error, interface{}) {}
	}
	return func(err error, payload interface{}) {
		s.send(outEnvelope{
			Channel: channelAck,
			ID:      json.RawMessage(id),
			Err:     serializeError(err),
			Payload: payload,
		})
	}
}

// resolveAck correlates an inbound channel-1 envelope with a pending
// request. Anything beyond simple reply correlation is unsupported and
// fails loudly rather than being swallowed.
func (s *Socket) resolveAck(env envelope) {
	var id string
	if err := json.Unmarshal(env.ID, &id); err != nil {
		// Correlation ids we generate are JSON strings.
		s.fireError(fmt.Errorf("ack with unrecognized id %s", string(env.ID)))
		return
	}

	s.mu.Lock()
	reply, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		s.fireError(fmt.Errorf("ack channel not implemented beyond reply correlation (id %q)", id))
		return
	}

	var err error
	if env.Err != nil {
		err = env.Err
	}
	reply(err, env.Payload)
}

func (s *Socket) send(env outEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.fireError(fmt.Errorf("failed to marshal envelope: %w", err))
		return
	}
	if s.sendFn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.sendFn(ctx, data); err != nil {
		s.fireError(fmt.Errorf("write failed: %w", err))
	}
}

func (s *Socket) fireError(err error) {
	s.mu.Lock()
	hook := s.onError
	s.mu.Unlock()
	if hook != nil {
		hook(err)
		return
	}
	s.logger.Warnf("socket %s error: %v", s.id, err)
}

// handleClose leaves every room before running the close hooks, so no
// room retains a member whose transport is gone.
func (s *Socket) handleClose() {
	s.LeaveAll()

	s.mu.Lock()
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// Group is a broadcast address over a snapshot of room members.
type Group struct {
	members []*Socket
}

// Emit sends a fire-and-forget event to every socket in the group.
func (g *Group) Emit(event string, payload interface{}) {
	for _, member := range g.members {
		member.Emit(event, payload)
	}
}

// ForEach visits every socket in the group. Used when each recipient needs
// an individually computed payload.
func (g *Group) ForEach(fn func(*Socket)) {
	for _, member := range g.members {
		fn(member)
	}
}
