// internal/session/conn.go
package session

import (
	"encoding/json"

	"github.com/openholdem/poker-service/internal/messaging"
)

// Conn is the orchestrator's view of one client connection. It is
// implemented by a thin adapter over the transport socket; tests supply
// in-memory fakes.
type Conn interface {
	ID() string
	// UID returns the authenticated user identifier, or "" when the
	// connection is unauthenticated.
	UID() string
	Name() string
	Emit(event string, payload interface{})
	Join(room string)
	Leave(room string)
}

type socketConn struct {
	s *messaging.Socket
}

func (c *socketConn) ID() string { return c.s.ID() }

func (c *socketConn) UID() string {
	if id := c.s.Identity(); id != nil {
		return id.UID
	}
	return ""
}

func (c *socketConn) Name() string {
	if id := c.s.Identity(); id != nil {
		return id.Name
	}
	return ""
}

func (c *socketConn) Emit(event string, payload interface{}) { c.s.Emit(event, payload) }
func (c *socketConn) Join(room string)                       { c.s.Join(room) }
func (c *socketConn) Leave(room string)                      { c.s.Leave(room) }

// Register wires a freshly promoted socket into the orchestrator: one
// handler per application event, plus disconnect handling.
func (o *Orchestrator) Register(s *messaging.Socket) {
	conn := &socketConn{s: s}

	events := map[string]func(Conn, json.RawMessage) (interface{}, error){
		"join":               o.Join,
		"reserveSeat":        o.ReserveSeat,
		"cancelReservation":  o.CancelReservation,
		"sitDown":            o.SitDown,
		"standUp":            o.StandUp,
		"actionTaken":        o.ActionTaken,
		"setAutomaticAction": o.SetAutomaticAction,
	}
	for name, fn := range events {
		fn := fn
		s.On(name, func(payload json.RawMessage, reply messaging.ReplyFunc) {
			result, err := fn(conn, payload)
			reply(err, result)
		})
	}

	s.OnClose(func() { o.Disconnect(conn) })
}
