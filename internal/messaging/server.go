// internal/messaging/server.go
package messaging

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Middleware runs during the handshake, before a raw connection is promoted
// to a Socket. Calling next with an error aborts the pipeline and the
// connection is never promoted.
type Middleware func(s *Socket, r *http.Request, next func(err error))

// Server accepts websocket connections on a single upgrade path, runs the
// middleware pipeline, and owns the live socket set and room broadcaster.
type Server struct {
	logger      *logrus.Logger
	broadcaster *Broadcaster

	mu          sync.Mutex
	sockets     map[string]*Socket
	middlewares []Middleware

	onConnection func(*Socket)
}

func NewServer(logger *logrus.Logger) *Server {
	return &Server{
		logger:      logger,
		broadcaster: NewBroadcaster(),
		sockets:     make(map[string]*Socket),
	}
}

// Broadcaster exposes the room registry.
func (srv *Server) Broadcaster() *Broadcaster { return srv.broadcaster }

// Use appends a middleware to the handshake pipeline.
func (srv *Server) Use(mw Middleware) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.middlewares = append(srv.middlewares, mw)
}

// OnConnection registers the hook invoked with every promoted socket.
func (srv *Server) OnConnection(fn func(*Socket)) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.onConnection = fn
}

// Attach claims path on the mux for protocol upgrade. Requests to any
// other path fall through to the mux and are rejected before upgrade.
func (srv *Server) Attach(mux *http.ServeMux, path string) {
	mux.HandleFunc(path, srv.handleUpgrade)
}

func (srv *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		srv.logger.Warnf("websocket accept error from %s: %v", r.RemoteAddr, err)
		return
	}

	id := uuid.NewString()
	s := newSocket(id, conn, srv.broadcaster, r, srv.logger)

	if err := srv.runMiddlewares(s, r); err != nil {
		srv.logger.Errorf("middleware rejected connection %s: %v", id, err)
		conn.Close(websocket.StatusPolicyViolation, "handshake rejected")
		return
	}

	srv.mu.Lock()
	srv.sockets[id] = s
	onConnection := srv.onConnection
	srv.mu.Unlock()

	s.OnClose(func() {
		srv.mu.Lock()
		delete(srv.sockets, id)
		srv.mu.Unlock()
	})

	srv.logger.WithFields(logrus.Fields{
		"socket": id,
		"remote": r.RemoteAddr,
	}).Info("socket connected")

	if onConnection != nil {
		onConnection(s)
	}

	s.readPump(context.Background())
}

// runMiddlewares executes the pipeline by explicit iteration; each step is
// completed before the next starts.
func (srv *Server) runMiddlewares(s *Socket, r *http.Request) error {
	srv.mu.Lock()
	chain := make([]Middleware, len(srv.middlewares))
	copy(chain, srv.middlewares)
	srv.mu.Unlock()

	for _, mw := range chain {
		var nextErr error
		advanced := false
		mw(s, r, func(err error) {
			advanced = true
			nextErr = err
		})
		if nextErr != nil {
			return nextErr
		}
		if !advanced {
			return fmt.Errorf("middleware did not continue the pipeline")
		}
	}
	return nil
}

// In addresses every member of a room.
func (srv *Server) In(room string) *Group {
	return &Group{members: srv.broadcaster.Members(room)}
}

// To addresses exactly one connection by identity. Sending to a vanished
// connection is a silent no-op, not an error.
func (srv *Server) To(id string) *Group {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if s, ok := srv.sockets[id]; ok {
		return &Group{members: []*Socket{s}}
	}
	return &Group{}
}
