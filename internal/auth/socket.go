// internal/auth/socket.go
package auth

import (
	"net/http"

	"github.com/openholdem/poker-service/internal/messaging"
	"github.com/sirupsen/logrus"
)

// SocketAuth returns handshake middleware that parses the session cookie
// and attaches the authenticated identity to the socket. A missing or
// invalid token leaves the socket unauthenticated rather than aborting the
// connection; identity-scoped events are rejected later, per event.
func SocketAuth(logger *logrus.Logger) messaging.Middleware {
	return func(s *messaging.Socket, r *http.Request, next func(error)) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			next(nil)
			return
		}

		uid, name, err := AuthenticateJWT(cookie.Value)
		if err != nil {
			logger.Warnf("socket %s presented invalid session token: %v", s.ID(), err)
			next(nil)
			return
		}

		s.SetIdentity(&messaging.Identity{UID: uid, Name: name})
		next(nil)
	}
}
