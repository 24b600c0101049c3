package api

import (
	"time"

	"github.com/okian/rinkside/internal/adapters/kv"
	"github.com/okian/rinkside/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithCookieStore persists view state in signed cookies. Without it view
// state lives for a single request.
func WithCookieStore(c *kv.CookieStore) Option {
	return func(s *Server) {
		s.cookies = c
	}
}

// WithSecret sets the shared edit password checked by /api/unlock.
func WithSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = secret
		}
	}
}

// WithKeepAlive sets the comment interval on idle event streams.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
