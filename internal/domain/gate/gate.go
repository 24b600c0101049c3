// Package gate implements the advisory edit lock. It hides mutating actions
// in the UI; it is not an access control boundary and the API does not
// enforce it.
package gate

import (
	"crypto/subtle"
	"errors"

	"github.com/okian/rinkside/internal/adapters/kv"
)

// ErrWrongSecret is returned by AttemptUnlock on a mismatch.
var ErrWrongSecret = errors.New("wrong password")

// Session-scope marker recording an unlock.
const (
	Key      = "calendar_unlocked"
	Unlocked = "1"
)

// Gate is the locked/unlocked toggle for one browser session.
type Gate struct {
	store  kv.Store
	secret string
}

// New binds a gate to the session scope and the shared secret.
func New(store kv.Store, secret string) *Gate {
	return &Gate{store: store, secret: secret}
}

// Locked is true unless an unlock was recorded in this scope.
func (g *Gate) Locked() bool {
	v, ok := g.store.Get(Key)
	return !ok || v != Unlocked
}

// AttemptUnlock unlocks on a matching secret and records it for later loads.
// A mismatch leaves the state unchanged.
func (g *Gate) AttemptUnlock(secret string) error {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(g.secret)) != 1 {
		return ErrWrongSecret
	}
	g.store.Set(Key, Unlocked)
	return nil
}

// Relock locks and clears the recorded unlock.
func (g *Gate) Relock() {
	g.store.Delete(Key)
}
