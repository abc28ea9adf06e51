package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// confirmTTL is how long a hub deletion stays confirmable. The command
// layer runs its yes/no prompt inside this window; on timeout the pending
// entry expires and no state changes.
const confirmTTL = 30 * time.Second

type pendingDelete struct {
	hubID   string
	guildID string
	timer   *time.Timer
}

// confirmRegistry tracks pending hub deletions keyed by one-shot token.
type confirmRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingDelete
	ttl     time.Duration
}

func newConfirmRegistry(ttl time.Duration) *confirmRegistry {
	if ttl <= 0 {
		ttl = confirmTTL
	}
	return &confirmRegistry{
		pending: map[string]*pendingDelete{},
		ttl:     ttl,
	}
}

// begin issues a token for deleting hubID on behalf of guildID. Any earlier
// pending deletion for the same guild is superseded.
func (c *confirmRegistry) begin(guildID, hubID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for token, p := range c.pending {
		if p.guildID == guildID {
			p.timer.Stop()
			delete(c.pending, token)
		}
	}

	token := uuid.NewString()
	p := &pendingDelete{hubID: hubID, guildID: guildID}
	p.timer = time.AfterFunc(c.ttl, func() {
		c.mu.Lock()
		delete(c.pending, token)
		c.mu.Unlock()
	})
	c.pending[token] = p
	return token
}

// take consumes the token. A token can be taken at most once.
func (c *confirmRegistry) take(token string) (hubID, guildID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, found := c.pending[token]
	if !found {
		return "", "", false
	}
	p.timer.Stop()
	delete(c.pending, token)
	return p.hubID, p.guildID, true
}
