// Package preview manages revocable preview URLs for source files.
package preview

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/imageprep/core"
)

// DefaultRevokeDelay is how long an auto-revoking handle stays live.
const DefaultRevokeDelay = 5 * time.Minute

type handleConfig struct {
	autoRevoke bool
	delay      time.Duration
	onRevoke   func(*Handle)
}

// Option configures a Handle.
type Option func(*handleConfig)

// WithoutAutoRevoke keeps the handle live until Revoke is called.
func WithoutAutoRevoke() Option {
	return func(c *handleConfig) { c.autoRevoke = false }
}

// WithDelay sets the auto-revoke delay.
func WithDelay(d time.Duration) Option {
	return func(c *handleConfig) { c.delay = d }
}

func withOnRevoke(fn func(*Handle)) Option {
	return func(c *handleConfig) { c.onRevoke = fn }
}

// Handle is a revocable URL for one file.
type Handle struct {
	url      string
	store    *ObjectStore
	onRevoke func(*Handle)

	once    sync.Once
	revoked atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

// New registers file in store and returns its handle.  Unless
// WithoutAutoRevoke is given the handle revokes itself after the delay.
func New(store *ObjectStore, file *core.SourceFile, opts ...Option) *Handle {
	cfg := handleConfig{autoRevoke: true, delay: DefaultRevokeDelay}
	for _, o := range opts {
		o(&cfg)
	}

	h := &Handle{url: store.Put(file), store: store, onRevoke: cfg.onRevoke}
	if cfg.autoRevoke {
		h.mu.Lock()
		h.timer = time.AfterFunc(cfg.delay, h.Revoke)
		h.mu.Unlock()
	}
	return h
}

// URL returns the object URL.  It stays readable after revocation but no
// longer resolves.
func (h *Handle) URL() string { return h.url }

// IsRevoked reports whether Revoke has run.
func (h *Handle) IsRevoked() bool { return h.revoked.Load() }

// Revoke releases the object.  Calls after the first are no-ops.
func (h *Handle) Revoke() {
	h.once.Do(func() {
		h.revoked.Store(true)

		h.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()

		h.store.Revoke(h.url)
		if h.onRevoke != nil {
			h.onRevoke(h)
		}
	})
}
