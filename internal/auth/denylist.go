package auth

import (
	"sync"
	"time"
)

// Denylist holds revoked token ids until their tokens would have expired
// anyway. It is per process.
type Denylist struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{ids: make(map[string]time.Time)}
}

func (d *Denylist) Revoke(id string, expires time.Time) {
	if id == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked(time.Now())
	d.ids[id] = expires
}

func (d *Denylist) RevokeClaims(c Claims) {
	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	} else {
		exp = time.Now().Add(AccessTokenTTL)
	}
	d.Revoke(c.ID, exp)
}

func (d *Denylist) Revoked(id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.ids[id]
	return ok && now.Before(exp)
}

func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}

func (d *Denylist) pruneLocked(now time.Time) {
	for id, exp := range d.ids {
		if !now.Before(exp) {
			delete(d.ids, id)
		}
	}
}
