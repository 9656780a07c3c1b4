package inbound

import (
	"context"
	"sync"
)

// observers counts attached streams. The companion is foreground while at
// least one is attached.
type observers struct {
	mu       sync.Mutex
	count    int
	presence presence
}

func newObservers(p presence) *observers {
	return &observers{presence: p}
}

func (o *observers) attach(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.count++
	if o.count == 1 && o.presence != nil {
		o.presence.SetForeground(ctx, true)
	}
}

func (o *observers) detach(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.count--
	if o.count == 0 && o.presence != nil {
		o.presence.SetForeground(context.WithoutCancel(ctx), false)
	}
}

func (o *observers) attached() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}
