package planner

import (
	"sync"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/events"
	"go.uber.org/zap"
)

// Live holds a snapshot that is reloaded after every committed change.
// Close must be called to stop listening.
type Live struct {
	p        *Planner
	onChange func(*domain.Snapshot)

	mu    sync.RWMutex
	snap  *domain.Snapshot
	err   error
	close func()
	once  sync.Once
}

// Live loads the current snapshot and keeps it fresh. onChange, when set, is
// called with every reloaded snapshot.
func (p *Planner) Live(onChange func(*domain.Snapshot)) (*Live, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	l := &Live{p: p, snap: snap, onChange: onChange}
	l.close = p.store.Bus().Subscribe(l.reload)
	return l, nil
}

func (l *Live) reload(c events.Change) {
	snap, err := l.p.store.Snapshot()
	l.mu.Lock()
	if err == nil {
		l.snap = snap
	}
	l.err = err
	l.mu.Unlock()
	if err != nil {
		l.p.logger.Error("live reload failed", zap.String("kind", string(c.Kind)), zap.Error(err))
		return
	}
	if l.onChange != nil {
		l.onChange(snap)
	}
}

// Snapshot returns the latest loaded snapshot.
func (l *Live) Snapshot() *domain.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Err returns the error of the last reload, if it failed.
func (l *Live) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Close unsubscribes from change notifications.
func (l *Live) Close() {
	l.once.Do(l.close)
}

// Changes delivers change notifications on a channel until the returned
// function is called.
func (p *Planner) Changes(buffer int) (<-chan events.Change, func()) {
	return p.store.Bus().SubscribeChan(buffer)
}
