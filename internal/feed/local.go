package feed

import (
	"context"
	"sync"
)

// Local is an in-process Bus. It is what the server uses when it runs
// without Redis, and what tests use.
type Local struct {
	mu   sync.Mutex
	subs map[string]map[*localSub]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[*localSub]struct{})}
}

func (l *Local) Publish(ctx context.Context, changes ...Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range changes {
		for s := range l.subs[c.Collection] {
			offer(s.ch, c)
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &localSub{bus: l, collection: collection, ch: make(chan Change, 1)}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs[collection] == nil {
		l.subs[collection] = make(map[*localSub]struct{})
	}
	l.subs[collection][s] = struct{}{}
	return s, nil
}

// Subscribers returns how many subscriptions are open on collection.
func (l *Local) Subscribers(collection string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[collection])
}

type localSub struct {
	bus        *Local
	collection string
	ch         chan Change
	once       sync.Once
}

func (s *localSub) C() <-chan Change { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		// Unregister under the bus lock so Publish can never send on a
		// closed channel.
		s.bus.mu.Lock()
		delete(s.bus.subs[s.collection], s)
		if len(s.bus.subs[s.collection]) == 0 {
			delete(s.bus.subs, s.collection)
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}
