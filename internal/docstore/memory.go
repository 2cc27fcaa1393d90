package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lalith-99/familyhub/internal/feed"
	"go.uber.org/zap"
)

// WriteHook runs before each write of a batch is staged. Returning an
// error aborts the whole batch. Tests use it to simulate a store that
// fails partway through a commit.
type WriteHook func(index int, w Write) error

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithPublisher announces committed writes on p.
func WithPublisher(p feed.Publisher) MemoryOption {
	return func(m *Memory) { m.pub = p }
}

// WithClock overrides the commit clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithLogger sets the logger used for failures that do not fail a commit.
func WithLogger(logger *zap.Logger) MemoryOption {
	return func(m *Memory) { m.logger = logger }
}

// WithWriteHook installs a hook that runs for every staged write.
func WithWriteHook(h WriteHook) MemoryOption {
	return func(m *Memory) { m.hook = h }
}

type docRef struct {
	collection string
	key        string
}

// Memory is an in-process Store. Batches are staged against an overlay
// and swapped in under one lock, so readers never see half a batch.
type Memory struct {
	mu   sync.RWMutex
	docs map[docRef]*Document
	pub    feed.Publisher
	now    func() time.Time
	hook   WriteHook
	logger *zap.Logger
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		docs:   make(map[docRef]*Document),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetWriteHook replaces the write hook. Passing nil removes it.
func (m *Memory) SetWriteHook(h WriteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

func (m *Memory) Get(ctx context.Context, collection, key string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[docRef{collection, key}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
	}
	return copyDocument(d), nil
}

func (m *Memory) Set(ctx context.Context, collection, key string, data Fields) error {
	return m.Batch().Set(collection, key, data).Commit(ctx)
}

func (m *Memory) Update(ctx context.Context, collection, key string, data Fields) error {
	return m.Batch().Update(collection, key, data).Commit(ctx)
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	return m.Batch().Delete(collection, key).Commit(ctx)
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0)
	for ref, d := range m.docs {
		if ref.collection != q.Collection {
			continue
		}
		if q.Matches(*d) {
			docs = append(docs, *copyDocument(d))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (m *Memory) Batch() *Batch {
	return NewBatch(m.commit)
}

func (m *Memory) commit(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	now := m.now()
	staged := make(map[docRef]*Document, len(writes))
	lookup := func(ref docRef) (*Document, bool) {
		if d, ok := staged[ref]; ok {
			return d, d != nil
		}
		d, ok := m.docs[ref]
		return d, ok
	}

	for i, w := range writes {
		if m.hook != nil {
			if err := m.hook(i, w); err != nil {
				m.mu.Unlock()
				return err
			}
		}

		ref := docRef{w.Collection, w.Key}
		current, exists := lookup(ref)

		var currentData Fields
		if exists {
			currentData = current.Data
		}
		if err := w.Check(currentData, exists); err != nil {
			m.mu.Unlock()
			return err
		}

		switch w.Op {
		case feed.OpCreate, feed.OpSet:
			if w.Op == feed.OpCreate && exists {
				m.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, ErrAlreadyExists)
			}
			data, err := ApplyFields(nil, w.Data, now)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, err)
			}
			next := &Document{Collection: w.Collection, Key: w.Key, Data: data, Version: 1, CreatedAt: now, UpdatedAt: now}
			if exists {
				next.Version = current.Version + 1
				next.CreatedAt = current.CreatedAt
			}
			staged[ref] = next

		case feed.OpUpdate:
			if !exists {
				m.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, ErrNotFound)
			}
			data, err := ApplyFields(current.Data, w.Data, now)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, err)
			}
			staged[ref] = &Document{
				Collection: w.Collection,
				Key:        w.Key,
				Data:       data,
				Version:    current.Version + 1,
				CreatedAt:  current.CreatedAt,
				UpdatedAt:  now,
			}

		case feed.OpDelete:
			staged[ref] = nil

		default:
			m.mu.Unlock()
			return fmt.Errorf("unknown write op %q", w.Op)
		}
	}

	for ref, d := range staged {
		if d == nil {
			delete(m.docs, ref)
			continue
		}
		m.docs[ref] = d
	}
	pub := m.pub
	m.mu.Unlock()

	if pub != nil {
		// The commit already happened; a lost notification only delays
		// live views until the next write.
		if err := pub.Publish(context.WithoutCancel(ctx), Changes(writes, now)...); err != nil {
			m.logger.Warn("failed to publish document changes",
				zap.Int("writes", len(writes)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func copyDocument(d *Document) *Document {
	out := *d
	out.Data = CloneFields(d.Data)
	return &out
}
