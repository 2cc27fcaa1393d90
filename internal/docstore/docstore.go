// Package docstore is the schema-less document store the services are
// written against.
//
// Documents live in collections and are addressed by key. Writes that must
// land together go through a Batch, which commits all of its writes or
// none of them. Two implementations exist: Memory in this package and the
// Postgres store in internal/repository/postgres.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/familyhub/internal/feed"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrBatchCommitted  = errors.New("batch already committed")
	ErrInvalidDocument = errors.New("invalid document")
	// ErrPreconditionFailed means a conditional write found the document
	// missing or no longer matching its conditions. Nothing was written;
	// the caller may re-read and retry.
	ErrPreconditionFailed = errors.New("document changed")
)

// Fields is the body of a document. Values are JSON-compatible; the
// sentinels returned by ArrayUnion, ArrayRemove and ServerTimestamp are
// resolved by the store at commit time.
type Fields map[string]any

// Document is a stored document.
type Document struct {
	Collection string
	Key        string
	Data       Fields
	// Version increases by one on every write to the document.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects the documents of a collection matching every filter.
// Results are ordered by key.
type Query struct {
	Collection string
	Filters    []Filter
	Limit      int
}

// Collection starts a query over every document of a collection.
func Collection(name string) Query {
	return Query{Collection: name}
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// Matches reports whether doc satisfies every filter of q.
func (q Query) Matches(doc Document) bool {
	if doc.Collection != q.Collection {
		return false
	}
	return MatchFields(doc.Data, q.Filters)
}

// MatchFields reports whether data satisfies every filter. Array values
// match only when they hold the same elements in the same order.
func MatchFields(data Fields, filters []Filter) bool {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		got, ok := data[f.Field]
		if !ok {
			// A missing field only matches an explicit null.
			if want != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// Store is the document database.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, key string) (*Document, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, collection, key string, data Fields) error
	// Update merges data into an existing document; ErrNotFound otherwise.
	Update(ctx context.Context, collection, key string, data Fields) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, key string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	// Batch starts an atomic group of writes.
	Batch() *Batch
}

// NewKey returns a fresh document key.
func NewKey() string {
	return uuid.NewString()
}

// Write is one write of a batch.
type Write struct {
	Op         feed.Op
	Collection string
	Key        string
	Data       Fields
	// Expect, when set, must match the document at commit time or the
	// whole batch fails with ErrPreconditionFailed.
	Expect []Filter
}

// Check evaluates w's conditions against the current document, which is
// nil when it does not exist.
func (w Write) Check(current Fields, exists bool) error {
	if len(w.Expect) == 0 {
		return nil
	}
	if !exists || !MatchFields(current, w.Expect) {
		return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, ErrPreconditionFailed)
	}
	return nil
}

// CommitFunc applies a batch's writes atomically.
type CommitFunc func(ctx context.Context, writes []Write) error

// Batch collects writes and commits them as a unit. A Batch is not safe
// for concurrent use and can be committed once.
type Batch struct {
	writes    []Write
	commit    CommitFunc
	committed bool
}

func NewBatch(commit CommitFunc) *Batch {
	return &Batch{commit: commit}
}

// Create adds a document that must not exist yet; the whole batch fails
// with ErrAlreadyExists otherwise.
func (b *Batch) Create(collection, key string, data Fields) *Batch {
	return b.add(feed.OpCreate, collection, key, data)
}

func (b *Batch) Set(collection, key string, data Fields) *Batch {
	return b.add(feed.OpSet, collection, key, data)
}

// Update fails the whole batch with ErrNotFound if the document is missing.
func (b *Batch) Update(collection, key string, data Fields) *Batch {
	return b.add(feed.OpUpdate, collection, key, data)
}

// UpdateIf is Update guarded by conditions on the document as it stands
// when the batch commits. A missing document fails the conditions.
func (b *Batch) UpdateIf(collection, key string, data Fields, expect ...Filter) *Batch {
	return b.add(feed.OpUpdate, collection, key, data, expect...)
}

func (b *Batch) Delete(collection, key string) *Batch {
	return b.add(feed.OpDelete, collection, key, nil)
}

// DeleteIf deletes the document only if it exists and matches expect at
// commit time; the batch fails with ErrPreconditionFailed otherwise.
func (b *Batch) DeleteIf(collection, key string, expect ...Filter) *Batch {
	return b.add(feed.OpDelete, collection, key, nil, expect...)
}

func (b *Batch) add(op feed.Op, collection, key string, data Fields, expect ...Filter) *Batch {
	b.writes = append(b.writes, Write{Op: op, Collection: collection, Key: key, Data: data, Expect: expect})
	return b
}

// Len returns the number of queued writes.
func (b *Batch) Len() int {
	return len(b.writes)
}

// Writes returns a copy of the queued writes.
func (b *Batch) Writes() []Write {
	out := make([]Write, len(b.writes))
	copy(out, b.writes)
	return out
}

func (b *Batch) Commit(ctx context.Context) error {
	if b.committed {
		return ErrBatchCommitted
	}
	b.committed = true
	if len(b.writes) == 0 {
		return nil
	}
	for _, w := range b.writes {
		if w.Collection == "" || w.Key == "" {
			return ErrInvalidDocument
		}
	}
	return b.commit(ctx, b.writes)
}

// Changes builds the feed notifications for a committed batch.
func Changes(writes []Write, at time.Time) []feed.Change {
	changes := make([]feed.Change, 0, len(writes))
	for _, w := range writes {
		changes = append(changes, feed.Change{
			Collection: w.Collection,
			Key:        w.Key,
			Op:         w.Op,
			At:         at,
		})
	}
	return changes
}
