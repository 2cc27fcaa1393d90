// Package feed carries change notifications from the document store to live
// subscribers.
//
// A notification only says "this document in this collection was written".
// Subscribers are expected to re-read whatever they display, which is why a
// subscription may coalesce notifications: if one is already pending when
// another arrives, the pending one is enough to trigger the re-read.
package feed

import (
	"context"
	"time"
)

// Op is the kind of write that produced a change.
type Op string

const (
	OpCreate Op = "create"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed document write.
type Change struct {
	Collection string    `json:"collection"`
	Key        string    `json:"key"`
	Op         Op        `json:"op"`
	At         time.Time `json:"at"`
}

// Publisher announces committed writes.
type Publisher interface {
	Publish(ctx context.Context, changes ...Change) error
}

// Subscription delivers changes for one collection until closed.
type Subscription interface {
	// C is closed after Close returns or when the underlying transport
	// goes away.
	C() <-chan Change
	Close() error
}

// Subscriber opens subscriptions on a collection.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// Bus is both ends of a change feed.
type Bus interface {
	Publisher
	Subscriber
}

// offer hands c to ch without blocking. A full buffer already holds a
// pending notification, so dropping c loses nothing a re-read won't see.
func offer(ch chan Change, c Change) {
	select {
	case ch <- c:
	default:
	}
}
