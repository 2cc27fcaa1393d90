package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lalith-99/familyhub/internal/feed"
)

// CancelFunc ends a live subscription. It blocks until the callback is no
// longer running and never runs it again, so it must not be called from
// inside the callback.
type CancelFunc func()

// Watch delivers the result of q to fn now and again after every change
// to q's collection that alters the result. Errors reading the store are
// delivered to fn as well; the subscription stays open.
func Watch(ctx context.Context, store Store, sub feed.Subscriber, q Query, fn func([]Document, error)) (CancelFunc, error) {
	read := func(ctx context.Context) (string, func(), error) {
		docs, err := store.Query(ctx, q)
		if err != nil {
			return "", nil, err
		}
		return fingerprint(docs...), func() { fn(docs, nil) }, nil
	}
	return watch(ctx, sub, q.Collection, read, func(err error) { fn(nil, err) })
}

// WatchDocument is Watch for a single document. fn receives nil when the
// document does not exist.
func WatchDocument(ctx context.Context, store Store, sub feed.Subscriber, collection, key string, fn func(*Document, error)) (CancelFunc, error) {
	read := func(ctx context.Context) (string, func(), error) {
		doc, err := store.Get(ctx, collection, key)
		if errors.Is(err, ErrNotFound) {
			return "missing", func() { fn(nil, nil) }, nil
		}
		if err != nil {
			return "", nil, err
		}
		return fingerprint(*doc), func() { fn(doc, nil) }, nil
	}
	return watch(ctx, sub, collection, read, func(err error) { fn(nil, err) })
}

type readFunc func(ctx context.Context) (fp string, deliver func(), err error)

func watch(parent context.Context, sub feed.Subscriber, collection string, read readFunc, fail func(error)) (CancelFunc, error) {
	// Subscribe before the first read so no write can slip in between.
	s, err := sub.Subscribe(parent, collection)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	ctx, stop := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		var last string
		first := true
		refresh := func() {
			fp, deliver, err := read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					fail(err)
				}
				return
			}
			if !first && fp == last {
				return
			}
			first = false
			last = fp
			deliver()
		}

		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-s.C():
				if !ok {
					return
				}
				refresh()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			_ = s.Close()
			<-done
		})
	}, nil
}

func fingerprint(docs ...Document) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "%s@%d;", d.Key, d.Version)
	}
	return b.String()
}
