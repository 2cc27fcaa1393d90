package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/lalith-99/familyhub/internal/feed"
)

func TestWatch_DeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	bus := feed.NewLocal()
	store := NewMemory(WithPublisher(bus))

	if err := store.Set(ctx, "tasks", "t1", Fields{"familyId": "f1"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	snapshots := make(chan []Document, 8)
	cancel, err := Watch(ctx, store, bus, Collection("tasks").Where("familyId", "f1"), func(docs []Document, err error) {
		if err != nil {
			t.Errorf("watch error: %v", err)
			return
		}
		snapshots <- docs
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	first := nextSnapshot(t, snapshots)
	if len(first) != 1 || first[0].Key != "t1" {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	if err := store.Set(ctx, "tasks", "t2", Fields{"familyId": "f1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	second := nextSnapshot(t, snapshots)
	if len(second) != 2 {
		t.Fatalf("expected 2 tasks, got %+v", second)
	}
}

func TestWatch_SkipsUnrelatedChanges(t *testing.T) {
	ctx := context.Background()
	bus := feed.NewLocal()
	store := NewMemory(WithPublisher(bus))

	snapshots := make(chan []Document, 8)
	cancel, err := Watch(ctx, store, bus, Collection("tasks").Where("familyId", "f1"), func(docs []Document, err error) {
		snapshots <- docs
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	if got := nextSnapshot(t, snapshots); len(got) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", got)
	}

	// A task of another family changes nothing in this view.
	if err := store.Set(ctx, "tasks", "other", Fields{"familyId": "f2"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case docs := <-snapshots:
		t.Fatalf("unexpected snapshot %+v", docs)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchDocument_ReportsDeletion(t *testing.T) {
	ctx := context.Background()
	bus := feed.NewLocal()
	store := NewMemory(WithPublisher(bus))

	if err := store.Set(ctx, "families", "f1", Fields{"name": "Smith"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	docs := make(chan *Document, 8)
	cancel, err := WatchDocument(ctx, store, bus, "families", "f1", func(d *Document, err error) {
		if err != nil {
			t.Errorf("watch error: %v", err)
			return
		}
		docs <- d
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	if d := nextDoc(t, docs); d == nil || d.Data["name"] != "Smith" {
		t.Fatalf("unexpected initial doc %+v", d)
	}

	if err := store.Delete(ctx, "families", "f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if d := nextDoc(t, docs); d != nil {
		t.Fatalf("expected nil after delete, got %+v", d)
	}
}

func TestWatch_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	bus := feed.NewLocal()
	store := NewMemory(WithPublisher(bus))

	snapshots := make(chan []Document, 8)
	cancel, err := Watch(ctx, store, bus, Collection("users"), func(docs []Document, err error) {
		snapshots <- docs
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	nextSnapshot(t, snapshots)

	cancel()
	cancel()

	if n := bus.Subscribers("users"); n != 0 {
		t.Fatalf("expected subscription to be closed, %d open", n)
	}
	if err := store.Set(ctx, "users", "u1", Fields{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case docs := <-snapshots:
		t.Fatalf("snapshot delivered after cancel: %+v", docs)
	case <-time.After(100 * time.Millisecond):
	}
}

func nextSnapshot(t *testing.T, ch <-chan []Document) []Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func nextDoc(t *testing.T, ch <-chan *Document) *Document {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for document")
	}
	return nil
}
