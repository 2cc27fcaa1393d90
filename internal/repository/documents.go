package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
)

// typedCollection reads one collection and decodes its documents into T.
type typedCollection[T any] struct {
	store      docstore.Store
	collection string
	decode     func(*docstore.Document) (*T, error)
}

func (c typedCollection[T]) get(ctx context.Context, key string) (*T, error) {
	doc, err := c.store.Get(ctx, c.collection, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", c.collection, err)
	}
	return c.decode(doc)
}

func (c typedCollection[T]) query(ctx context.Context, q docstore.Query) ([]T, error) {
	docs, err := c.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.collection, err)
	}

	out := make([]T, 0, len(docs))
	for i := range docs {
		v, err := c.decode(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// ItemStore implements ItemRepository for a family-scoped collection.
type ItemStore[T any] struct {
	typedCollection[T]
}

func (s *ItemStore[T]) GetByID(ctx context.Context, id string) (*T, error) {
	return s.get(ctx, id)
}

func (s *ItemStore[T]) ListByFamily(ctx context.Context, familyID string, where ...Condition) ([]T, error) {
	q := docstore.Collection(s.collection).Where(models.FieldFamilyID, familyID)
	for _, c := range where {
		q = q.Where(c.Field, c.Value)
	}
	return s.query(ctx, q)
}

func NewTaskStore(store docstore.Store) *ItemStore[models.Task] {
	return &ItemStore[models.Task]{typedCollection[models.Task]{store, models.CollectionTasks, models.DecodeTask}}
}

func NewInventoryStore(store docstore.Store) *ItemStore[models.InventoryItem] {
	return &ItemStore[models.InventoryItem]{typedCollection[models.InventoryItem]{store, models.CollectionInventory, models.DecodeInventoryItem}}
}

func NewShoppingStore(store docstore.Store) *ItemStore[models.ShoppingItem] {
	return &ItemStore[models.ShoppingItem]{typedCollection[models.ShoppingItem]{store, models.CollectionShopping, models.DecodeShoppingItem}}
}
