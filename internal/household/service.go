// Package household manages the collections a family shares: tasks,
// inventory and the shopping list. Every item carries the familyId it
// belongs to, and callers only ever see items of their own family.
package household

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
)

type Service struct {
	store     docstore.Store
	users     repository.UserRepository
	tasks     repository.ItemRepository[models.Task]
	inventory repository.ItemRepository[models.InventoryItem]
	shopping  repository.ItemRepository[models.ShoppingItem]
	logger    *zap.Logger
}

func NewService(
	store docstore.Store,
	users repository.UserRepository,
	tasks repository.ItemRepository[models.Task],
	inventory repository.ItemRepository[models.InventoryItem],
	shopping repository.ItemRepository[models.ShoppingItem],
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		users:     users,
		tasks:     tasks,
		inventory: inventory,
		shopping:  shopping,
		logger:    logger,
	}
}

// Overview is the summary shown on the home screen.
type Overview struct {
	PendingTasks  int `json:"pending_tasks"`
	LowStockItems int `json:"low_stock_items"`
	ShoppingItems int `json:"shopping_items"`
}

func (s *Service) Overview(ctx context.Context, uid string) (*Overview, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}
	familyID := *user.FamilyID

	pending, err := s.tasks.ListByFamily(ctx, familyID, repository.Condition{Field: models.FieldCompleted, Value: false})
	if err != nil {
		return nil, s.storageError("list pending tasks", err)
	}
	lowStock, err := s.inventory.ListByFamily(ctx, familyID, repository.Condition{Field: models.FieldIsLowStock, Value: true})
	if err != nil {
		return nil, s.storageError("list low stock items", err)
	}
	shopping, err := s.shopping.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, s.storageError("list shopping items", err)
	}

	return &Overview{
		PendingTasks:  len(pending),
		LowStockItems: len(lowStock),
		ShoppingItems: len(shopping),
	}, nil
}

// member loads uid and makes sure they belong to a family.
func (s *Service) member(ctx context.Context, uid string) (*models.UserRecord, error) {
	if uid == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "you need to sign in first")
	}
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, s.storageError("load user", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeNotFound, "your profile could not be found")
	}
	if !user.InFamily() {
		return nil, apperr.New(apperr.CodeNotInFamily, "join or create a family first")
	}
	return user, nil
}

// create writes a new item document and returns its key.
func (s *Service) create(ctx context.Context, collection string, data docstore.Fields) (string, error) {
	key := docstore.NewKey()
	data[models.FieldCreatedAt] = docstore.ServerTimestamp()
	data[models.FieldUpdatedAt] = docstore.ServerTimestamp()
	if err := s.store.Batch().Create(collection, key, data).Commit(ctx); err != nil {
		return "", s.storageError("create "+collection, err)
	}
	return key, nil
}

func (s *Service) update(ctx context.Context, collection, key string, data docstore.Fields) error {
	data[models.FieldUpdatedAt] = docstore.ServerTimestamp()
	if err := s.store.Update(ctx, collection, key, data); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return notFound(collection)
		}
		return s.storageError("update "+collection, err)
	}
	return nil
}

func (s *Service) delete(ctx context.Context, collection, key string) error {
	if err := s.store.Delete(ctx, collection, key); err != nil {
		return s.storageError("delete "+collection, err)
	}
	return nil
}

func (s *Service) storageError(op string, err error) error {
	s.logger.Error(op+" failed", zap.Error(err))
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Storage("could not save your changes, please try again", fmt.Errorf("%s: %w", op, err))
}

// invalid turns a validation failure on request input into INVALID_INPUT.
func invalid(err error) error {
	return apperr.Wrap(apperr.CodeInvalidInput, models.ValidationMessage(err), err)
}

func notFound(collection string) error {
	noun := map[string]string{
		models.CollectionTasks:     "task",
		models.CollectionInventory: "inventory item",
		models.CollectionShopping:  "shopping item",
	}[collection]
	return apperr.New(apperr.CodeNotFound, noun+" not found")
}

func trim(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

func priorityOrDefault(p models.Priority) models.Priority {
	if p == "" {
		return models.PriorityMedium
	}
	return models.Priority(strings.ToLower(string(p)))
}
