package household

import (
	"context"
	"strings"

	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
)

type NewInventoryItem struct {
	Name       string `json:"name" validate:"required"`
	Quantity   string `json:"quantity" validate:"required"`
	Category   string `json:"category" validate:"required"`
	IsLowStock bool   `json:"isLowStock"`
}

// InventoryUpdate changes the fields that are set and leaves the rest.
type InventoryUpdate struct {
	Name       *string `json:"name"`
	Quantity   *string `json:"quantity"`
	Category   *string `json:"category"`
	IsLowStock *bool   `json:"isLowStock"`
}

func (s *Service) AddInventoryItem(ctx context.Context, uid string, in NewInventoryItem) (*models.InventoryItem, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}

	trim(&in.Name, &in.Quantity, &in.Category)
	if err := models.Validate(&in); err != nil {
		return nil, invalid(err)
	}

	key, err := s.create(ctx, models.CollectionInventory, docstore.Fields{
		"name":                 in.Name,
		"quantity":             in.Quantity,
		"category":             in.Category,
		models.FieldIsLowStock: in.IsLowStock,
		models.FieldFamilyID:   *user.FamilyID,
	})
	if err != nil {
		return nil, err
	}
	return s.loadInventoryItem(ctx, key)
}

func (s *Service) UpdateInventoryItem(ctx context.Context, uid, itemID string, in InventoryUpdate) (*models.InventoryItem, error) {
	if _, err := s.ownInventoryItem(ctx, uid, itemID); err != nil {
		return nil, err
	}

	fields := docstore.Fields{}
	for name, v := range map[string]*string{"name": in.Name, "quantity": in.Quantity, "category": in.Category} {
		if v == nil {
			continue
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, name+" cannot be empty")
		}
		fields[name] = trimmed
	}
	if in.IsLowStock != nil {
		fields[models.FieldIsLowStock] = *in.IsLowStock
	}
	if len(fields) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "nothing to update")
	}

	if err := s.update(ctx, models.CollectionInventory, itemID, fields); err != nil {
		return nil, err
	}
	return s.loadInventoryItem(ctx, itemID)
}

func (s *Service) DeleteInventoryItem(ctx context.Context, uid, itemID string) error {
	if _, err := s.ownInventoryItem(ctx, uid, itemID); err != nil {
		return err
	}
	return s.delete(ctx, models.CollectionInventory, itemID)
}

// ListInventory returns the family's inventory, or only the items running
// low when lowStockOnly is set.
func (s *Service) ListInventory(ctx context.Context, uid string, lowStockOnly bool) ([]models.InventoryItem, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}

	var where []repository.Condition
	if lowStockOnly {
		where = append(where, repository.Condition{Field: models.FieldIsLowStock, Value: true})
	}
	items, err := s.inventory.ListByFamily(ctx, *user.FamilyID, where...)
	if err != nil {
		return nil, s.storageError("list inventory", err)
	}
	return items, nil
}

func (s *Service) ownInventoryItem(ctx context.Context, uid, itemID string) (*models.InventoryItem, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}
	item, err := s.inventory.GetByID(ctx, itemID)
	if err != nil {
		return nil, s.storageError("load inventory item", err)
	}
	if item == nil || item.FamilyID != *user.FamilyID {
		return nil, notFound(models.CollectionInventory)
	}
	return item, nil
}

func (s *Service) loadInventoryItem(ctx context.Context, itemID string) (*models.InventoryItem, error) {
	item, err := s.inventory.GetByID(ctx, itemID)
	if err != nil {
		return nil, s.storageError("load inventory item", err)
	}
	if item == nil {
		return nil, notFound(models.CollectionInventory)
	}
	return item, nil
}
