package household

import (
	"context"

	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
)

type NewShoppingItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity string          `json:"quantity" validate:"required"`
	Category string          `json:"category" validate:"required"`
	Priority models.Priority `json:"priority" validate:"oneof=high medium low"`
}

func (s *Service) AddShoppingItem(ctx context.Context, uid string, in NewShoppingItem) (*models.ShoppingItem, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}

	trim(&in.Name, &in.Quantity, &in.Category)
	in.Priority = priorityOrDefault(in.Priority)
	if err := models.Validate(&in); err != nil {
		return nil, invalid(err)
	}

	key, err := s.create(ctx, models.CollectionShopping, docstore.Fields{
		"name":               in.Name,
		"quantity":           in.Quantity,
		"category":           in.Category,
		"priority":           string(in.Priority),
		models.FieldFamilyID: *user.FamilyID,
	})
	if err != nil {
		return nil, err
	}

	item, err := s.shopping.GetByID(ctx, key)
	if err != nil {
		return nil, s.storageError("load shopping item", err)
	}
	if item == nil {
		return nil, notFound(models.CollectionShopping)
	}
	return item, nil
}

// DeleteShoppingItem is also how an item gets checked off the list.
func (s *Service) DeleteShoppingItem(ctx context.Context, uid, itemID string) error {
	user, err := s.member(ctx, uid)
	if err != nil {
		return err
	}
	item, err := s.shopping.GetByID(ctx, itemID)
	if err != nil {
		return s.storageError("load shopping item", err)
	}
	if item == nil || item.FamilyID != *user.FamilyID {
		return notFound(models.CollectionShopping)
	}
	return s.delete(ctx, models.CollectionShopping, itemID)
}

func (s *Service) ListShopping(ctx context.Context, uid string) ([]models.ShoppingItem, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}
	items, err := s.shopping.ListByFamily(ctx, *user.FamilyID)
	if err != nil {
		return nil, s.storageError("list shopping", err)
	}
	return items, nil
}
