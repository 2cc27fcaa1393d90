package repository

import (
	"context"

	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
)

type FamilyStore struct {
	families typedCollection[models.FamilyRecord]
}

func NewFamilyStore(store docstore.Store) *FamilyStore {
	return &FamilyStore{families: typedCollection[models.FamilyRecord]{store, models.CollectionFamilies, models.DecodeFamily}}
}

func (s *FamilyStore) GetByID(ctx context.Context, familyID string) (*models.FamilyRecord, error) {
	return s.families.get(ctx, familyID)
}

func (s *FamilyStore) ListByInviteCode(ctx context.Context, code string) ([]models.FamilyRecord, error) {
	return s.families.query(ctx, docstore.Collection(models.CollectionFamilies).Where(models.FieldInviteCode, code))
}

func (s *FamilyStore) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	q := docstore.Collection(models.CollectionFamilies).Where(models.FieldInviteCode, code)
	q.Limit = 1
	docs, err := s.families.store.Query(ctx, q)
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}
