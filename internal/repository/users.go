package repository

import (
	"context"
	"slices"
	"strings"

	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
)

type UserStore struct {
	users typedCollection[models.UserRecord]
}

func NewUserStore(store docstore.Store) *UserStore {
	return &UserStore{users: typedCollection[models.UserRecord]{store, models.CollectionUsers, models.DecodeUser}}
}

func (s *UserStore) GetByID(ctx context.Context, uid string) (*models.UserRecord, error) {
	return s.users.get(ctx, uid)
}

// ListByIDs looks each user up by key. Member lists are small, so this
// stays a handful of point reads.
func (s *UserStore) ListByIDs(ctx context.Context, uids []string) ([]models.UserRecord, error) {
	sorted := slices.Clone(uids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	users := make([]models.UserRecord, 0, len(sorted))
	for _, uid := range sorted {
		u, err := s.users.get(ctx, uid)
		if err != nil {
			return nil, err
		}
		if u != nil {
			users = append(users, *u)
		}
	}
	return users, nil
}

type CredentialStore struct {
	credentials typedCollection[models.Credential]
}

func NewCredentialStore(store docstore.Store) *CredentialStore {
	return &CredentialStore{credentials: typedCollection[models.Credential]{store, models.CollectionCredentials, models.DecodeCredential}}
}

// CredentialKey is the document key for an email address.
func CredentialKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	return s.credentials.get(ctx, CredentialKey(email))
}
