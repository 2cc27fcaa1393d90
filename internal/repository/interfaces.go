package repository

import (
	"context"

	"github.com/lalith-99/familyhub/internal/models"
)

// Repositories are the typed read side of the document store. Every
// document they return has been through the models decoders, so callers
// never see a half-populated record.
//
// Writes do not go through here: services compose them into a single
// docstore.Batch so related documents change together.
//
// Lookups by key return nil, nil when the document does not exist.

// UserRepository reads users/{uid}.
type UserRepository interface {
	GetByID(ctx context.Context, uid string) (*models.UserRecord, error)

	// ListByIDs returns the users that exist among uids, ordered by uid.
	ListByIDs(ctx context.Context, uids []string) ([]models.UserRecord, error)
}

// FamilyRepository reads families/{id}.
type FamilyRepository interface {
	GetByID(ctx context.Context, familyID string) (*models.FamilyRecord, error)

	// ListByInviteCode returns every family holding code, ordered by key.
	// More than one result means two families drew the same code.
	ListByInviteCode(ctx context.Context, code string) ([]models.FamilyRecord, error)

	// InviteCodeExists reports whether any family holds code.
	InviteCodeExists(ctx context.Context, code string) (bool, error)
}

// CredentialRepository reads credentials/{email}.
type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
}

// ItemRepository reads one of the family-scoped item collections.
type ItemRepository[T any] interface {
	GetByID(ctx context.Context, id string) (*T, error)

	// ListByFamily returns the family's items ordered by key. Each extra
	// field/value pair narrows the result by equality.
	ListByFamily(ctx context.Context, familyID string, where ...Condition) ([]T, error)
}

// Condition is an equality condition on a document field.
type Condition struct {
	Field string
	Value any
}
