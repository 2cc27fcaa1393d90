// Package membership keeps users and families consistent with each other.
//
// A user belongs to at most one family. The link is stored twice: as
// familyId on users/{uid} and as an entry in families/{id}.members. Every
// operation here writes both sides in one docstore.Batch, so either both
// change or neither does. The members array is only ever changed with
// ArrayUnion and ArrayRemove; concurrent joins and removals commute.
package membership

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

// DefaultInviteCodeAttempts bounds how many codes CreateFamily draws while
// looking for one no family holds yet.
const DefaultInviteCodeAttempts = 5

// Conditions on users/{uid} checked when a batch commits. They keep two
// requests for the same user from both acting on a stale read.
var notInFamily = docstore.Filter{Field: models.FieldFamilyID, Value: nil}

func linkedTo(familyID string) docstore.Filter {
	return docstore.Filter{Field: models.FieldFamilyID, Value: familyID}
}

type Service struct {
	store    docstore.Store
	users    repository.UserRepository
	families repository.FamilyRepository
	logger   *zap.Logger

	newCode  func() (string, error)
	attempts int
}

type Option func(*Service)

// WithInviteCodeAttempts sets how many codes CreateFamily tries. Values
// below one mean one.
func WithInviteCodeAttempts(n int) Option {
	return func(s *Service) { s.attempts = max(n, 1) }
}

// WithCodeGenerator replaces the invite code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newCode = gen }
}

func NewService(store docstore.Store, users repository.UserRepository, families repository.FamilyRepository, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		users:    users,
		families: families,
		logger:   logger,
		newCode:  NewInviteCode,
		attempts: DefaultInviteCodeAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFamily makes selfUID the head and only member of a new family and
// returns its invite code.
func (s *Service) CreateFamily(ctx context.Context, selfUID, displayName string) (string, *models.FamilyRecord, error) {
	user, err := s.requireUser(ctx, selfUID)
	if err != nil {
		return "", nil, err
	}
	if user.InFamily() {
		return "", nil, apperr.New(apperr.CodeAlreadyInFamily, "you are already part of a family; leave it before creating a new one")
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = defaultFamilyName(user)
	}

	code, err := s.inviteCode(ctx)
	if err != nil {
		return "", nil, err
	}

	familyID := docstore.NewKey()
	batch := s.store.Batch()
	batch.Create(models.CollectionFamilies, familyID, docstore.Fields{
		models.FieldName:       name,
		models.FieldHead:       selfUID,
		models.FieldMembers:    []any{selfUID},
		models.FieldInviteCode: code,
		models.FieldCreatedAt:  docstore.ServerTimestamp(),
		models.FieldUpdatedAt:  docstore.ServerTimestamp(),
	})
	batch.UpdateIf(models.CollectionUsers, selfUID, docstore.Fields{
		models.FieldFamilyID:  familyID,
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	}, notInFamily)
	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return "", nil, apperr.Wrap(apperr.CodeAlreadyInFamily, "you are already part of a family; leave it before creating a new one", err)
		}
		return "", nil, s.storageError("create family", err, "could not create the family, please try again")
	}

	s.logger.Info("family created",
		zap.String("family_id", familyID),
		zap.String("head", selfUID),
	)

	family := &models.FamilyRecord{
		ID:         familyID,
		Name:       name,
		Head:       selfUID,
		Members:    []string{selfUID},
		InviteCode: code,
	}
	return code, family, nil
}

// JoinFamily adds selfUID to the family holding the invite code.
func (s *Service) JoinFamily(ctx context.Context, selfUID, inviteCode string) (*models.FamilyRecord, error) {
	code := NormalizeInviteCode(inviteCode)
	if code == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "please enter an invite code")
	}

	user, err := s.requireUser(ctx, selfUID)
	if err != nil {
		return nil, err
	}
	if user.InFamily() {
		return nil, apperr.New(apperr.CodeAlreadyInFamily, "you are already part of a family")
	}

	matches, err := s.families.ListByInviteCode(ctx, code)
	if err != nil {
		return nil, s.storageError("find family by invite code", err, "could not look up the invite code, please try again")
	}
	if len(matches) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInviteCode, "invalid invite code")
	}
	if len(matches) > 1 {
		s.logger.Warn("invite code held by several families, joining the first",
			zap.String("invite_code", code),
			zap.String("family_id", matches[0].ID),
			zap.Int("matches", len(matches)),
		)
	}
	family := matches[0]

	if family.HasMember(selfUID) {
		return nil, apperr.New(apperr.CodeAlreadyMember, "you are already a member of this family")
	}

	batch := s.store.Batch()
	batch.UpdateIf(models.CollectionUsers, selfUID, docstore.Fields{
		models.FieldFamilyID:  family.ID,
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	}, notInFamily)
	batch.Update(models.CollectionFamilies, family.ID, docstore.Fields{
		models.FieldMembers:   docstore.ArrayUnion(selfUID),
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	})
	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return nil, apperr.Wrap(apperr.CodeAlreadyInFamily, "you are already part of a family", err)
		}
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.Wrap(apperr.CodeInvalidInviteCode, "this family no longer exists", err)
		}
		return nil, s.storageError("join family", err, "could not join the family, please try again")
	}

	s.logger.Info("family joined",
		zap.String("family_id", family.ID),
		zap.String("user_id", selfUID),
	)

	family.Members = append(family.Members, selfUID)
	return &family, nil
}

// LeaveFamily takes selfUID out of their family.
//
// The head cannot leave while anyone else is still a member; they have to
// remove the others first. A head who is the last member disbands the
// family: the record is deleted in the same batch that clears their link,
// and only if the member set is still just the head when the batch commits.
func (s *Service) LeaveFamily(ctx context.Context, selfUID string) error {
	user, err := s.requireUser(ctx, selfUID)
	if err != nil {
		return err
	}
	if !user.InFamily() {
		return apperr.New(apperr.CodeNotInFamily, "you are not part of a family")
	}
	familyID := *user.FamilyID

	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return s.storageError("load family", err, "could not load your family, please try again")
	}
	if family == nil {
		return s.clearStaleLink(ctx, selfUID, familyID)
	}

	batch := s.store.Batch()
	disband := false
	if family.Head == selfUID {
		for _, m := range family.Members {
			if m != selfUID {
				return apperr.New(apperr.CodeForbidden, "the family head cannot leave while other members remain; remove them first")
			}
		}
		disband = true
		batch.DeleteIf(models.CollectionFamilies, familyID,
			docstore.Filter{Field: models.FieldHead, Value: selfUID},
			docstore.Filter{Field: models.FieldMembers, Value: []string{selfUID}},
		)
	} else {
		batch.Update(models.CollectionFamilies, familyID, docstore.Fields{
			models.FieldMembers:   docstore.ArrayRemove(selfUID),
			models.FieldUpdatedAt: docstore.ServerTimestamp(),
		})
	}
	batch.UpdateIf(models.CollectionUsers, selfUID, docstore.Fields{
		models.FieldFamilyID:  nil,
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	}, linkedTo(familyID))
	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return apperr.Wrap(apperr.CodeConflict, "your family changed while you were leaving, please try again", err)
		}
		return s.storageError("leave family", err, "could not leave the family, please try again")
	}

	s.logger.Info("family left",
		zap.String("family_id", familyID),
		zap.String("user_id", selfUID),
		zap.Bool("disbanded", disband),
	)
	return nil
}

// clearStaleLink drops a familyId that points at a family that no longer
// exists. The caller still gets NOT_IN_FAMILY, but can create or join a
// family afterwards.
func (s *Service) clearStaleLink(ctx context.Context, uid, familyID string) error {
	s.logger.Warn("user linked to missing family, clearing link",
		zap.String("user_id", uid),
		zap.String("family_id", familyID),
	)
	err := s.store.Update(ctx, models.CollectionUsers, uid, docstore.Fields{
		models.FieldFamilyID:  nil,
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	})
	if err != nil {
		return s.storageError("clear stale family link", err, "could not load your family, please try again")
	}
	return apperr.New(apperr.CodeNotInFamily, "your family no longer exists")
}

// RemoveMember lets the head of familyID take targetUID out of it.
func (s *Service) RemoveMember(ctx context.Context, actingUID, targetUID, familyID string) error {
	if actingUID == "" || targetUID == "" || familyID == "" {
		return apperr.New(apperr.CodeInvalidInput, "a family and a member are required")
	}

	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return s.storageError("load family", err, "could not load the family, please try again")
	}
	if family == nil {
		return apperr.New(apperr.CodeNotInFamily, "family not found")
	}
	if family.Head != actingUID {
		return apperr.New(apperr.CodeForbidden, "only the family head can remove members")
	}
	if targetUID == actingUID {
		return apperr.New(apperr.CodeInvalidInput, "you cannot remove yourself; leave the family instead")
	}
	if !family.HasMember(targetUID) {
		return apperr.New(apperr.CodeNotInFamily, "that user is not a member of this family")
	}

	target, err := s.users.GetByID(ctx, targetUID)
	if err != nil {
		return s.storageError("load member", err, "could not load the member, please try again")
	}

	batch := s.store.Batch()
	batch.Update(models.CollectionFamilies, familyID, docstore.Fields{
		models.FieldMembers:   docstore.ArrayRemove(targetUID),
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	})
	// Only clear the target's link if it still points here.
	if target != nil && target.FamilyID != nil && *target.FamilyID == familyID {
		batch.UpdateIf(models.CollectionUsers, targetUID, docstore.Fields{
			models.FieldFamilyID:  nil,
			models.FieldUpdatedAt: docstore.ServerTimestamp(),
		}, linkedTo(familyID))
	}
	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			return apperr.Wrap(apperr.CodeConflict, "that member's family changed while removing them, please try again", err)
		}
		return s.storageError("remove member", err, "could not remove the member, please try again")
	}

	s.logger.Info("member removed",
		zap.String("family_id", familyID),
		zap.String("head", actingUID),
		zap.String("member", targetUID),
	)
	return nil
}

// GetFamily returns the family selfUID belongs to.
func (s *Service) GetFamily(ctx context.Context, selfUID string) (*models.FamilyRecord, error) {
	user, err := s.requireUser(ctx, selfUID)
	if err != nil {
		return nil, err
	}
	if !user.InFamily() {
		return nil, apperr.New(apperr.CodeNotInFamily, "you are not part of a family")
	}

	family, err := s.families.GetByID(ctx, *user.FamilyID)
	if err != nil {
		return nil, s.storageError("load family", err, "could not load your family, please try again")
	}
	if family == nil {
		return nil, apperr.New(apperr.CodeNotInFamily, "your family no longer exists")
	}
	return family, nil
}

// ListMembers returns selfUID's family together with the profiles of its
// members, both from the same read of the family.
func (s *Service) ListMembers(ctx context.Context, selfUID string) (*models.FamilyRecord, []models.UserRecord, error) {
	family, err := s.GetFamily(ctx, selfUID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.users.ListByIDs(ctx, family.Members)
	if err != nil {
		return nil, nil, s.storageError("list members", err, "could not load the family members, please try again")
	}
	return family, members, nil
}

func (s *Service) requireUser(ctx context.Context, uid string) (*models.UserRecord, error) {
	if uid == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "you need to sign in first")
	}
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, s.storageError("load user", err, "could not load your profile, please try again")
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeNotFound, "your profile could not be found")
	}
	return user, nil
}

// inviteCode draws codes until one is unused or the attempts run out. The
// check is not transactional; two concurrent creations can still draw the
// same code, which JoinFamily resolves by taking the lowest family key.
func (s *Service) inviteCode(ctx context.Context) (string, error) {
	var code string
	for attempt := 1; attempt <= s.attempts; attempt++ {
		c, err := s.newCode()
		if err != nil {
			return "", s.storageError("generate invite code", err, "could not create the family, please try again")
		}
		code = c

		taken, err := s.families.InviteCodeExists(ctx, code)
		if err != nil {
			return "", s.storageError("check invite code", err, "could not create the family, please try again")
		}
		if !taken {
			return code, nil
		}
		s.logger.Debug("invite code collision", zap.String("invite_code", code), zap.Int("attempt", attempt))
	}

	s.logger.Warn("no unused invite code found, accepting a duplicate",
		zap.String("invite_code", code),
		zap.Int("attempts", s.attempts),
	)
	return code, nil
}

// storageError logs err and turns it into a STORAGE_ERROR. Errors that
// already carry a code, such as malformed documents, pass through.
func (s *Service) storageError(op string, err error, message string) error {
	s.logger.Error(op+" failed", zap.Error(err))
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Storage(message, fmt.Errorf("%s: %w", op, err))
}

func defaultFamilyName(u *models.UserRecord) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name + "'s Family"
	}
	return u.Email + "'s Family"
}
