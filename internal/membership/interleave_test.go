package membership

import (
	"context"
	"reflect"
	"testing"

	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
)

// hook runs fn once, the first time it is fired.
type hook struct {
	fn func()
}

func (h *hook) fire() {
	if h.fn == nil {
		return
	}
	fn := h.fn
	h.fn = nil
	fn()
}

// pausingFamilies lets another request run right after a family read, so
// it lands between an operation's read and its commit.
type pausingFamilies struct {
	repository.FamilyRepository
	after *hook
}

func (p pausingFamilies) GetByID(ctx context.Context, familyID string) (*models.FamilyRecord, error) {
	fam, err := p.FamilyRepository.GetByID(ctx, familyID)
	p.after.fire()
	return fam, err
}

func (p pausingFamilies) ListByInviteCode(ctx context.Context, code string) ([]models.FamilyRecord, error) {
	fams, err := p.FamilyRepository.ListByInviteCode(ctx, code)
	p.after.fire()
	return fams, err
}

func (p pausingFamilies) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	ok, err := p.FamilyRepository.InviteCodeExists(ctx, code)
	p.after.fire()
	return ok, err
}

type pausingUsers struct {
	repository.UserRepository
	after *hook
}

func (p pausingUsers) GetByID(ctx context.Context, uid string) (*models.UserRecord, error) {
	u, err := p.UserRepository.GetByID(ctx, uid)
	p.after.fire()
	return u, err
}

// racingService returns a second service over the fixture's store whose
// next family read runs between.
func (f *fixture) racingService(between func()) *Service {
	return NewService(
		f.store,
		repository.NewUserStore(f.store),
		pausingFamilies{FamilyRepository: repository.NewFamilyStore(f.store), after: &hook{fn: between}},
		zap.NewNop(),
	)
}

func (f *fixture) familiesHeadedBy(t *testing.T, uid string) []docstore.Document {
	t.Helper()
	docs, err := f.store.Query(context.Background(), docstore.Collection(models.CollectionFamilies).Where(models.FieldHead, uid))
	if err != nil {
		t.Fatalf("query families: %v", err)
	}
	return docs
}

func TestLeaveFamily_JoinBeforeDisbandCommits(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addUser(t, "h", "h@example.com")
	f.addUser(t, "j", "j@example.com")

	code, fam, err := f.svc.CreateFamily(ctx, "h", "Hs")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	leaver := f.racingService(func() {
		if _, err := f.svc.JoinFamily(ctx, "j", code); err != nil {
			t.Errorf("join during leave: %v", err)
		}
	})
	assertCode(t, leaver.LeaveFamily(ctx, "h"), apperr.CodeConflict)

	stored := f.family(t, fam.ID)
	if stored == nil {
		t.Fatal("family was deleted under a new member")
	}
	if !reflect.DeepEqual(stored.Members, []string{"h", "j"}) {
		t.Fatalf("members = %v, want [h j]", stored.Members)
	}
	if got := familyIDOf(f.user(t, "h")); got != fam.ID {
		t.Fatalf("head familyId = %q, want %q", got, fam.ID)
	}
	if got := familyIDOf(f.user(t, "j")); got != fam.ID {
		t.Fatalf("joiner familyId = %q, want %q", got, fam.ID)
	}

	// Retrying sees the new member.
	assertCode(t, f.svc.LeaveFamily(ctx, "h"), apperr.CodeForbidden)
}

func TestLeaveFamily_DisbandWithoutInterference(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addUser(t, "h", "h@example.com")

	_, fam, err := f.svc.CreateFamily(ctx, "h", "Hs")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A read-only request in between does not stop the disband.
	leaver := f.racingService(func() {
		if _, err := f.svc.GetFamily(ctx, "h"); err != nil {
			t.Errorf("get family: %v", err)
		}
	})
	if err := leaver.LeaveFamily(ctx, "h"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := f.family(t, fam.ID); got != nil {
		t.Fatalf("family still exists: %+v", got)
	}
}

func TestCreateFamily_ConcurrentCreateBySameUser(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addUser(t, "a", "a@example.com")

	var winner *models.FamilyRecord
	creator := f.racingService(func() {
		_, fam, err := f.svc.CreateFamily(ctx, "a", "Second")
		if err != nil {
			t.Errorf("create during create: %v", err)
		}
		winner = fam
	})
	_, _, err := creator.CreateFamily(ctx, "a", "First")
	assertCode(t, err, apperr.CodeAlreadyInFamily)

	if winner == nil {
		t.Fatal("interleaved create did not run")
	}
	docs := f.familiesHeadedBy(t, "a")
	if len(docs) != 1 || docs[0].Key != winner.ID {
		t.Fatalf("families headed by a = %v, want only %s", docs, winner.ID)
	}
	if got := familyIDOf(f.user(t, "a")); got != winner.ID {
		t.Fatalf("familyId = %q, want %q", got, winner.ID)
	}
}

func TestJoinFamily_ConcurrentJoinBySameUser(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addUser(t, "h1", "h1@example.com")
	f.addUser(t, "h2", "h2@example.com")
	f.addUser(t, "j", "j@example.com")

	code1, fam1, err := f.svc.CreateFamily(ctx, "h1", "One")
	if err != nil {
		t.Fatalf("create one: %v", err)
	}
	code2, fam2, err := f.svc.CreateFamily(ctx, "h2", "Two")
	if err != nil {
		t.Fatalf("create two: %v", err)
	}

	joiner := f.racingService(func() {
		if _, err := f.svc.JoinFamily(ctx, "j", code2); err != nil {
			t.Errorf("join during join: %v", err)
		}
	})
	_, err = joiner.JoinFamily(ctx, "j", code1)
	assertCode(t, err, apperr.CodeAlreadyInFamily)

	if got := f.family(t, fam1.ID).Members; !reflect.DeepEqual(got, []string{"h1"}) {
		t.Fatalf("family one members = %v, want [h1]", got)
	}
	if got := f.family(t, fam2.ID).Members; !reflect.DeepEqual(got, []string{"h2", "j"}) {
		t.Fatalf("family two members = %v, want [h2 j]", got)
	}
	if got := familyIDOf(f.user(t, "j")); got != fam2.ID {
		t.Fatalf("familyId = %q, want %q", got, fam2.ID)
	}
}

func TestRemoveMember_TargetMovedBeforeCommit(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addUser(t, "h1", "h1@example.com")
	f.addUser(t, "h2", "h2@example.com")
	f.addUser(t, "m", "m@example.com")

	code1, fam1, err := f.svc.CreateFamily(ctx, "h1", "One")
	if err != nil {
		t.Fatalf("create one: %v", err)
	}
	code2, fam2, err := f.svc.CreateFamily(ctx, "h2", "Two")
	if err != nil {
		t.Fatalf("create two: %v", err)
	}
	if _, err := f.svc.JoinFamily(ctx, "m", code1); err != nil {
		t.Fatalf("join one: %v", err)
	}

	// After the head's service reads m, m moves to family two.
	remover := NewService(
		f.store,
		pausingUsers{UserRepository: repository.NewUserStore(f.store), after: &hook{fn: func() {
			if err := f.svc.LeaveFamily(ctx, "m"); err != nil {
				t.Errorf("leave: %v", err)
			}
			if _, err := f.svc.JoinFamily(ctx, "m", code2); err != nil {
				t.Errorf("join two: %v", err)
			}
		}}},
		repository.NewFamilyStore(f.store),
		zap.NewNop(),
	)
	assertCode(t, remover.RemoveMember(ctx, "h1", "m", fam1.ID), apperr.CodeConflict)

	if got := familyIDOf(f.user(t, "m")); got != fam2.ID {
		t.Fatalf("m familyId = %q, want %q", got, fam2.ID)
	}
	if got := f.family(t, fam2.ID).Members; !reflect.DeepEqual(got, []string{"h2", "m"}) {
		t.Fatalf("family two members = %v, want [h2 m]", got)
	}
	if got := f.family(t, fam1.ID).Members; !reflect.DeepEqual(got, []string{"h1"}) {
		t.Fatalf("family one members = %v, want [h1]", got)
	}
}
