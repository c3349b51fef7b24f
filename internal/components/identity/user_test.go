package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
)

func TestMemoryPartyRepo(t *testing.T) {
	repo := identity.NewMemoryPartyRepo()
	ctx := context.Background()

	alice := &identity.User{Username: "alice", Email: "Alice@Example.com", PasswordHash: "h", Role: identity.RoleUser}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id, err := uuid.Parse(alice.ID)
	if err != nil || id.Version() != 7 {
		t.Errorf("expected a UUIDv7 id, got %q", alice.ID)
	}
	if alice.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil || got.ID != alice.ID {
		t.Fatalf("GetByUsername = %v, %v", got, err)
	}

	// returned users are copies
	got.DisplayName = "mutated"
	again, _ := repo.Get(ctx, alice.ID)
	if again.DisplayName == "mutated" {
		t.Error("repo returned a shared pointer")
	}

	if err := repo.Create(ctx, &identity.User{Username: "alice"}); !errors.Is(err, identity.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
	if err := repo.Create(ctx, &identity.User{Username: "alice2", Email: " alice@example.COM "}); !errors.Is(err, identity.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	again.DisplayName = "Alice A."
	again.Username = "renamed"
	if err := repo.Update(ctx, again); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	updated, _ := repo.Get(ctx, alice.ID)
	if updated.DisplayName != "Alice A." || updated.Username != "alice" {
		t.Errorf("unexpected update result %+v", updated)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := repo.Update(ctx, &identity.User{ID: "missing"}); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on update, got %v", err)
	}

	users, _ := repo.List(ctx)
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}
}
