package identity_test

import (
	"context"
	"testing"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
)

func TestBootstrap_Run(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryPartyRepo()
	auth := identity.NewUserAuthFast()
	b := identity.NewBootstrap(repo, auth, nil)

	seeded := []identity.SeededUser{
		{Username: "alice", Password: "alicepass"},
		{Username: "bob", Password: "bobpass", DisplayName: "Bob"},
	}

	n, err := b.Run(ctx, seeded)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 2 {
		t.Errorf("created %d users, want 2", n)
	}

	alice, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if alice.Role != identity.RoleUser || alice.DisplayName != "alice" {
		t.Errorf("unexpected seeded user %+v", alice)
	}
	if _, err := auth.Authenticate(ctx, repo, "bob", "bobpass"); err != nil {
		t.Errorf("seeded user cannot log in: %v", err)
	}

	n, err = b.Run(ctx, seeded)
	if err != nil || n != 0 {
		t.Errorf("second run created %d users (err %v), want 0", n, err)
	}
}

func TestBootstrap_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryPartyRepo()
	auth := identity.NewUserAuthFast()
	b := identity.NewBootstrap(repo, auth, nil)

	if err := b.EnsureAdmin(ctx, "", "first-pass", false); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	admin, err := auth.Authenticate(ctx, repo, "admin", "first-pass")
	if err != nil {
		t.Fatalf("admin cannot log in: %v", err)
	}
	if !admin.IsAdmin() {
		t.Error("expected admin role")
	}

	// no rotation without the flag
	if err := b.EnsureAdmin(ctx, "admin", "second-pass", false); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Authenticate(ctx, repo, "admin", "first-pass"); err != nil {
		t.Error("password changed without rotate")
	}

	if err := b.EnsureAdmin(ctx, "admin", "second-pass", true); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Authenticate(ctx, repo, "admin", "second-pass"); err != nil {
		t.Error("password was not rotated")
	}

	users, _ := repo.List(ctx)
	if len(users) != 1 {
		t.Errorf("expected exactly one admin, got %d users", len(users))
	}
}

func TestBootstrap_EnsureAdmin_GeneratesPassword(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryPartyRepo()
	b := identity.NewBootstrap(repo, identity.NewUserAuthFast(), nil)

	if err := b.EnsureAdmin(ctx, "root", "", false); err != nil {
		t.Fatal(err)
	}
	root, err := repo.GetByUsername(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if root.PasswordHash == "" {
		t.Error("expected a password hash")
	}
}
