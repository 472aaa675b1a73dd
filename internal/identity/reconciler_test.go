package identity

import (
	"context"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chefmate/auth-service/internal/domain"
	"github.com/chefmate/auth-service/internal/oauth"
)

// fakeRepo mimics the store's uniqueness constraints in memory.
type fakeRepo struct {
	users  []*domain.User
	writes int

	// when set, the next insert fails with ErrDuplicateUser once and the
	// given user becomes visible, simulating a lost concurrent-insert race
	raceWinner *domain.User
}

func (f *fakeRepo) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID.Hex() == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindUserByProviderIdentity(_ context.Context, provider, externalID string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Provider == provider && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SaveUser(_ context.Context, u *domain.User) error {
	if u.ID.IsZero() && f.raceWinner != nil {
		winner := f.raceWinner
		f.raceWinner = nil
		f.users = append(f.users, winner)
		return fmt.Errorf("insert: %w", domain.ErrDuplicateUser)
	}
	for _, ex := range f.users {
		if ex.ID != u.ID && ex.Username == u.Username {
			return fmt.Errorf("username index: %w", domain.ErrDuplicateUser)
		}
		if ex.ID != u.ID && ex.Provider == u.Provider && ex.ExternalID == u.ExternalID {
			return fmt.Errorf("identity index: %w", domain.ErrDuplicateUser)
		}
	}
	f.writes++
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
		cp := *u
		f.users = append(f.users, &cp)
		return nil
	}
	for i, ex := range f.users {
		if ex.ID == u.ID {
			cp := *u
			f.users[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("no such user %s", u.ID.Hex())
}

func profile(provider, id, name, picture string) *oauth.NormalizedProfile {
	return &oauth.NormalizedProfile{
		Provider:    provider,
		ProviderID:  id,
		DisplayName: name,
		PictureURL:  picture,
		Email:       name + "@example.com",
	}
}

func TestReconcileCreatesUserOnce(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo)
	ctx := context.Background()
	p := profile("google", "g-1", "chef", "http://img/1.jpg")

	u, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !created {
		t.Fatal("first reconcile must create")
	}
	if u.Username != "chef" || u.Provider != "google" || u.ExternalID != "g-1" {
		t.Fatalf("user: %+v", u)
	}
	if u.PasswordHash == "" {
		t.Fatal("federated user must carry an unusable password hash")
	}
	if repo.writes != 1 {
		t.Fatalf("writes=%d", repo.writes)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo)
	ctx := context.Background()
	p := profile("google", "g-1", "chef", "http://img/1.jpg")

	if _, _, err := r.Reconcile(ctx, p); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		u, created, err := r.Reconcile(ctx, p)
		if err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
		if created {
			t.Fatalf("reconcile %d created a second row", i)
		}
		if u == nil {
			t.Fatalf("reconcile %d returned nil user", i)
		}
	}
	if len(repo.users) != 1 {
		t.Fatalf("rows=%d", len(repo.users))
	}
	if repo.writes != 1 {
		t.Fatalf("repeat reconcile must be read-only, writes=%d", repo.writes)
	}
}

func TestReconcileCollisionDisambiguation(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo)
	ctx := context.Background()

	first, _, err := r.Reconcile(ctx, profile("google", "g-1", "chef", ""))
	if err != nil {
		t.Fatal(err)
	}

	second, created, err := r.Reconcile(ctx, profile("kakao", "k-9", "chef", ""))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !created {
		t.Fatal("expected a new user")
	}
	if second.Username != "chef_k-9" {
		t.Fatalf("disambiguated username: %q", second.Username)
	}

	still, _ := repo.FindUserByID(ctx, first.ID.Hex())
	if still.Username != "chef" {
		t.Fatalf("first user's username must be untouched, got %q", still.Username)
	}
}

func TestReconcileMergesChangedFields(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo)
	ctx := context.Background()

	u, _, err := r.Reconcile(ctx, profile("kakao", "k-1", "min", "http://img/old.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	email := u.Email

	p := profile("kakao", "k-1", "min", "http://img/new.jpg")
	p.Email = "different@example.com" // email is not part of the merge
	merged, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if created {
		t.Fatal("merge must not create")
	}
	if merged.ProfileImage != "http://img/new.jpg" {
		t.Fatalf("profile image: %q", merged.ProfileImage)
	}
	if merged.Username != "min" || merged.Email != email {
		t.Fatalf("merge touched unrelated fields: %+v", merged)
	}
	if repo.writes != 2 {
		t.Fatalf("writes=%d", repo.writes)
	}
}

func TestReconcileNeverOverwritesWithEmpty(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo)
	ctx := context.Background()

	if _, _, err := r.Reconcile(ctx, profile("kakao", "k-1", "min", "http://img/a.jpg")); err != nil {
		t.Fatal(err)
	}

	u, _, err := r.Reconcile(ctx, profile("kakao", "k-1", "min", ""))
	if err != nil {
		t.Fatal(err)
	}
	if u.ProfileImage != "http://img/a.jpg" {
		t.Fatalf("empty incoming picture cleared stored value: %q", u.ProfileImage)
	}
	if repo.writes != 1 {
		t.Fatalf("writes=%d", repo.writes)
	}
}

func TestReconcileLostInsertRaceAdoptsWinner(t *testing.T) {
	winner := &domain.User{
		ID:         primitive.NewObjectID(),
		Username:   "chef",
		Provider:   "google",
		ExternalID: "g-1",
	}
	repo := &fakeRepo{raceWinner: winner}
	r := NewReconciler(repo)

	u, created, err := r.Reconcile(context.Background(), profile("google", "g-1", "chef", ""))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if created {
		t.Fatal("losing the race must not report a creation")
	}
	if u.ID != winner.ID {
		t.Fatalf("must adopt the winner row, got %+v", u)
	}
	if len(repo.users) != 1 {
		t.Fatalf("rows=%d", len(repo.users))
	}
}

func TestReconcileUsernameRaceRetriesWithSuffix(t *testing.T) {
	// "chef" gets claimed between the availability check and the insert
	repo := &fakeRepo{}
	r := NewReconciler(repo)
	ctx := context.Background()

	squatter := &domain.User{Username: "chef", Provider: "local", ExternalID: "x"}
	repo.raceWinner = squatter

	u, created, err := r.Reconcile(ctx, profile("google", "g-1", "chef", ""))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !created {
		t.Fatal("expected a creation")
	}
	if u.Username != "chef_g-1" {
		t.Fatalf("username: %q", u.Username)
	}
}
