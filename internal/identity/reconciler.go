// Package identity maps provider identities onto local user records.
package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chefmate/auth-service/internal/domain"
	"github.com/chefmate/auth-service/internal/log"
	"github.com/chefmate/auth-service/internal/oauth"
	"github.com/chefmate/auth-service/internal/security"
)

// UserRepository is the slice of the user store reconciliation needs. The
// mongo-backed *repo.Store satisfies it; tests plug in an in-memory fake.
type UserRepository interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByProviderIdentity(ctx context.Context, provider, externalID string) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error
}

// Reconciler upserts the local user for a normalized provider profile.
type Reconciler struct {
	users UserRepository
}

func NewReconciler(users UserRepository) *Reconciler {
	return &Reconciler{users: users}
}

// Reconcile finds or creates the user for p. created reports whether a new
// row was written.
//
// Existing users get a per-field merge: username and profile image are
// updated only when the incoming value is present and different, and nothing
// is written when nothing changed, so repeating a login with an unchanged
// profile is a read-only operation. A display name already owned by another
// user is disambiguated with a provider-id suffix instead of failing.
//
// First-time logins race to the store's unique index on
// (provider, external_id): the loser of a concurrent insert re-queries and
// adopts the row the winner wrote.
func (r *Reconciler) Reconcile(ctx context.Context, p *oauth.NormalizedProfile) (u *domain.User, created bool, err error) {
	u, err = r.users.FindUserByProviderIdentity(ctx, p.Provider, p.ProviderID)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, r.merge(ctx, u, p)
	}

	u, err = r.create(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (r *Reconciler) merge(ctx context.Context, u *domain.User, p *oauth.NormalizedProfile) error {
	changed := false

	if p.DisplayName != "" && p.DisplayName != u.Username {
		name, err := r.availableUsername(ctx, p.DisplayName, p.ProviderID, u)
		if err != nil {
			return err
		}
		if name != u.Username {
			u.Username = name
			changed = true
		}
	}
	if p.PictureURL != "" && p.PictureURL != u.ProfileImage {
		u.ProfileImage = p.PictureURL
		changed = true
	}

	if !changed {
		return nil
	}
	return r.users.SaveUser(ctx, u)
}

func (r *Reconciler) create(ctx context.Context, p *oauth.NormalizedProfile) (*domain.User, error) {
	name, err := r.availableUsername(ctx, p.DisplayName, p.ProviderID, nil)
	if err != nil {
		return nil, err
	}
	hash, err := security.FederatedPasswordHash()
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Username:     name,
		Email:        p.Email,
		PasswordHash: hash,
		Provider:     p.Provider,
		ExternalID:   p.ProviderID,
		ProfileImage: p.PictureURL,
	}

	err = r.users.SaveUser(ctx, u)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrDuplicateUser) {
		return nil, err
	}

	// Lost an insert race. If the identity is visible now another request
	// created the same user; adopt that row.
	if w, ferr := r.users.FindUserByProviderIdentity(ctx, p.Provider, p.ProviderID); ferr == nil && w != nil {
		log.L.Info("concurrent signup resolved",
			zap.String("provider", p.Provider), zap.String("external_id", p.ProviderID))
		return w, nil
	}

	// Otherwise the violation was on username: someone claimed the name
	// between our check and the insert. Retry once with the suffixed name.
	suffixed := p.DisplayName + "_" + p.ProviderID
	if u.Username == suffixed {
		return nil, err
	}
	u.Username = suffixed
	if err := r.users.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("reconcile retry: %w", err)
	}
	return u, nil
}

// availableUsername resolves a username collision with a different user by
// appending the provider id. self ownership of the name is not a collision.
func (r *Reconciler) availableUsername(ctx context.Context, want, providerID string, self *domain.User) (string, error) {
	owner, err := r.users.FindUserByUsername(ctx, want)
	if err != nil {
		return "", err
	}
	if owner == nil || (self != nil && owner.ID == self.ID) {
		return want, nil
	}
	return want + "_" + providerID, nil
}
