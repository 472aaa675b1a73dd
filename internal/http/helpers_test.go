package http_test

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chefmate/auth-service/internal/domain"
	api "github.com/chefmate/auth-service/internal/http"
	"github.com/chefmate/auth-service/internal/oauth"
	"github.com/chefmate/auth-service/internal/queue"
	"github.com/chefmate/auth-service/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memRepo is an in-memory user store with the same uniqueness behavior as
// the mongo-backed one.
type memRepo struct {
	users []*domain.User
}

func (m *memRepo) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID.Hex() == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) FindUserByProviderIdentity(_ context.Context, provider, externalID string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) SaveUser(_ context.Context, u *domain.User) error {
	for _, ex := range m.users {
		if ex.ID != u.ID && (ex.Username == u.Username ||
			(ex.Provider == u.Provider && ex.ExternalID == u.ExternalID)) {
			return fmt.Errorf("unique index: %w", domain.ErrDuplicateUser)
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
		u.CreatedAt = time.Now().UTC()
		cp := *u
		m.users = append(m.users, &cp)
		return nil
	}
	for i, ex := range m.users {
		if ex.ID == u.ID {
			cp := *u
			m.users[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("no such user")
}

type testEnv struct {
	Repo    *memRepo
	Tokens  *security.TokenService
	Google  *oauth.Client
	Router  *gin.Engine
	Handler *api.Handler
}

// newTestEnv wires a router against in-memory collaborators. tokenURL and
// userinfoURL usually point at an httptest server standing in for Google.
func newTestEnv(tokenURL, userinfoURL string) *testEnv {
	repo := &memRepo{}
	tokens := security.NewTokenService("test-secret", time.Minute)

	g := oauth.NewGoogle("gid", "gsecret", "http://localhost/cb")
	g.TokenURL = tokenURL
	g.UserinfoURL = userinfoURL

	h := api.NewHandler(repo, tokens, map[string]*oauth.Client{"google": g}, nil, 0, queue.NewNoop(), nil)
	return &testEnv{
		Repo:    repo,
		Tokens:  tokens,
		Google:  g,
		Router:  api.NewRouter(h),
		Handler: h,
	}
}
