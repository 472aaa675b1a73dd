package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/chefmate/auth-service/internal/domain"
)

const usersCollection = "users"

// EnsureUserIndexes creates the constraints reconciliation relies on:
// username is globally unique, and (provider, external_id) names at most one
// user. Concurrent first logins race to these indexes, not to app-level locks.
func (s *Store) EnsureUserIndexes(ctx context.Context) error {
	coll := s.DB.Collection(usersCollection)

	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) FindUserByProviderIdentity(ctx context.Context, provider, externalID string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"provider": provider, "external_id": externalID})
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := s.DB.Collection(usersCollection).FindOne(ctx, filter).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser inserts u when it has no id yet, otherwise replaces the stored
// document in a single write. Unique-index violations come back as
// domain.ErrDuplicateUser so callers can run the insert-or-fetch pattern.
func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.save",
		tracer.Tag("provider", u.Provider),
	)
	defer sp.Finish()

	coll := s.DB.Collection(usersCollection)
	now := time.Now().UTC()
	u.UpdatedAt = now

	if u.ID.IsZero() {
		u.CreatedAt = now
		res, err := coll.InsertOne(ctx, u)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %v", domain.ErrDuplicateUser, err)
			}
			sp.SetTag("error", err)
			return err
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			u.ID = oid
		}
		return nil
	}

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateUser, err)
		}
		sp.SetTag("error", err)
	}
	return err
}
