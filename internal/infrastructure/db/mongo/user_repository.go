package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

const usersCollection = "users"

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection), now: time.Now}
}

type mongoUser struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Name                 string             `bson:"name"`
	Email                string             `bson:"email"`
	Password             string             `bson:"password"`
	Role                 string             `bson:"role"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty"`
	Active               *bool              `bson:"active,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt"`
}

// EnsureIndexes creates the unique email index and the sparse index used by
// reset-token lookups.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "passwordResetToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *UserRepository) FindOne(ctx context.Context, f domain.UserFilter) (*domain.User, error) {
	filter, ok := buildFilter(f)
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := fromDomain(user)
	now := r.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

// Update applies upd to the single document matching f and returns it as
// stored afterwards. Filter and update run as one server-side operation.
func (r *UserRepository) Update(ctx context.Context, f domain.UserFilter, upd domain.UserUpdate) (*domain.User, error) {
	filter, ok := buildFilter(f)
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var mu mongoUser
	err := r.coll.FindOneAndUpdate(ctx, filter, buildUpdate(upd, r.now().UTC()), opts).Decode(&mu)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, domain.ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return mu.toDomain(), nil
}

// buildFilter translates f into a query document. It reports false when the
// filter cannot match anything, such as an id that is not an ObjectID.
func buildFilter(f domain.UserFilter) (bson.M, bool) {
	filter := bson.M{}
	if f.ID != "" {
		oid, err := primitive.ObjectIDFromHex(f.ID)
		if err != nil {
			return nil, false
		}
		filter["_id"] = oid
	}
	if f.Email != "" {
		filter["email"] = f.Email
	}
	if f.ResetTokenHash != "" {
		filter["passwordResetToken"] = f.ResetTokenHash
	}
	if !f.ResetValidAt.IsZero() {
		filter["passwordResetExpires"] = bson.M{"$gt": f.ResetValidAt.UTC()}
	}
	if f.ActiveOnly {
		// Documents written before the field existed count as active.
		filter["active"] = bson.M{"$ne": false}
	}
	return filter, true
}

func buildUpdate(upd domain.UserUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	unset := bson.M{}

	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
	}
	if upd.PasswordChangedAt != nil {
		set["passwordChangedAt"] = upd.PasswordChangedAt.UTC()
	}
	if upd.Reset != nil {
		set["passwordResetToken"] = upd.Reset.TokenHash
		set["passwordResetExpires"] = upd.Reset.ExpiresAt.UTC()
	}
	if upd.ClearReset {
		unset["passwordResetToken"] = ""
		unset["passwordResetExpires"] = ""
	}
	if upd.Active != nil {
		set["active"] = *upd.Active
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func fromDomain(u *domain.User) mongoUser {
	doc := mongoUser{
		Name:              u.Name,
		Email:             u.Email,
		Password:          u.PasswordHash,
		Role:              string(u.Role),
		PasswordChangedAt: u.PasswordChangedAt,
		Active:            &u.Active,
		CreatedAt:         u.CreatedAt.UTC(),
		UpdatedAt:         u.UpdatedAt.UTC(),
	}
	if u.ID != "" {
		if oid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			doc.ID = oid
		}
	}
	if u.Reset != nil {
		exp := u.Reset.ExpiresAt.UTC()
		doc.PasswordResetToken = u.Reset.TokenHash
		doc.PasswordResetExpires = &exp
	}
	return doc
}

func (mu mongoUser) toDomain() *domain.User {
	u := &domain.User{
		ID:           mu.ID.Hex(),
		Name:         mu.Name,
		Email:        mu.Email,
		PasswordHash: mu.Password,
		Role:         domain.Role(mu.Role),
		Active:       mu.Active == nil || *mu.Active,
		CreatedAt:    mu.CreatedAt.UTC(),
		UpdatedAt:    mu.UpdatedAt.UTC(),
	}
	if mu.PasswordChangedAt != nil {
		t := mu.PasswordChangedAt.UTC()
		u.PasswordChangedAt = &t
	}
	if mu.PasswordResetToken != "" && mu.PasswordResetExpires != nil {
		u.Reset = &domain.ResetState{TokenHash: mu.PasswordResetToken, ExpiresAt: mu.PasswordResetExpires.UTC()}
	}
	return u
}
