package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

const (
	auditCollection = "auth_events"
	auditRetention  = 90 * 24 * time.Hour
)

// AuditRepository implements ports.AuditLog using MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

var _ ports.AuditLog = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// EnsureIndexes expires audit entries after auditRetention and indexes them
// by user for lookups.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

// Record persists an auth event to the auth_events collection.
func (r *AuditRepository) Record(ctx context.Context, ev domain.AuthEvent) error {
	doc := bson.M{
		"type":      string(ev.Type),
		"timestamp": ev.Timestamp.UTC(),
	}
	if ev.UserID != "" {
		doc["user_id"] = ev.UserID
	}
	if ev.Email != "" {
		doc["email"] = ev.Email
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
