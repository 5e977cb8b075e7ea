package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/tour-booking/internal/core/domain"
)

func TestBuildFilter_ActiveOnly(t *testing.T) {
	oid := primitive.NewObjectID()
	filter, ok := buildFilter(domain.UserFilter{ID: oid.Hex(), ActiveOnly: true})
	if !ok {
		t.Fatalf("expected filter to be buildable")
	}
	if filter["_id"] != oid {
		t.Fatalf("unexpected _id: %v", filter["_id"])
	}
	active, ok := filter["active"].(bson.M)
	if !ok || active["$ne"] != false {
		t.Fatalf("expected active $ne false, got %v", filter["active"])
	}
}

func TestBuildFilter_InvalidID(t *testing.T) {
	if _, ok := buildFilter(domain.UserFilter{ID: "not-hex"}); ok {
		t.Fatalf("expected invalid id to be unmatchable")
	}
}

func TestBuildFilter_ResetWindow(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	filter, _ := buildFilter(domain.UserFilter{ResetTokenHash: "digest", ResetValidAt: at})

	if filter["passwordResetToken"] != "digest" {
		t.Fatalf("unexpected token filter: %v", filter["passwordResetToken"])
	}
	exp, ok := filter["passwordResetExpires"].(bson.M)
	if !ok || exp["$gt"] != at {
		t.Fatalf("expected expiry $gt %v, got %v", at, filter["passwordResetExpires"])
	}
	if _, present := filter["active"]; present {
		t.Fatalf("active predicate must only appear when requested")
	}
}

func TestBuildUpdate_SetAndClear(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hash := "new-hash"
	update := buildUpdate(domain.UserUpdate{PasswordHash: &hash, PasswordChangedAt: &now, ClearReset: true}, now)

	set := update["$set"].(bson.M)
	if set["password"] != hash || set["passwordChangedAt"] != now || set["updatedAt"] != now {
		t.Fatalf("unexpected $set: %v", set)
	}
	unset, ok := update["$unset"].(bson.M)
	if !ok {
		t.Fatalf("expected $unset")
	}
	if _, ok := unset["passwordResetToken"]; !ok {
		t.Fatalf("expected reset token to be unset")
	}
	if _, ok := unset["passwordResetExpires"]; !ok {
		t.Fatalf("expected reset expiry to be unset")
	}
}

func TestBuildUpdate_Reset(t *testing.T) {
	now := time.Now().UTC()
	exp := now.Add(10 * time.Minute)
	update := buildUpdate(domain.UserUpdate{Reset: &domain.ResetState{TokenHash: "d", ExpiresAt: exp}}, now)

	set := update["$set"].(bson.M)
	if set["passwordResetToken"] != "d" || set["passwordResetExpires"] != exp {
		t.Fatalf("unexpected $set: %v", set)
	}
	if _, ok := update["$unset"]; ok {
		t.Fatalf("did not expect $unset")
	}
}

func TestMongoUser_RoundTrip(t *testing.T) {
	changed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	u := &domain.User{
		ID:                primitive.NewObjectID().Hex(),
		Name:              "Ana",
		Email:             "ana@example.com",
		PasswordHash:      "hash",
		Role:              domain.RoleGuide,
		PasswordChangedAt: &changed,
		Reset:             &domain.ResetState{TokenHash: "d", ExpiresAt: changed.Add(time.Minute)},
		Active:            true,
	}

	got := fromDomain(u).toDomain()
	if got.ID != u.ID || got.Email != u.Email || got.Role != u.Role || !got.Active {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if got.PasswordChangedAt == nil || !got.PasswordChangedAt.Equal(changed) {
		t.Fatalf("unexpected passwordChangedAt: %v", got.PasswordChangedAt)
	}
	if got.Reset == nil || got.Reset.TokenHash != "d" {
		t.Fatalf("unexpected reset: %+v", got.Reset)
	}
}

func TestMongoUser_MissingActiveMeansActive(t *testing.T) {
	if !(mongoUser{}).toDomain().Active {
		t.Fatalf("documents without an active field must be treated as active")
	}
}
