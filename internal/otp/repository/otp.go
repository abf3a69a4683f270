package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	otperrors "serveq/internal/otp/errors"
	"serveq/pkg/config"
	"serveq/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Passcodes"
)

type mongoOtpRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type OtpRepository interface {
	Put(ctx context.Context, record *model.OtpRecord) error
	FindByIdentity(ctx context.Context, identity string) (*model.OtpRecord, error)
	MarkVerified(ctx context.Context, identity, code string) error
	MarkUsed(ctx context.Context, identity string) error
}

func NewMongoOtpRepository(cfg *config.Config) OtpRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOtpRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoOtpRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// Put replaces any previous passcode for the identity. Keying the collection
// by identity guarantees at most one live passcode per identity.
func (r *mongoOtpRepository) Put(ctx context.Context, record *model.OtpRecord) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": record.Identity}
	opts := options.Replace().SetUpsert(true)

	if _, err := r.collection.ReplaceOne(ctx, filter, record, opts); err != nil {
		return fmt.Errorf("failed to store passcode: %w", err)
	}
	return nil
}

func (r *mongoOtpRepository) FindByIdentity(ctx context.Context, identity string) (*model.OtpRecord, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var record model.OtpRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": identity}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, otperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find passcode: %w", err)
	}

	return &record, nil
}

// MarkVerified flips a pending passcode to verified. The status guard in the
// filter makes the transition one-shot: a concurrent verify that got there
// first leaves nothing to match, and the loser gets ErrAlreadyConsumed.
func (r *mongoOtpRepository) MarkVerified(ctx context.Context, identity, code string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    identity,
		"code":   code,
		"status": model.OtpStatusPending,
	}
	update := bson.M{"$set": bson.M{"status": model.OtpStatusVerified}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark passcode verified: %w", err)
	}
	if result.MatchedCount == 0 {
		return otperrors.ErrAlreadyConsumed
	}
	return nil
}

// MarkUsed retires a verified passcode once a reservation lands on it.
func (r *mongoOtpRepository) MarkUsed(ctx context.Context, identity string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    identity,
		"status": model.OtpStatusVerified,
	}
	update := bson.M{"$set": bson.M{"status": model.OtpStatusUsed}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark passcode used: %w", err)
	}
	if result.MatchedCount == 0 {
		return otperrors.ErrNotVerified
	}
	return nil
}
