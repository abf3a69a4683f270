package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "serveq/internal/slots/errors"
	"serveq/pkg/config"
	"serveq/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	ReservationCollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindActiveByIdentity(ctx context.Context, identity string) (*model.Reservation, error)
	CountEarlierUnserved(ctx context.Context, reservation *model.Reservation) (int64, error)
	MarkServed(ctx context.Context, id string) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(ReservationCollectionName),
	}
}

func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) FindActiveByIdentity(ctx context.Context, identity string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"identity": identity,
		"status":   model.ReservationActive,
	}

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find active reservation: %w", err)
	}
	return &reservation, nil
}

// CountEarlierUnserved counts the active reservations queued ahead of the
// given one within its slot. Rank within the slot is the arrival sequence,
// so the count is simply every lower-sequenced reservation not yet served.
func (r *mongoReservationRepository) CountEarlierUnserved(ctx context.Context, reservation *model.Reservation) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"slot_id":  reservation.SlotID,
		"status":   model.ReservationActive,
		"sequence": bson.M{"$lt": reservation.Sequence},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued reservations: %w", err)
	}
	return count, nil
}

// MarkServed transitions an active reservation to served. The status guard
// makes the call idempotent-safe: a second attempt matches nothing.
func (r *mongoReservationRepository) MarkServed(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": model.ReservationActive,
	}
	update := bson.M{"$set": bson.M{"status": model.ReservationServed}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark reservation served: %w", err)
	}
	if result.MatchedCount == 0 {
		return slotserrors.ErrReservationNotFound
	}
	return nil
}
