package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"

	bookingsrepo "carrental/internal/bookings/repository"
	reviewserrors "carrental/internal/reviews/errors"
	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const completedBatchSize = 100

// BookingReader is the read side of the bookings collection. Reviews never
// write bookings.
type BookingReader interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// CompletedForParty streams completed bookings where userID is renter or
	// host, most recently ended first. Each range re-runs the query.
	CompletedForParty(ctx context.Context, userID string) iter.Seq2[*model.Booking, error]
}

type mongoBookingReader struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingReader(cfg *config.Config) BookingReader {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingReader{
		cfg:        cfg,
		collection: db.Collection(bookingsrepo.CollectionName),
	}
}

func (r *mongoBookingReader) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reviewserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reviewserrors.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

// The cursor is bound to ctx rather than the per-operation timeout since it
// stays open while the caller consumes the sequence.
func (r *mongoBookingReader) CompletedForParty(ctx context.Context, userID string) iter.Seq2[*model.Booking, error] {
	return func(yield func(*model.Booking, error) bool) {
		filter := bson.M{
			"status": model.BookingCompleted,
			"$or": []bson.M{
				{"renter_id": userID},
				{"host_id": userID},
			},
		}
		opts := options.Find().
			SetSort(bson.D{{Key: "end_date", Value: -1}}).
			SetBatchSize(completedBatchSize)

		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			yield(nil, fmt.Errorf("failed to find completed bookings: %w", err))
			return
		}
		defer cursor.Close(context.WithoutCancel(ctx))

		for cursor.Next(ctx) {
			var booking model.Booking
			if err := cursor.Decode(&booking); err != nil {
				yield(nil, fmt.Errorf("failed to decode booking: %w", err))
				return
			}
			if !yield(&booking, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to iterate completed bookings: %w", err))
		}
	}
}
