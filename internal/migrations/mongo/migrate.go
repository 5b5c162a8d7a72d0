package mongo

import (
	"context"
	"fmt"

	bookingsrepo "carrental/internal/bookings/repository"
	listingsrepo "carrental/internal/listings/repository"
	"carrental/internal/migrations/mongo/validators"
	partiesrepo "carrental/internal/parties/repository"
	reviewsrepo "carrental/internal/reviews/repository"
	"carrental/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "vehicle_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "start_date", Value: 1},
				{Key: "end_date", Value: 1},
			},
			Options: options.Index().SetName("vehicle_occupancy"),
		},
		{
			Keys:    bson.D{{Key: "renter_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("renter_recent"),
		},
		{
			Keys:    bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("host_recent"),
		},
		{
			Keys:    bson.D{{Key: "renter_id", Value: 1}, {Key: "status", Value: 1}, {Key: "end_date", Value: -1}},
			Options: options.Index().SetName("renter_completed"),
		},
		{
			Keys:    bson.D{{Key: "host_id", Value: 1}, {Key: "status", Value: 1}, {Key: "end_date", Value: -1}},
			Options: options.Index().SetName("host_completed"),
		},
	}

	// ReviewsIndexes carries the uniqueness guarantee for one review per
	// booking, reviewer and direction.
	ReviewsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "booking_id", Value: 1},
				{Key: "reviewer_id", Value: 1},
				{Key: "type", Value: 1},
			},
			Options: options.Index().SetName("one_review_per_direction").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "reviewee_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("reviewee_recent"),
		},
	}

	VehiclesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "host_id", Value: 1}}, Options: options.Index().SetName("host")},
	}

	// VehicleLocksIndexes lets the server reap locks whose holder died.
	VehicleLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("lock_expiry").SetExpireAfterSeconds(0),
		},
	}
)

type Collection struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() []Collection {
	return []Collection{
		{Name: listingsrepo.CollectionName, Indexes: VehiclesIndexes, Validator: validators.VehicleValidator},
		{Name: partiesrepo.CollectionName, Validator: validators.PartyValidator},
		{Name: bookingsrepo.CollectionName, Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		{Name: bookingsrepo.LockCollectionName, Indexes: VehicleLocksIndexes, Validator: validators.VehicleLockValidator},
		{Name: reviewsrepo.CollectionName, Indexes: ReviewsIndexes, Validator: validators.ReviewValidator},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
