package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Vehicle_locks"

// VehicleLockRepository provides advisory locks keyed by vehicle.
type VehicleLockRepository interface {
	Create(ctx context.Context, lock *model.VehicleLock) error
	Delete(ctx context.Context, lockID string) error
}

type mongoVehicleLockRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewVehicleLockRepository(cfg *config.Config) VehicleLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVehicleLockRepository{
		collection: db.Collection(LockCollectionName),
		timeout:    cfg.OperationTimeout,
	}
}

// Create returns ErrLockHeld while another request holds the lock. An
// expired lock the TTL monitor has not reaped yet is taken over.
func (r *mongoVehicleLockRepository) Create(ctx context.Context, lock *model.VehicleLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	lock.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire vehicle lock: %w", err)
	}

	stale := bson.M{"_id": lock.ID, "expires_at": bson.M{"$lt": lock.CreatedAt}}
	res, err := r.collection.DeleteOne(ctx, stale)
	if err != nil {
		return fmt.Errorf("failed to reclaim vehicle lock: %w", err)
	}
	if res.DeletedCount == 0 {
		return bookingserrors.ErrLockHeld
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire vehicle lock: %w", err)
	}
	return nil
}

func (r *mongoVehicleLockRepository) Delete(ctx context.Context, lockID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID}); err != nil {
		return fmt.Errorf("failed to release vehicle lock: %w", err)
	}
	return nil
}
