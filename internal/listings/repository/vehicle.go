package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Vehicles"

// VehicleRepository reads listings owned by the catalogue. Nothing in this
// module writes vehicles.
type VehicleRepository interface {
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Vehicle, error)
}

type mongoVehicleRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoVehicleRepository(cfg *config.Config) VehicleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVehicleRepository{
		collection: db.Collection(CollectionName),
		timeout:    cfg.OperationTimeout,
	}
}

func (r *mongoVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	var vehicle model.Vehicle
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return &vehicle, nil
}

// FindByIDs skips ids that are malformed or unknown.
func (r *mongoVehicleRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}

	vehicles := make(map[string]*model.Vehicle, len(objectIDs))
	if len(objectIDs) == 0 {
		return vehicles, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var v model.Vehicle
		if err := cursor.Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to decode vehicle: %w", err)
		}
		vehicles[v.ID] = &v
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicles: %w", err)
	}
	return vehicles, nil
}
