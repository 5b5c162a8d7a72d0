package repository

import (
	"context"
	"fmt"
	"time"

	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Parties"

// PartyRepository resolves display names for renters and hosts.
type PartyRepository interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Party, error)
}

type mongoPartyRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoPartyRepository(cfg *config.Config) PartyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPartyRepository{
		collection: db.Collection(CollectionName),
		timeout:    cfg.OperationTimeout,
	}
}

func (r *mongoPartyRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Party, error) {
	parties := make(map[string]*model.Party, len(ids))
	if len(ids) == 0 {
		return parties, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"display_name": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find parties: %w", err)
	}
	defer cursor.Close(ctx)

	var found []*model.Party
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode parties: %w", err)
	}
	for _, p := range found {
		parties[p.ID] = p
	}
	return parties, nil
}
