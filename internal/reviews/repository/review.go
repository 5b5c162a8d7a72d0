package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reviewserrors "carrental/internal/reviews/errors"
	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reviews"
)

type ReviewRepository interface {
	// FindExisting returns ErrNotFound when the reviewer has not yet
	// reviewed the booking in that direction.
	FindExisting(ctx context.Context, bookingID, reviewerID string, reviewType model.ReviewType) (*model.Review, error)
	Create(ctx context.Context, review *model.Review) error
	// Aggregate returns the sum and count of ratings received by revieweeID.
	Aggregate(ctx context.Context, revieweeID string) (sum int64, count int64, err error)
	FindByReviewee(ctx context.Context, revieweeID string, limit int, offset int64) ([]*model.Review, error)
	CountByReviewee(ctx context.Context, revieweeID string) (int64, error)
}

type mongoReviewRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReviewRepository(cfg *config.Config) ReviewRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReviewRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoReviewRepository) FindExisting(ctx context.Context, bookingID, reviewerID string, reviewType model.ReviewType) (*model.Review, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	filter := bson.M{
		"booking_id":  bookingID,
		"reviewer_id": reviewerID,
		"type":        reviewType,
	}

	var review model.Review
	err := r.collection.FindOne(ctx, filter).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reviewserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}
	return &review, nil
}

func (r *mongoReviewRepository) Create(ctx context.Context, review *model.Review) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	review.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reviewserrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid.Hex()
	}
	return nil
}

type ratingTotals struct {
	Sum   int64 `bson:"sum"`
	Count int64 `bson:"count"`
}

func (r *mongoReviewRepository) Aggregate(ctx context.Context, revieweeID string) (int64, int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"reviewee_id": revieweeID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"sum":   bson.M{"$sum": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var totals []ratingTotals
	if err := cursor.All(ctx, &totals); err != nil {
		return 0, 0, fmt.Errorf("failed to decode rating totals: %w", err)
	}
	if len(totals) == 0 {
		return 0, 0, nil
	}
	return totals[0].Sum, totals[0].Count, nil
}

func (r *mongoReviewRepository) FindByReviewee(ctx context.Context, revieweeID string, limit int, offset int64) ([]*model.Review, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"reviewee_id": revieweeID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []*model.Review{}
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}

func (r *mongoReviewRepository) CountByReviewee(ctx context.Context, revieweeID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"reviewee_id": revieweeID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}
