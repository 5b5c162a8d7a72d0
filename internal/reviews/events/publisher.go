package events

import (
	"context"
	"time"

	"carrental/pkg/kafka"
	"carrental/pkg/middleware"
	"carrental/pkg/model"
)

const (
	Source        = "reviews-service"
	SchemaVersion = "1"

	EventReviewSubmitted = "review.submitted"
)

// ReviewEvent is keyed by reviewee so consumers maintaining rating
// projections see a user's reviews in order.
type ReviewEvent struct {
	ReviewID   string           `json:"review_id"`
	BookingID  string           `json:"booking_id"`
	ReviewerID string           `json:"reviewer_id"`
	RevieweeID string           `json:"reviewee_id"`
	Rating     int              `json:"rating"`
	Type       model.ReviewType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type Publisher interface {
	ReviewSubmitted(ctx context.Context, review *model.Review) error
}

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer messagePublisher
}

func NewKafkaPublisher(producer messagePublisher) Publisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) ReviewSubmitted(ctx context.Context, review *model.Review) error {
	msg, err := kafka.NewMessage().
		WithKey(review.RevieweeID).
		WithValue(ReviewEvent{
			ReviewID:   review.ID,
			BookingID:  review.BookingID,
			ReviewerID: review.ReviewerID,
			RevieweeID: review.RevieweeID,
			Rating:     review.Rating,
			Type:       review.Type,
			OccurredAt: review.CreatedAt,
		}).
		WithEventType(EventReviewSubmitted).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithCorrelationID(middleware.RequestIDFrom(ctx)).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) ReviewSubmitted(context.Context, *model.Review) error { return nil }
