package events

import (
	"context"
	"time"

	"carrental/pkg/kafka"
	"carrental/pkg/middleware"
	"carrental/pkg/model"
)

const (
	Source        = "bookings-service"
	SchemaVersion = "1"

	EventBookingRequested     = "booking.requested"
	EventBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is the payload written to the booking events topic.
type BookingEvent struct {
	BookingID      string              `json:"booking_id"`
	VehicleID      string              `json:"vehicle_id"`
	RenterID       string              `json:"renter_id"`
	HostID         string              `json:"host_id"`
	Status         model.BookingStatus `json:"status"`
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        time.Time           `json:"end_date"`
	TotalAmount    float64             `json:"total_amount"`
	ActorID        string              `json:"actor_id"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

type Publisher interface {
	BookingRequested(ctx context.Context, booking *model.Booking) error
	StatusChanged(ctx context.Context, booking *model.Booking, from model.BookingStatus, actorID string) error
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

func (p *kafkaPublisher) BookingRequested(ctx context.Context, booking *model.Booking) error {
	return p.publish(ctx, EventBookingRequested, newBookingEvent(booking, "", booking.RenterID))
}

func (p *kafkaPublisher) StatusChanged(ctx context.Context, booking *model.Booking, from model.BookingStatus, actorID string) error {
	return p.publish(ctx, EventBookingStatusChanged, newBookingEvent(booking, from, actorID))
}

func (p *kafkaPublisher) publish(ctx context.Context, eventType string, event BookingEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(eventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithCorrelationID(middleware.RequestIDFrom(ctx)).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func newBookingEvent(b *model.Booking, from model.BookingStatus, actorID string) BookingEvent {
	return BookingEvent{
		BookingID:      b.ID,
		VehicleID:      b.VehicleID,
		RenterID:       b.RenterID,
		HostID:         b.HostID,
		Status:         b.Status,
		PreviousStatus: from,
		StartDate:      b.StartDate,
		EndDate:        b.EndDate,
		TotalAmount:    b.TotalAmount,
		ActorID:        actorID,
		OccurredAt:     time.Now().UTC(),
	}
}

type noopPublisher struct{}

// NewNoopPublisher is used when Kafka is disabled.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) BookingRequested(context.Context, *model.Booking) error { return nil }

func (noopPublisher) StatusChanged(context.Context, *model.Booking, model.BookingStatus, string) error {
	return nil
}
