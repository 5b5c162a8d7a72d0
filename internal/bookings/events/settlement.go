package events

import (
	"context"
	"fmt"

	"carrental/internal/bookings/validator"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/kafka"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

// Settler applies settlement outcomes to bookings.
type Settler interface {
	ApplySettlement(ctx context.Context, event *model.SettlementEvent) (*model.Booking, error)
}

// NewSettlementHandler consumes settlement events. Store outages are retried
// and everything the domain rejects goes to the DLQ without retries.
func NewSettlementHandler(settler Settler, v *validator.BookingValidator, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event model.SettlementEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}
		if err := v.ValidateSettlement(&event); err != nil {
			return kafka.NewPermanentError("invalid settlement event", err)
		}

		booking, err := settler.ApplySettlement(ctx, &event)
		if err != nil {
			appErr := apperrors.AsAppError(err)
			if appErr.Retryable {
				return kafka.NewTransientError("settlement store unavailable", err)
			}
			return kafka.NewBusinessError(fmt.Sprintf("settlement rejected for booking %s", event.BookingID), err)
		}

		log.Info("Settlement applied",
			"booking_id", booking.ID,
			"status", booking.Status,
			"event_id", msg.GetEventID(),
		)
		return nil
	}
}
