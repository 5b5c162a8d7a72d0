package service

import (
	"math"
	"time"

	"carrental/pkg/model"
)

const day = 24 * time.Hour

// RentalDays counts started 24h periods, with a minimum of one.
func RentalDays(start, end time.Time) int64 {
	days := int64(math.Ceil(float64(end.Sub(start)) / float64(day)))
	return max(days, 1)
}

// NewQuote prices a rental at the vehicle's daily rate plus the marketplace
// fee. Amounts are rounded to cents.
func NewQuote(vehicle *model.Vehicle, start, end time.Time, feeRate float64) model.Quote {
	days := RentalDays(start, end)
	subtotal := round2(float64(days) * vehicle.DailyRate)
	total := round2(float64(days) * vehicle.DailyRate * (1 + feeRate))

	return model.Quote{
		VehicleID:   vehicle.ID,
		StartDate:   start,
		EndDate:     end,
		Days:        days,
		DailyRate:   vehicle.DailyRate,
		Subtotal:    subtotal,
		ServiceFee:  round2(total - subtotal),
		TotalAmount: total,
	}
}

// matchesQuote accepts client totals within one cent of the quote.
func matchesQuote(total float64, quote model.Quote) bool {
	return math.Abs(math.Round(total*100)-math.Round(quote.TotalAmount*100)) <= 1
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
