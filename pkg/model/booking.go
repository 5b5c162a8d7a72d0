package model

import (
	"slices"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingActive, BookingCancelled},
	BookingActive:    {BookingCompleted},
}

// OccupyingStatuses hold the vehicle for their date range.
var OccupyingStatuses = []BookingStatus{BookingConfirmed, BookingActive}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingActive, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Self transitions are rejected.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return slices.Contains(bookingTransitions[s], next)
}

func (s BookingStatus) OccupiesVehicle() bool {
	return slices.Contains(OccupyingStatuses, s)
}

type Booking struct {
	ID              string        `json:"id" bson:"_id,omitempty"`
	VehicleID       string        `json:"vehicle_id" bson:"vehicle_id"`
	RenterID        string        `json:"renter_id" bson:"renter_id"`
	HostID          string        `json:"host_id" bson:"host_id"`
	StartDate       time.Time     `json:"start_date" bson:"start_date"`
	EndDate         time.Time     `json:"end_date" bson:"end_date"`
	TotalAmount     float64       `json:"total_amount" bson:"total_amount"`
	Status          BookingStatus `json:"status" bson:"status"`
	SpecialRequests string        `json:"special_requests,omitempty" bson:"special_requests,omitempty"`
	PickupLocation  string        `json:"pickup_location" bson:"pickup_location"`
	DropoffLocation string        `json:"dropoff_location" bson:"dropoff_location"`
	HostNotes       string        `json:"host_notes,omitempty" bson:"host_notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) IsParty(userID string) bool {
	return userID != "" && (b.RenterID == userID || b.HostID == userID)
}

// Overlaps applies the inclusive three-way interval test: touching ranges
// count as overlapping.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return Overlaps(b.StartDate, b.EndDate, start, end)
}

func Overlaps(existingStart, existingEnd, start, end time.Time) bool {
	startsInside := !start.Before(existingStart) && !start.After(existingEnd)
	endsInside := !end.Before(existingStart) && !end.After(existingEnd)
	covers := !existingStart.Before(start) && !end.Before(existingEnd)
	return startsInside || endsInside || covers
}

type BookingRequest struct {
	VehicleID       string    `json:"vehicle_id" validate:"required,mongodb"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required"`
	PickupLocation  string    `json:"pickup_location" validate:"required,min=2,max=200"`
	DropoffLocation string    `json:"dropoff_location" validate:"required,min=2,max=200"`
	SpecialRequests string    `json:"special_requests,omitempty" validate:"max=1000"`
	TotalAmount     *float64  `json:"total_amount,omitempty" validate:"omitempty,gt=0"`
}

type StatusUpdate struct {
	Status    BookingStatus `json:"status" validate:"required,booking_status"`
	HostNotes *string       `json:"host_notes,omitempty" validate:"omitempty,max=1000"`
}

// SettlementEvent is published by the payments side when a rental is
// settled or voided.
type SettlementEvent struct {
	BookingID  string        `json:"booking_id" validate:"required,mongodb"`
	Status     BookingStatus `json:"status" validate:"required,booking_status"`
	Reason     string        `json:"reason,omitempty" validate:"max=500"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type Quote struct {
	VehicleID   string    `json:"vehicle_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Days        int64     `json:"days"`
	DailyRate   float64   `json:"daily_rate"`
	Subtotal    float64   `json:"subtotal"`
	ServiceFee  float64   `json:"service_fee"`
	TotalAmount float64   `json:"total_amount"`
}

type BookingRole string

const (
	RoleRenter BookingRole = "renter"
	RoleHost   BookingRole = "host"
)

func (r BookingRole) Valid() bool {
	return r == RoleRenter || r == RoleHost
}
