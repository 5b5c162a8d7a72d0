package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinReviewRating        = 1
	MaxReviewRating        = 5
	MinReviewCommentLength = 10
	MaxReviewCommentLength = 2000
)

type ReviewType string

const (
	RenterToHost ReviewType = "renter_to_host"
	HostToRenter ReviewType = "host_to_renter"
)

func (t ReviewType) Valid() bool {
	return t == RenterToHost || t == HostToRenter
}

// ReviewTypeFor returns the direction userID reviews in for b and the
// counterpart being reviewed. ok is false when userID is not a party.
func ReviewTypeFor(b *Booking, userID string) (reviewType ReviewType, counterpartID string, ok bool) {
	switch {
	case userID == "":
		return "", "", false
	case b.RenterID == userID:
		return RenterToHost, b.HostID, true
	case b.HostID == userID:
		return HostToRenter, b.RenterID, true
	}
	return "", "", false
}

type Review struct {
	ID         string     `json:"id" bson:"_id,omitempty"`
	BookingID  string     `json:"booking_id" bson:"booking_id"`
	ReviewerID string     `json:"reviewer_id" bson:"reviewer_id"`
	RevieweeID string     `json:"reviewee_id" bson:"reviewee_id"`
	Rating     int        `json:"rating" bson:"rating"`
	Comment    string     `json:"comment" bson:"comment"`
	Type       ReviewType `json:"type" bson:"type"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

type ReviewSubmission struct {
	BookingID  string     `json:"booking_id" validate:"required"`
	Rating     int        `json:"rating"`
	Comment    string     `json:"comment" validate:"max=2000"`
	Type       ReviewType `json:"type" validate:"required,review_type"`
	RevieweeID string     `json:"reviewee_id,omitempty"`
}

// CommentLength counts trimmed runes.
func CommentLength(comment string) int {
	return utf8.RuneCountInString(strings.TrimSpace(comment))
}

type VehicleDescriptor struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

type PendingReviewObligation struct {
	BookingID       string            `json:"booking_id"`
	ReviewType      ReviewType        `json:"review_type"`
	CounterpartID   string            `json:"counterpart_id"`
	CounterpartName string            `json:"counterpart_name,omitempty"`
	Vehicle         VehicleDescriptor `json:"vehicle"`
	StartDate       time.Time         `json:"start_date"`
	EndDate         time.Time         `json:"end_date"`
}

type RatingSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int64   `json:"total_reviews"`
}

// NewRatingSummary rounds sum/count half up to one decimal with integer
// arithmetic so x.x5 boundaries are exact.
func NewRatingSummary(sum, count int64) RatingSummary {
	if count <= 0 {
		return RatingSummary{}
	}
	tenths := (20*sum + count) / (2 * count)
	return RatingSummary{
		AverageRating: float64(tenths) / 10,
		TotalReviews:  count,
	}
}
