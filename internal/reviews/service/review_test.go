package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"carrental/internal/reviews/validator"
	"carrental/pkg/auth"
	"carrental/pkg/config"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	hostID   = "host-1"
	renterID = "renter-1"
	comment  = "Clean car, smooth handover"
)

var vehicleID = primitive.NewObjectID().Hex()

type fixture struct {
	svc       ReviewService
	reviews   *fakeReviewRepository
	bookings  *fakeBookingReader
	parties   *fakePartyRepository
	publisher *fakePublisher
}

func newFixture(t *testing.T, bookings ...*model.Booking) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{Log: log, OperationTimeout: time.Second}

	f := &fixture{
		reviews:  &fakeReviewRepository{},
		bookings: &fakeBookingReader{bookings: bookings},
		parties: &fakePartyRepository{parties: map[string]*model.Party{
			hostID:   {ID: hostID, DisplayName: "Dana Host"},
			renterID: {ID: renterID, DisplayName: "Rami Renter"},
		}},
		publisher: &fakePublisher{},
	}
	vehicles := &fakeVehicleRepository{vehicles: map[string]*model.Vehicle{
		vehicleID: {ID: vehicleID, HostID: hostID, Make: "Mazda", Model: "3", Year: 2021},
	}}
	f.svc = NewReviewService(f.reviews, f.bookings, vehicles, f.parties, validator.NewReviewValidator(log), f.publisher, cfg)
	return f
}

func booking(status model.BookingStatus, renter, host string) *model.Booking {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return &model.Booking{
		ID:        primitive.NewObjectID().Hex(),
		VehicleID: vehicleID,
		RenterID:  renter,
		HostID:    host,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 3),
		Status:    status,
	}
}

func submission(b *model.Booking, reviewType model.ReviewType) *model.ReviewSubmission {
	return &model.ReviewSubmission{
		BookingID: b.ID,
		Rating:    5,
		Comment:   comment,
		Type:      reviewType,
	}
}

func as(id string) auth.Principal { return auth.Principal{ID: id} }

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.AsAppError(err).Code, "error: %v", err)
}

// ────────────────────────────────────────────────
// Submit
// ────────────────────────────────────────────────

func TestSubmit_Success(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)

	review, err := f.svc.Submit(context.Background(), as(renterID), submission(b, model.RenterToHost))
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)
	assert.Equal(t, hostID, review.RevieweeID, "reviewee is derived from the booking")
	assert.Equal(t, model.RenterToHost, review.Type)
	assert.Len(t, f.publisher.published, 1)

	hostReview, err := f.svc.Submit(context.Background(), as(hostID), submission(b, model.HostToRenter))
	require.NoError(t, err, "each direction is reviewed independently")
	assert.Equal(t, renterID, hostReview.RevieweeID)
}

func TestSubmit_DuplicateDoesNotChangeRating(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)

	first, err := f.svc.Submit(context.Background(), as(renterID), submission(b, model.RenterToHost))
	require.NoError(t, err)
	before, err := f.svc.GetAggregateRating(context.Background(), hostID)
	require.NoError(t, err)

	retry := submission(b, model.RenterToHost)
	retry.Rating = 1
	_, err = f.svc.Submit(context.Background(), as(renterID), retry)
	requireCode(t, err, apperrors.CodeDuplicateReview)
	assert.Equal(t, first.ID, apperrors.AsAppError(err).Details["existing_id"])

	after, err := f.svc.GetAggregateRating(context.Background(), hostID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.reviews.reviews, 1)
}

func TestSubmit_DuplicateRaceMapsToDuplicate(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)
	f.reviews.raceWinner = &model.Review{BookingID: b.ID, ReviewerID: renterID, RevieweeID: hostID, Rating: 4, Type: model.RenterToHost}

	_, err := f.svc.Submit(context.Background(), as(renterID), submission(b, model.RenterToHost))
	requireCode(t, err, apperrors.CodeDuplicateReview)
	assert.NotEmpty(t, apperrors.AsAppError(err).Details["existing_id"])
	assert.Len(t, f.reviews.reviews, 1)
}

func TestSubmit_EligibilityGating(t *testing.T) {
	statuses := []model.BookingStatus{
		model.BookingPending,
		model.BookingConfirmed,
		model.BookingActive,
		model.BookingCancelled,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			b := booking(status, renterID, hostID)
			f := newFixture(t, b)

			_, err := f.svc.Submit(context.Background(), as(renterID), submission(b, model.RenterToHost))
			requireCode(t, err, apperrors.CodeIneligible)
			assert.Empty(t, f.reviews.reviews)
		})
	}
}

func TestSubmit_CommentBoundary(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)

	f := newFixture(t, b)
	short := submission(b, model.RenterToHost)
	short.Comment = "  123456789  "
	_, err := f.svc.Submit(context.Background(), as(renterID), short)
	requireCode(t, err, apperrors.CodeValidation)

	exact := submission(b, model.RenterToHost)
	exact.Comment = "1234567890"
	_, err = f.svc.Submit(context.Background(), as(renterID), exact)
	require.NoError(t, err)
}

func TestSubmit_CommentMeasuredAfterNormalization(t *testing.T) {
	tests := []struct {
		name    string
		comment string
	}{
		{"collapsed whitespace", "a    b    c"},
		{"control characters", "abc\x00\x00\x00\x00\x00\x00\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := booking(model.BookingCompleted, renterID, hostID)
			f := newFixture(t, b)
			sub := submission(b, model.RenterToHost)
			sub.Comment = tt.comment

			_, err := f.svc.Submit(context.Background(), as(renterID), sub)
			requireCode(t, err, apperrors.CodeValidation)
			assert.Equal(t, "Invalid comment", apperrors.AsAppError(err).Message)
			assert.Empty(t, f.reviews.reviews)
		})
	}
}

func TestSubmit_StoredCommentMeetsMinimum(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)
	sub := submission(b, model.RenterToHost)
	sub.Comment = "tidy   car,\t\tok"

	review, err := f.svc.Submit(context.Background(), as(renterID), sub)
	require.NoError(t, err)
	assert.Equal(t, "tidy car, ok", review.Comment)
	assert.GreaterOrEqual(t, model.CommentLength(review.Comment), model.MinReviewCommentLength)
}

func TestSubmit_MalformedBookingIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	sub := &model.ReviewSubmission{BookingID: "not-an-object-id", Rating: 4, Comment: comment, Type: model.RenterToHost}

	_, err := f.svc.Submit(context.Background(), as(renterID), sub)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestSubmit_RoleTypeMismatch(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)

	_, err := f.svc.Submit(context.Background(), as(renterID), submission(b, model.HostToRenter))
	requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "Invalid review type for role", apperrors.AsAppError(err).Message)
	assert.Empty(t, f.reviews.reviews)
}

func TestSubmit_FailFastOrder(t *testing.T) {
	completed := booking(model.BookingCompleted, renterID, hostID)
	pending := booking(model.BookingPending, renterID, hostID)
	missingID := primitive.NewObjectID().Hex()

	tests := []struct {
		name     string
		reviewer string
		existing *model.Review
		sub      func() *model.ReviewSubmission
		code     string
		message  string
	}{
		{
			name:     "rating checked before comment",
			reviewer: renterID,
			sub: func() *model.ReviewSubmission {
				s := submission(completed, model.RenterToHost)
				s.Rating, s.Comment = 0, "short"
				return s
			},
			code:    apperrors.CodeValidation,
			message: "Invalid rating",
		},
		{
			name:     "comment checked before duplicate",
			reviewer: renterID,
			existing: &model.Review{BookingID: completed.ID, ReviewerID: renterID, Type: model.RenterToHost},
			sub: func() *model.ReviewSubmission {
				s := submission(completed, model.RenterToHost)
				s.Comment = "meh"
				return s
			},
			code:    apperrors.CodeValidation,
			message: "Invalid comment",
		},
		{
			name:     "duplicate checked before existence",
			reviewer: renterID,
			existing: &model.Review{BookingID: missingID, ReviewerID: renterID, Type: model.RenterToHost},
			sub: func() *model.ReviewSubmission {
				s := submission(completed, model.RenterToHost)
				s.BookingID = missingID
				return s
			},
			code: apperrors.CodeDuplicateReview,
		},
		{
			name:     "missing booking",
			reviewer: renterID,
			sub: func() *model.ReviewSubmission {
				s := submission(completed, model.RenterToHost)
				s.BookingID = missingID
				return s
			},
			code: apperrors.CodeNotFound,
		},
		{
			name:     "eligibility checked before party",
			reviewer: "stranger",
			sub:      func() *model.ReviewSubmission { return submission(pending, model.RenterToHost) },
			code:     apperrors.CodeIneligible,
		},
		{
			name:     "non party",
			reviewer: "stranger",
			sub:      func() *model.ReviewSubmission { return submission(completed, model.RenterToHost) },
			code:     apperrors.CodeForbidden,
		},
		{
			name:     "reviewee must be the counterpart",
			reviewer: renterID,
			sub: func() *model.ReviewSubmission {
				s := submission(completed, model.RenterToHost)
				s.RevieweeID = "someone-else"
				return s
			},
			code: apperrors.CodeValidation,
		},
		{
			name:     "unknown type",
			reviewer: renterID,
			sub: func() *model.ReviewSubmission {
				return submission(completed, "renter_to_car")
			},
			code: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, completed, pending)
			if tt.existing != nil {
				require.NoError(t, f.reviews.Create(context.Background(), tt.existing))
			}

			_, err := f.svc.Submit(context.Background(), as(tt.reviewer), tt.sub())
			requireCode(t, err, tt.code)
			if tt.message != "" {
				assert.Equal(t, tt.message, apperrors.AsAppError(err).Message)
			}
		})
	}
}

func TestSubmit_Unauthenticated(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)

	_, err := f.svc.Submit(context.Background(), auth.Principal{}, submission(b, model.RenterToHost))
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestSubmit_NormalizesComment(t *testing.T) {
	b := booking(model.BookingCompleted, renterID, hostID)
	f := newFixture(t, b)
	sub := submission(b, model.RenterToHost)
	sub.Comment = "  Great   trip\x00\n\n\n\nwould rent again  "

	review, err := f.svc.Submit(context.Background(), as(renterID), sub)
	require.NoError(t, err)
	assert.Equal(t, "Great trip\n\nwould rent again", review.Comment)
}

// ────────────────────────────────────────────────
// Aggregate rating
// ────────────────────────────────────────────────

func TestGetAggregateRating(t *testing.T) {
	f := newFixture(t)

	empty, err := f.svc.GetAggregateRating(context.Background(), hostID)
	require.NoError(t, err)
	assert.Equal(t, model.RatingSummary{AverageRating: 0, TotalReviews: 0}, *empty)

	for i, rating := range []int{5, 4, 3} {
		require.NoError(t, f.reviews.Create(context.Background(), &model.Review{
			BookingID:  primitive.NewObjectID().Hex(),
			ReviewerID: "renter-" + string(rune('a'+i)),
			RevieweeID: hostID,
			Rating:     rating,
			Type:       model.RenterToHost,
		}))
	}

	summary, err := f.svc.GetAggregateRating(context.Background(), hostID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, summary.AverageRating)
	assert.Equal(t, int64(3), summary.TotalReviews)

	_, err = f.svc.GetAggregateRating(context.Background(), "  ")
	requireCode(t, err, apperrors.CodeInvalidInput)
}

// ────────────────────────────────────────────────
// Pending obligations
// ────────────────────────────────────────────────

func collect(t *testing.T, f *fixture, userID string) []*model.PendingReviewObligation {
	t.Helper()
	var out []*model.PendingReviewObligation
	for o, err := range f.svc.ListPendingObligations(context.Background(), userID) {
		require.NoError(t, err)
		out = append(out, o)
	}
	return out
}

func TestListPendingObligations_Completeness(t *testing.T) {
	rentedA := booking(model.BookingCompleted, renterID, hostID)
	rentedB := booking(model.BookingCompleted, renterID, "host-2")
	hosted := booking(model.BookingCompleted, "renter-9", renterID)
	active := booking(model.BookingActive, renterID, hostID)
	f := newFixture(t, rentedA, rentedB, hosted, active)

	_, err := f.svc.Submit(context.Background(), as(renterID), submission(rentedA, model.RenterToHost))
	require.NoError(t, err)

	obligations := collect(t, f, renterID)
	require.Len(t, obligations, 2)

	assert.Equal(t, rentedB.ID, obligations[0].BookingID)
	assert.Equal(t, model.RenterToHost, obligations[0].ReviewType)
	assert.Equal(t, "host-2", obligations[0].CounterpartID)

	assert.Equal(t, hosted.ID, obligations[1].BookingID)
	assert.Equal(t, model.HostToRenter, obligations[1].ReviewType)
	assert.Equal(t, "renter-9", obligations[1].CounterpartID)
}

func TestListPendingObligations_Enrichment(t *testing.T) {
	known := booking(model.BookingCompleted, renterID, hostID)
	unknown := booking(model.BookingCompleted, renterID, "host-unknown")
	unknown.VehicleID = primitive.NewObjectID().Hex()
	f := newFixture(t, known, unknown)

	obligations := collect(t, f, renterID)
	require.Len(t, obligations, 2)

	assert.Equal(t, "Dana Host", obligations[0].CounterpartName)
	assert.Equal(t, model.VehicleDescriptor{Make: "Mazda", Model: "3", Year: 2021}, obligations[0].Vehicle)
	assert.Equal(t, known.StartDate, obligations[0].StartDate)
	assert.Equal(t, known.EndDate, obligations[0].EndDate)

	assert.Empty(t, obligations[1].CounterpartName)
	assert.Zero(t, obligations[1].Vehicle)

	f.parties.err = errDirectoryDown
	obligations = collect(t, f, renterID)
	require.Len(t, obligations, 2, "directory failures do not drop obligations")
	assert.Empty(t, obligations[0].CounterpartName)
}

func TestListPendingObligations_LazyAndRestartable(t *testing.T) {
	var bookings []*model.Booking
	for range enrichBatchSize * 2 {
		bookings = append(bookings, booking(model.BookingCompleted, renterID, hostID))
	}
	f := newFixture(t, bookings...)
	seq := f.svc.ListPendingObligations(context.Background(), renterID)

	seen := 0
	for _, err := range seq {
		require.NoError(t, err)
		seen++
		if seen == 1 {
			break
		}
	}
	assert.Equal(t, enrichBatchSize, f.bookings.yielded, "only the first batch is read")

	total := 0
	for _, err := range seq {
		require.NoError(t, err)
		total++
	}
	assert.Equal(t, enrichBatchSize*2, total)
}

func TestListPendingObligations_StoreError(t *testing.T) {
	f := newFixture(t)
	f.bookings.err = context.DeadlineExceeded

	var gotErr error
	for _, err := range f.svc.ListPendingObligations(context.Background(), renterID) {
		gotErr = err
	}
	requireCode(t, gotErr, apperrors.CodeUnavailable)
	assert.True(t, apperrors.AsAppError(gotErr).Retryable)
}

func TestListReceived(t *testing.T) {
	f := newFixture(t)
	for i := range 3 {
		require.NoError(t, f.reviews.Create(context.Background(), &model.Review{
			BookingID:  primitive.NewObjectID().Hex(),
			ReviewerID: strings.Repeat("r", i+1),
			RevieweeID: hostID,
			Rating:     5,
			Type:       model.RenterToHost,
		}))
	}

	reviews, total, err := f.svc.ListReceived(context.Background(), hostID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, reviews, 2)
	assert.Equal(t, "rrr", reviews[0].ReviewerID, "newest first")
}
