package service

import (
	"context"
	"errors"
	"iter"
	"sync"

	listingsrepo "carrental/internal/listings/repository"
	partiesrepo "carrental/internal/parties/repository"
	reviewserrors "carrental/internal/reviews/errors"
	"carrental/internal/reviews/events"
	"carrental/internal/reviews/repository"
	"carrental/internal/reviews/validator"
	"carrental/pkg/auth"
	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"
)

// enrichBatchSize bounds how many obligations are buffered before their
// counterpart names and vehicles are looked up together.
const enrichBatchSize = 25

type ReviewService interface {
	ListPendingObligations(ctx context.Context, userID string) iter.Seq2[*model.PendingReviewObligation, error]
	Submit(ctx context.Context, principal auth.Principal, sub *model.ReviewSubmission) (*model.Review, error)
	GetAggregateRating(ctx context.Context, userID string) (*model.RatingSummary, error)
	ListReceived(ctx context.Context, userID string, limit int, offset int64) ([]*model.Review, int64, error)
}

type reviewService struct {
	repo      repository.ReviewRepository
	bookings  repository.BookingReader
	vehicles  listingsrepo.VehicleRepository
	parties   partiesrepo.PartyRepository
	validator *validator.ReviewValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReviewService(
	repo repository.ReviewRepository,
	bookings repository.BookingReader,
	vehicles listingsrepo.VehicleRepository,
	parties partiesrepo.PartyRepository,
	validator *validator.ReviewValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:      repo,
		bookings:  bookings,
		vehicles:  vehicles,
		parties:   parties,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ListPendingObligations yields completed bookings the user still owes a
// review for, in booking query order. Ranging again re-runs the queries.
func (s *reviewService) ListPendingObligations(ctx context.Context, userID string) iter.Seq2[*model.PendingReviewObligation, error] {
	return func(yield func(*model.PendingReviewObligation, error) bool) {
		batch := make([]*obligation, 0, enrichBatchSize)

		flush := func() bool {
			s.enrich(ctx, batch)
			for _, o := range batch {
				if !yield(o.PendingReviewObligation, nil) {
					return false
				}
			}
			batch = batch[:0]
			return true
		}

		for booking, err := range s.bookings.CompletedForParty(ctx, userID) {
			if err != nil {
				s.cfg.Log.Error("Failed to list completed bookings", "user_id", userID, "error", err)
				yield(nil, mongotx.StoreError("Failed to list completed bookings", err))
				return
			}

			reviewType, counterpartID, ok := model.ReviewTypeFor(booking, userID)
			if !ok {
				continue
			}

			_, findErr := s.repo.FindExisting(ctx, booking.ID, userID, reviewType)
			if findErr == nil {
				continue
			}
			if !errors.Is(findErr, reviewserrors.ErrNotFound) {
				s.cfg.Log.Error("Failed to check existing review", "booking_id", booking.ID, "user_id", userID, "error", findErr)
				yield(nil, mongotx.StoreError("Failed to check existing reviews", findErr))
				return
			}

			batch = append(batch, &obligation{
				PendingReviewObligation: &model.PendingReviewObligation{
					BookingID:     booking.ID,
					ReviewType:    reviewType,
					CounterpartID: counterpartID,
					StartDate:     booking.StartDate,
					EndDate:       booking.EndDate,
				},
				vehicleID: booking.VehicleID,
			})
			if len(batch) == enrichBatchSize && !flush() {
				return
			}
		}

		if len(batch) > 0 {
			flush()
		}
	}
}

type obligation struct {
	*model.PendingReviewObligation
	vehicleID string
}

// enrich fills display fields. Lookup failures leave them empty.
func (s *reviewService) enrich(ctx context.Context, batch []*obligation) {
	partyIDs := make([]string, 0, len(batch))
	vehicleIDs := make([]string, 0, len(batch))
	for _, o := range batch {
		partyIDs = append(partyIDs, o.CounterpartID)
		vehicleIDs = append(vehicleIDs, o.vehicleID)
	}

	parties, err := s.parties.FindByIDs(ctx, partyIDs)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve counterpart names", "count", len(partyIDs), "error", err)
	}
	vehicles, err := s.vehicles.FindByIDs(ctx, vehicleIDs)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve vehicles", "count", len(vehicleIDs), "error", err)
	}

	for _, o := range batch {
		if p, ok := parties[o.CounterpartID]; ok {
			o.CounterpartName = p.DisplayName
		}
		if v, ok := vehicles[o.vehicleID]; ok {
			o.Vehicle = v.Descriptor()
		}
	}
}

// Submit checks, in order: rating, comment, duplicate, booking existence,
// completion, party membership, and review direction. The first failure wins.
func (s *reviewService) Submit(ctx context.Context, principal auth.Principal, sub *model.ReviewSubmission) (*model.Review, error) {
	if !principal.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	s.sanitize(sub)

	if err := s.validator.ValidateRating(sub.Rating); err != nil {
		return nil, s.validationError("Invalid rating", err)
	}
	// Length is measured on the text that gets stored.
	sub.Comment = sanitizer.NormalizeFreeText(sub.Comment)
	if err := s.validator.ValidateComment(sub.Comment); err != nil {
		return nil, s.validationError("Invalid comment", err)
	}
	if err := s.validator.Validate(sub); err != nil {
		return nil, s.validationError("Review validation failed", err)
	}

	existing, err := s.repo.FindExisting(ctx, sub.BookingID, principal.ID, sub.Type)
	if err == nil {
		s.cfg.Log.Info("Duplicate review submission", "booking_id", sub.BookingID, "reviewer_id", principal.ID, "existing_id", existing.ID)
		return nil, apperrors.DuplicateReview(existing.ID)
	}
	if !errors.Is(err, reviewserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check existing review", "booking_id", sub.BookingID, "error", err)
		return nil, mongotx.StoreError("Failed to check existing reviews", err)
	}

	booking, err := s.bookings.FindByID(ctx, sub.BookingID)
	if err != nil {
		if errors.Is(err, reviewserrors.ErrBookingNotFound) || errors.Is(err, reviewserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", sub.BookingID)
		}
		s.cfg.Log.Error("Failed to load booking", "booking_id", sub.BookingID, "error", err)
		return nil, mongotx.StoreError("Failed to retrieve booking", err)
	}

	if booking.Status != model.BookingCompleted {
		return nil, apperrors.Ineligible("Only completed bookings may be reviewed").WithDetails(map[string]any{
			"status": string(booking.Status),
		})
	}

	reviewType, counterpartID, ok := model.ReviewTypeFor(booking, principal.ID)
	if !ok {
		s.cfg.Log.Warn("Review by non-party rejected", "booking_id", booking.ID, "user_id", principal.ID)
		return nil, apperrors.Forbidden("You are not a party to this booking")
	}
	if reviewType != sub.Type {
		return nil, apperrors.Validation("Invalid review type for role", map[string]any{
			"expected_type": string(reviewType),
		})
	}
	if sub.RevieweeID != "" && sub.RevieweeID != counterpartID {
		return nil, apperrors.Validation("Reviewee does not match the booking counterpart", nil)
	}

	review := &model.Review{
		BookingID:  booking.ID,
		ReviewerID: principal.ID,
		RevieweeID: counterpartID,
		Rating:     sub.Rating,
		Comment:    sub.Comment,
		Type:       reviewType,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, reviewserrors.ErrDuplicate) {
			return nil, s.duplicateAfterRace(ctx, review)
		}
		s.cfg.Log.Error("Failed to create review", "booking_id", booking.ID, "reviewer_id", principal.ID, "error", err)
		return nil, mongotx.StoreError("Failed to create review", err)
	}

	s.cfg.Log.Info("Review submitted successfully",
		"id", review.ID,
		"booking_id", review.BookingID,
		"reviewer_id", review.ReviewerID,
		"reviewee_id", review.RevieweeID,
		"type", review.Type,
	)
	if err := s.publisher.ReviewSubmitted(ctx, review); err != nil {
		s.cfg.Log.Warn("Failed to publish review event", "id", review.ID, "event", events.EventReviewSubmitted, "error", err)
	}
	return review, nil
}

// duplicateAfterRace handles a concurrent submission that won the unique
// index between the duplicate check and the insert.
func (s *reviewService) duplicateAfterRace(ctx context.Context, review *model.Review) error {
	existing, err := s.repo.FindExisting(ctx, review.BookingID, review.ReviewerID, review.Type)
	if err != nil {
		return apperrors.DuplicateReview("")
	}
	return apperrors.DuplicateReview(existing.ID)
}

func (s *reviewService) GetAggregateRating(ctx context.Context, userID string) (*model.RatingSummary, error) {
	userID = sanitizer.NormalizeIdentifier(userID)
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	sum, count, err := s.repo.Aggregate(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to aggregate ratings", "user_id", userID, "error", err)
		return nil, mongotx.StoreError("Failed to compute rating", err)
	}

	summary := model.NewRatingSummary(sum, count)
	return &summary, nil
}

func (s *reviewService) ListReceived(ctx context.Context, userID string, limit int, offset int64) ([]*model.Review, int64, error) {
	userID = sanitizer.NormalizeIdentifier(userID)
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByReviewee(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reviews", "user_id", userID, "error", errCount)
			errCount = mongotx.StoreError("Failed to count reviews", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reviews, errFind = s.repo.FindByReviewee(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reviews", "user_id", userID, "error", errFind)
			errFind = mongotx.StoreError("Failed to retrieve reviews", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reviews, count, nil
}

// --- Helpers ---

func (s *reviewService) sanitize(sub *model.ReviewSubmission) {
	sub.BookingID = sanitizer.NormalizeIdentifier(sub.BookingID)
	sub.RevieweeID = sanitizer.NormalizeIdentifier(sub.RevieweeID)
}

func (s *reviewService) validationError(message string, err error) error {
	s.cfg.Log.Warn(message, "error", err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
