package service

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/internal/bookings/events"
	"carrental/internal/bookings/repository"
	"carrental/internal/bookings/validator"
	listingsrepo "carrental/internal/listings/repository"
	"carrental/pkg/auth"
	"carrental/pkg/config"
	mongotx "carrental/pkg/db/mongo"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"
)

type BookingService interface {
	Create(ctx context.Context, principal auth.Principal, req *model.BookingRequest) (*model.Booking, error)
	Quote(ctx context.Context, vehicleID string, start, end time.Time) (*model.Quote, error)
	UpdateStatus(ctx context.Context, principal auth.Principal, id string, update *model.StatusUpdate) (*model.Booking, error)
	ApplySettlement(ctx context.Context, event *model.SettlementEvent) (*model.Booking, error)
	Get(ctx context.Context, principal auth.Principal, id string) (*model.Booking, error)
	List(ctx context.Context, principal auth.Principal, role model.BookingRole, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.VehicleLockRepository
	vehicles  listingsrepo.VehicleRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.VehicleLockRepository,
	vehicles listingsrepo.VehicleRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		vehicles:  vehicles,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, principal auth.Principal, req *model.BookingRequest) (*model.Booking, error) {
	if !principal.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		return nil, s.validationError("Booking validation failed", err)
	}

	vehicle, quote, err := s.price(ctx, req.VehicleID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if vehicle.HostID == principal.ID {
		return nil, apperrors.Validation("You cannot book your own vehicle", nil)
	}
	if req.TotalAmount != nil && !matchesQuote(*req.TotalAmount, quote) {
		s.cfg.Log.Warn("Booking total does not match quote",
			"vehicle_id", vehicle.ID,
			"client_total", *req.TotalAmount,
			"quoted_total", quote.TotalAmount,
		)
		return nil, apperrors.Validation("total_amount does not match quoted price", map[string]any{
			"quoted_total": quote.TotalAmount,
		})
	}

	booking := &model.Booking{
		VehicleID:       vehicle.ID,
		RenterID:        principal.ID,
		HostID:          vehicle.HostID,
		StartDate:       req.StartDate.UTC(),
		EndDate:         req.EndDate.UTC(),
		TotalAmount:     quote.TotalAmount,
		Status:          model.BookingPending,
		SpecialRequests: req.SpecialRequests,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
	}

	err = s.withVehicleLock(ctx, vehicle.ID, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			if err := s.checkAvailability(txCtx, booking.VehicleID, booking.StartDate, booking.EndDate, ""); err != nil {
				return err
			}
			if err := s.repo.Create(txCtx, booking); err != nil {
				return mongotx.StoreError("Failed to create booking", err)
			}
			return nil
		})
	})
	if err != nil {
		appErr := mongotx.StoreError("Failed to create booking", err)
		if appErr.Code == apperrors.CodeConflict {
			s.cfg.Log.Warn("Booking rejected", "vehicle_id", vehicle.ID, "renter_id", principal.ID, "reason", appErr.Message)
		} else {
			s.cfg.Log.Error("Failed to create booking", "vehicle_id", vehicle.ID, "renter_id", principal.ID, "error", err)
		}
		return nil, appErr
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"vehicle_id", booking.VehicleID,
		"renter_id", booking.RenterID,
		"start_date", booking.StartDate,
		"end_date", booking.EndDate,
	)
	if err := s.publisher.BookingRequested(ctx, booking); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "id", booking.ID, "event", events.EventBookingRequested, "error", err)
	}
	return booking, nil
}

func (s *bookingService) Quote(ctx context.Context, vehicleID string, start, end time.Time) (*model.Quote, error) {
	_, quote, err := s.price(ctx, sanitizer.NormalizeIdentifier(vehicleID), start, end)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, principal auth.Principal, id string, update *model.StatusUpdate) (*model.Booking, error) {
	if !principal.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(principal.ID) {
		s.cfg.Log.Warn("Status change by non-party rejected", "id", id, "user_id", principal.ID)
		return nil, apperrors.Forbidden("You are not a party to this booking")
	}

	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		return nil, s.validationError("Status update validation failed", err)
	}
	if update.HostNotes != nil {
		if principal.ID != booking.HostID {
			return nil, apperrors.Validation("Only the host can add host notes", nil)
		}
		notes := sanitizer.NormalizeFreeText(*update.HostNotes)
		update.HostNotes = &notes
	}

	return s.transition(ctx, booking, update.Status, update.HostNotes, principal.ID)
}

// ApplySettlement runs as the system principal, so party checks are skipped.
// Redelivered events for a booking already in the target status are no-ops.
func (s *bookingService) ApplySettlement(ctx context.Context, event *model.SettlementEvent) (*model.Booking, error) {
	booking, err := s.load(ctx, event.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == event.Status {
		s.cfg.Log.Debug("Settlement already applied", "id", booking.ID, "status", booking.Status)
		return booking, nil
	}
	return s.transition(ctx, booking, event.Status, nil, auth.System().ID)
}

func (s *bookingService) Get(ctx context.Context, principal auth.Principal, id string) (*model.Booking, error) {
	if !principal.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(principal.ID) {
		return nil, apperrors.Forbidden("You are not a party to this booking")
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, principal auth.Principal, role model.BookingRole, limit int, offset int64) ([]*model.Booking, int64, error) {
	if !principal.Authenticated() {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	if !role.Valid() {
		return nil, 0, apperrors.Validation("role must be one of: renter, host", map[string]any{"role": string(role)})
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByParty(ctx, role, principal.ID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "user_id", principal.ID, "role", role, "error", errCount)
			errCount = mongotx.StoreError("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByParty(ctx, role, principal.ID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "user_id", principal.ID, "role", role, "error", errFind)
			errFind = mongotx.StoreError("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.VehicleID = sanitizer.NormalizeIdentifier(req.VehicleID)
	req.PickupLocation = sanitizer.NormalizeLocation(req.PickupLocation)
	req.DropoffLocation = sanitizer.NormalizeLocation(req.DropoffLocation)
	req.SpecialRequests = sanitizer.NormalizeFreeText(req.SpecialRequests)
}

func (s *bookingService) validationError(message string, err error) error {
	s.cfg.Log.Warn(message, "error", err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func (s *bookingService) price(ctx context.Context, vehicleID string, start, end time.Time) (*model.Vehicle, model.Quote, error) {
	if err := s.validator.ValidateDates(start, end, s.now()); err != nil {
		return nil, model.Quote{}, s.validationError("Booking dates are invalid", err)
	}

	vehicle, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		switch {
		case errors.Is(err, listingsrepo.ErrNotFound):
			return nil, model.Quote{}, apperrors.NotFoundWithID("Vehicle", vehicleID)
		case errors.Is(err, listingsrepo.ErrInvalidID):
			return nil, model.Quote{}, apperrors.Validation("Invalid vehicle ID format", map[string]any{"vehicle_id": vehicleID})
		}
		s.cfg.Log.Error("Failed to load vehicle", "vehicle_id", vehicleID, "error", err)
		return nil, model.Quote{}, mongotx.StoreError("Failed to load vehicle", err)
	}

	return vehicle, NewQuote(vehicle, start.UTC(), end.UTC(), s.cfg.ServiceFeeRate), nil
}

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to load booking", "id", id, "error", err)
		return nil, mongotx.StoreError("Failed to retrieve booking", err)
	}
	return booking, nil
}

// transition moves booking to next. Entering a status that holds the vehicle
// re-checks availability under the vehicle lock, so only one of several
// overlapping pending requests can be confirmed.
func (s *bookingService) transition(ctx context.Context, booking *model.Booking, next model.BookingStatus, hostNotes *string, actorID string) (*model.Booking, error) {
	from := booking.Status
	if !from.CanTransitionTo(next) {
		s.cfg.Log.Warn("Invalid booking transition", "id", booking.ID, "from", from, "to", next)
		return nil, apperrors.InvalidTransition(string(from), string(next))
	}

	change := repository.StatusChange{
		From:      from,
		To:        next,
		HostNotes: hostNotes,
		At:        s.now().UTC().Truncate(time.Millisecond),
	}

	var updated *model.Booking
	apply := func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdateStatus(ctx, booking.ID, change)
		return err
	}

	var err error
	if next.OccupiesVehicle() {
		err = s.withVehicleLock(ctx, booking.VehicleID, func() error {
			return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
				if err := s.checkAvailability(txCtx, booking.VehicleID, booking.StartDate, booking.EndDate, booking.ID); err != nil {
					return err
				}
				return apply(txCtx)
			})
		})
	} else {
		err = apply(ctx)
	}
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Booking status changed concurrently, reload and retry")
		}
		appErr := mongotx.StoreError("Failed to update booking status", err)
		if appErr.Code == apperrors.CodeConflict {
			s.cfg.Log.Warn("Booking status change rejected", "id", booking.ID, "to", next, "reason", appErr.Message)
		} else {
			s.cfg.Log.Error("Failed to update booking status", "id", booking.ID, "from", from, "to", next, "error", err)
		}
		return nil, appErr
	}

	s.cfg.Log.Info("Booking status updated",
		"id", updated.ID,
		"from", from,
		"to", updated.Status,
		"actor_id", actorID,
	)
	if err := s.publisher.StatusChanged(ctx, updated, from, actorID); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "id", updated.ID, "event", events.EventBookingStatusChanged, "error", err)
	}
	return updated, nil
}

func (s *bookingService) checkAvailability(ctx context.Context, vehicleID string, start, end time.Time, excludeID string) error {
	existing, err := s.repo.FindOccupying(ctx, vehicleID, start, end, excludeID)
	if err != nil {
		return mongotx.StoreError("Failed to check vehicle availability", err)
	}

	for _, b := range existing {
		if b.ID == excludeID {
			continue
		}
		if b.Overlaps(start, end) {
			return apperrors.Conflict("Car not available for selected dates").WithDetails(map[string]any{
				"conflicting_start": b.StartDate.Format(time.RFC3339),
				"conflicting_end":   b.EndDate.Format(time.RFC3339),
			})
		}
	}
	return nil
}

// withVehicleLock serializes calendar writes for one vehicle. The lock is
// released even if ctx has been cancelled.
func (s *bookingService) withVehicleLock(ctx context.Context, vehicleID string, fn func() error) error {
	lock := &model.VehicleLock{
		ID:        model.VehicleLockID(vehicleID),
		ExpiresAt: s.now().UTC().Add(s.cfg.BookingLockTTL),
	}

	if err := s.lockRepo.Create(ctx, lock); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			conflict := apperrors.Conflict("Vehicle is currently being booked, please retry")
			conflict.Retryable = true
			return conflict
		}
		return mongotx.StoreError("Failed to acquire vehicle lock", err)
	}
	defer func() {
		if err := s.lockRepo.Delete(context.WithoutCancel(ctx), lock.ID); err != nil {
			s.cfg.Log.Warn("Failed to release vehicle lock", "lock_id", lock.ID, "error", err)
		}
	}()

	return fn()
}
