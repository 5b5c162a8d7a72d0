package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/internal/bookings/repository"
	listingsrepo "carrental/internal/listings/repository"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ────────────────────────────────────────────────
// In-memory booking store
// ────────────────────────────────────────────────

type fakeBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking

	findErr      error
	beforeUpdate func(b *model.Booking)
}

func newFakeBookingRepository(bookings ...*model.Booking) *fakeBookingRepository {
	r := &fakeBookingRepository{bookings: map[string]*model.Booking{}}
	for _, b := range bookings {
		if b.ID == "" {
			b.ID = primitive.NewObjectID().Hex()
		}
		r.bookings[b.ID] = b
	}
	return r
}

func (r *fakeBookingRepository) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking.ID = primitive.NewObjectID().Hex()
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt
	stored := *booking
	r.bookings[booking.ID] = &stored
	return nil
}

func (r *fakeBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	if !primitive.IsValidObjectID(id) {
		return nil, bookingserrors.ErrInvalidID
	}
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

// FindOccupying mirrors the store query: inclusive range on both ends.
func (r *fakeBookingRepository) FindOccupying(_ context.Context, vehicleID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.VehicleID != vehicleID || b.ID == excludeID || !b.Status.OccupiesVehicle() {
			continue
		}
		if b.StartDate.After(end) || b.EndDate.Before(start) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeBookingRepository) FindByParty(_ context.Context, role model.BookingRole, userID string, limit int, offset int64) ([]*model.Booking, error) {
	all := r.byParty(role, userID)
	if offset >= int64(len(all)) {
		return []*model.Booking{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeBookingRepository) CountByParty(_ context.Context, role model.BookingRole, userID string) (int64, error) {
	return int64(len(r.byParty(role, userID))), nil
}

func (r *fakeBookingRepository) byParty(role model.BookingRole, userID string) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if (role == model.RoleHost && b.HostID == userID) || (role == model.RoleRenter && b.RenterID == userID) {
			copied := *b
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (r *fakeBookingRepository) UpdateStatus(_ context.Context, id string, change repository.StatusChange) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrStatusChanged
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(b)
	}
	if b.Status != change.From {
		return nil, bookingserrors.ErrStatusChanged
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	if change.HostNotes != nil {
		b.HostNotes = *change.HostNotes
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func (r *fakeBookingRepository) status(id string) model.BookingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[id].Status
}

// ────────────────────────────────────────────────
// Locks, vehicles, events
// ────────────────────────────────────────────────

type fakeLockRepository struct {
	mu    sync.Mutex
	held  map[string]bool
	taken int
}

func newFakeLockRepository() *fakeLockRepository {
	return &fakeLockRepository{held: map[string]bool{}}
}

func (r *fakeLockRepository) Create(_ context.Context, lock *model.VehicleLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[lock.ID] {
		return bookingserrors.ErrLockHeld
	}
	r.held[lock.ID] = true
	r.taken++
	return nil
}

func (r *fakeLockRepository) Delete(_ context.Context, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, lockID)
	return nil
}

func (r *fakeLockRepository) heldCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

type fakeVehicleRepository struct {
	vehicles map[string]*model.Vehicle
}

func (r *fakeVehicleRepository) FindByID(_ context.Context, id string) (*model.Vehicle, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, listingsrepo.ErrInvalidID
	}
	v, ok := r.vehicles[id]
	if !ok {
		return nil, listingsrepo.ErrNotFound
	}
	return v, nil
}

func (r *fakeVehicleRepository) FindByIDs(_ context.Context, ids []string) (map[string]*model.Vehicle, error) {
	out := map[string]*model.Vehicle{}
	for _, id := range ids {
		if v, ok := r.vehicles[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type publishedEvent struct {
	kind   string
	id     string
	status model.BookingStatus
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) BookingRequested(_ context.Context, b *model.Booking) error {
	return p.record("requested", b)
}

func (p *fakePublisher) StatusChanged(_ context.Context, b *model.Booking, _ model.BookingStatus, _ string) error {
	return p.record("status_changed", b)
}

func (p *fakePublisher) record(kind string, b *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{kind: kind, id: b.ID, status: b.Status})
	return p.err
}

var errBrokerDown = errors.New("broker down")
