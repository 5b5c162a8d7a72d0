package service

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	listingsrepo "carrental/internal/listings/repository"
	reviewserrors "carrental/internal/reviews/errors"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ────────────────────────────────────────────────
// Reviews with a unique (booking, reviewer, type) index
// ────────────────────────────────────────────────

type fakeReviewRepository struct {
	mu      sync.Mutex
	reviews []*model.Review

	// raceWinner is inserted just before Create, emulating a concurrent submit.
	raceWinner *model.Review
}

func (r *fakeReviewRepository) FindExisting(_ context.Context, bookingID, reviewerID string, reviewType model.ReviewType) (*model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.BookingID == bookingID && rv.ReviewerID == reviewerID && rv.Type == reviewType {
			copied := *rv
			return &copied, nil
		}
	}
	return nil, reviewserrors.ErrNotFound
}

func (r *fakeReviewRepository) Create(ctx context.Context, review *model.Review) error {
	if r.raceWinner != nil {
		winner := r.raceWinner
		r.raceWinner = nil
		if err := r.Create(ctx, winner); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.BookingID == review.BookingID && rv.ReviewerID == review.ReviewerID && rv.Type == review.Type {
			return reviewserrors.ErrDuplicate
		}
	}
	review.ID = primitive.NewObjectID().Hex()
	review.CreatedAt = time.Now().UTC()
	copied := *review
	r.reviews = append(r.reviews, &copied)
	return nil
}

func (r *fakeReviewRepository) Aggregate(_ context.Context, revieweeID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum, count int64
	for _, rv := range r.reviews {
		if rv.RevieweeID == revieweeID {
			sum += int64(rv.Rating)
			count++
		}
	}
	return sum, count, nil
}

func (r *fakeReviewRepository) FindByReviewee(_ context.Context, revieweeID string, limit int, offset int64) ([]*model.Review, error) {
	all := r.received(revieweeID)
	if offset >= int64(len(all)) {
		return []*model.Review{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeReviewRepository) CountByReviewee(_ context.Context, revieweeID string) (int64, error) {
	return int64(len(r.received(revieweeID))), nil
}

func (r *fakeReviewRepository) received(revieweeID string) []*model.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Review
	for _, rv := range r.reviews {
		if rv.RevieweeID == revieweeID {
			out = append(out, rv)
		}
	}
	slices.Reverse(out)
	return out
}

// ────────────────────────────────────────────────
// Bookings, vehicles, parties
// ────────────────────────────────────────────────

type fakeBookingReader struct {
	bookings []*model.Booking
	yielded  int
	err      error
}

func (r *fakeBookingReader) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, reviewserrors.ErrInvalidID
	}
	for _, b := range r.bookings {
		if b.ID == id {
			copied := *b
			return &copied, nil
		}
	}
	return nil, reviewserrors.ErrBookingNotFound
}

func (r *fakeBookingReader) CompletedForParty(_ context.Context, userID string) iter.Seq2[*model.Booking, error] {
	return func(yield func(*model.Booking, error) bool) {
		if r.err != nil {
			yield(nil, r.err)
			return
		}
		for _, b := range r.bookings {
			if b.Status != model.BookingCompleted || !b.IsParty(userID) {
				continue
			}
			r.yielded++
			copied := *b
			if !yield(&copied, nil) {
				return
			}
		}
	}
}

type fakeVehicleRepository struct {
	vehicles map[string]*model.Vehicle
}

func (r *fakeVehicleRepository) FindByID(_ context.Context, id string) (*model.Vehicle, error) {
	if v, ok := r.vehicles[id]; ok {
		return v, nil
	}
	return nil, listingsrepo.ErrNotFound
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

type fakePartyRepository struct {
	parties map[string]*model.Party
	err     error
}

func (r *fakePartyRepository) FindByIDs(_ context.Context, ids []string) (map[string]*model.Party, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := map[string]*model.Party{}
	for _, id := range ids {
		if p, ok := r.parties[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []*model.Review
	err       error
}

func (p *fakePublisher) ReviewSubmitted(_ context.Context, review *model.Review) error {
	p.published = append(p.published, review)
	return p.err
}

var errDirectoryDown = errors.New("directory down")
