package handler

import (
	"encoding/json"
	"net/http"

	"carrental/internal/reviews/service"
	"carrental/pkg/auth"
	"carrental/pkg/contracts"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// AlreadyReviewed is returned with 200 when a submission repeats an
// existing review.
type AlreadyReviewed struct {
	ID              string `json:"id"`
	AlreadyReviewed bool   `json:"already_reviewed"`
}

var _ contracts.Handler = (*ReviewHandler)(nil)

type ReviewHandler struct {
	service service.ReviewService
	log     *logger.Logger
}

func NewReviewHandler(service service.ReviewService, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		log:     log,
	}
}

func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Submit")
	if !ok {
		return
	}

	var sub model.ReviewSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, "Submit", apperrors.InvalidInput("Invalid request body"))
		return
	}

	review, err := h.service.Submit(r.Context(), principal, &sub)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeDuplicateReview) {
			existingID, _ := apperrors.AsAppError(err).Details["existing_id"].(string)
			if writeErr := httputil.WriteSuccess(w, AlreadyReviewed{ID: existingID, AlreadyReviewed: true}); writeErr != nil {
				h.log.Error("failed to write success response", "handler", "Submit", "operation", "WriteSuccess", "error", writeErr)
			}
			return
		}
		h.writeError(w, "Submit", err)
		return
	}

	if err := httputil.WriteCreated(w, review); err != nil {
		h.log.Error("failed to write created response", "handler", "Submit", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReviewHandler) Pending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Pending")
	if !ok {
		return
	}

	obligations := []*model.PendingReviewObligation{}
	for obligation, err := range h.service.ListPendingObligations(r.Context(), principal.ID) {
		if err != nil {
			h.writeError(w, "Pending", err)
			return
		}
		obligations = append(obligations, obligation)
	}

	if err := httputil.WriteSuccess(w, obligations); err != nil {
		h.log.Error("failed to write success response", "handler", "Pending", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReviewHandler) Rating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	summary, err := h.service.GetAggregateRating(r.Context(), ps.ByName("user_id"))
	if err != nil {
		h.writeError(w, "Rating", err)
		return
	}

	if err := httputil.WriteSuccess(w, summary); err != nil {
		h.log.Error("failed to write success response", "handler", "Rating", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReviewHandler) Received(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Received", err)
		return
	}

	reviews, total, err := h.service.ListReceived(r.Context(), ps.ByName("user_id"), limit, offset)
	if err != nil {
		h.writeError(w, "Received", err)
		return
	}

	if err := httputil.WritePaginated(w, reviews, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Received", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReviewHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reviews", h.Submit)
	router.GET("/api/v1/reviews/pending", h.Pending)
	router.GET("/api/v1/reviews/rating/:user_id", h.Rating)
	router.GET("/api/v1/reviews/user/:user_id", h.Received)
}

func (h *ReviewHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return principal, ok
}

func (h *ReviewHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
