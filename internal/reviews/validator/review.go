package validator

import (
	"errors"
	"fmt"
	"strings"

	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return map[string]any{"fields": fields}
}

type ReviewValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReviewValidator(log *logger.Logger) *ReviewValidator {
	v := validator.New()

	if err := v.RegisterValidation("review_type", validateReviewType); err != nil {
		log.Fatal("Failed to register 'review_type' validator",
			"error", err,
		)
	}

	log.Info("Review validator initialized successfully")

	return &ReviewValidator{
		validate: v,
		logger:   log,
	}
}

func validateReviewType(fl validator.FieldLevel) bool {
	return model.ReviewType(fl.Field().String()).Valid()
}

func (v *ReviewValidator) ValidateRating(rating int) error {
	if rating < model.MinReviewRating || rating > model.MaxReviewRating {
		return ValidationErrors{
			ValidationError{
				Field:   "Rating",
				Message: fmt.Sprintf("rating must be between %d and %d", model.MinReviewRating, model.MaxReviewRating),
			},
		}
	}
	return nil
}

// ValidateComment measures the trimmed comment in runes.
func (v *ReviewValidator) ValidateComment(comment string) error {
	n := model.CommentLength(comment)
	if n < model.MinReviewCommentLength {
		return ValidationErrors{
			ValidationError{
				Field:   "Comment",
				Message: fmt.Sprintf("comment must be at least %d characters", model.MinReviewCommentLength),
			},
		}
	}
	if n > model.MaxReviewCommentLength {
		return ValidationErrors{
			ValidationError{
				Field:   "Comment",
				Message: fmt.Sprintf("comment must be at most %d characters", model.MaxReviewCommentLength),
			},
		}
	}
	return nil
}

func (v *ReviewValidator) Validate(sub *model.ReviewSubmission) error {
	if err := v.validate.Struct(sub); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ReviewValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "review_type":
			message = fmt.Sprintf("%s must be one of: %s, %s", err.Field(), model.RenterToHost, model.HostToRenter)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
