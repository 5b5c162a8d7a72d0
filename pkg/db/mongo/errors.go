package mongo

import (
	"context"
	"errors"

	apperrors "carrental/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// IsTransient reports store failures that may succeed when retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err)
}

// StoreError converts an unclassified repository error into an AppError.
// AppErrors pass through untouched.
func StoreError(message string, err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if IsTransient(err) {
		return apperrors.Transient(message, err)
	}
	return apperrors.Internal(message, err)
}
