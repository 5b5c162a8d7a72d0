package validator

import (
	"strings"
	"testing"

	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRating(t *testing.T) {
	v := NewReviewValidator(logger.Discard())
	for _, r := range []int{1, 3, 5} {
		assert.NoError(t, v.ValidateRating(r), "rating %d", r)
	}
	for _, r := range []int{-1, 0, 6} {
		assert.Error(t, v.ValidateRating(r), "rating %d", r)
	}
}

func TestValidateComment_Boundary(t *testing.T) {
	v := NewReviewValidator(logger.Discard())

	assert.Error(t, v.ValidateComment("123456789"), "9 characters")
	assert.NoError(t, v.ValidateComment("1234567890"), "10 characters")
	assert.Error(t, v.ValidateComment("   123456789   "), "padding does not count")
	assert.NoError(t, v.ValidateComment("ñandú ñandú"), "runes, not bytes")
	assert.Error(t, v.ValidateComment(strings.Repeat("a", model.MaxReviewCommentLength+1)))
}

func TestValidate(t *testing.T) {
	v := NewReviewValidator(logger.Discard())
	valid := model.ReviewSubmission{
		BookingID: "65f0c0ffee65f0c0ffee65f0",
		Rating:    5,
		Comment:   "Spotless car and easy pickup",
		Type:      model.RenterToHost,
	}
	assert.NoError(t, v.Validate(&valid))

	bad := valid
	bad.Type = "renter_to_car"
	var verrs ValidationErrors
	require.ErrorAs(t, v.Validate(&bad), &verrs)
	assert.Equal(t, "Type", verrs[0].Field)

	bad = valid
	bad.BookingID = ""
	require.ErrorAs(t, v.Validate(&bad), &verrs)
	assert.Equal(t, "BookingID", verrs[0].Field)
}
