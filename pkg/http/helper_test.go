package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "carrental/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"defaults", "", 10, 0, false},
		{"explicit", "?limit=25&offset=50", 25, 50, false},
		{"clamped limit", "?limit=1000", 100, 0, false},
		{"negative offset", "?offset=-4", 10, 0, false},
		{"bad limit", "?limit=abc", 0, 0, true},
		{"bad offset", "?offset=1.5", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/bookings"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(r)
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestExtractTime(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/q?start_date=2026-03-10&end_date=2026-03-12T10:00:00Z", nil)

	start, err := ExtractTime(r, "start_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), start)

	end, err := ExtractTime(r, "end_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC), end)

	_, err = ExtractTime(r, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, apperrors.Conflict("car not available for selected dates")))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"CONFLICT"`)

	rec = httptest.NewRecorder()
	require.NoError(t, WriteError(rec, errors.New("mongo: secret detail")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")

	rec = httptest.NewRecorder()
	require.NoError(t, WriteError(rec, apperrors.Transient("store unreachable", nil)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)
}
