// AngelaMos | 2026
// core_test.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get user: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("submit: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("gate: %w", ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("gate: %w", ErrForbidden), http.StatusForbidden},
		{ErrAccountBlocked, http.StatusForbidden},
		{fmt.Errorf("create: %w", ErrDuplicateKey), http.StatusConflict},
		{DuplicateError("email"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("login: %w", AccountBlockedError())

	assert.True(t, IsAppError(err))
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestJSONErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("pq: relation missing"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "relation")
}

func TestPaginatedMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []int{1, 2}, 2, 10, 21)

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"accuracy":92.5}`)))
	assert.InDelta(t, 92.5, m["accuracy"], 0.001)

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))

	v, err := JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "analytics:user:42", Key("analytics:", "user", "", ":42"))
	assert.Equal(t, "", Key())
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}
