package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		kind   apperr.Kind
	}{
		{apperr.New(apperr.CutoffPassed, "too late"), http.StatusForbidden, apperr.CutoffPassed},
		{apperr.New(apperr.DayBlocked, "holiday"), http.StatusForbidden, apperr.DayBlocked},
		{apperr.New(apperr.UnknownMealType, "brunch"), http.StatusBadRequest, apperr.UnknownMealType},
		{apperr.New(apperr.UserInactive, "inactive"), http.StatusConflict, apperr.UserInactive},
		{apperr.New(apperr.UserNotFound, "missing"), http.StatusNotFound, apperr.UserNotFound},
		{apperr.New(apperr.TransientStoreError, "db down"), http.StatusServiceUnavailable, apperr.TransientStoreError},
		{errors.New("boom"), http.StatusInternalServerError, apperr.Internal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		var body Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.kind, body.Kind)
	}
}

func TestInternalHidesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, errors.New("pq: password authentication failed"))

	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}
