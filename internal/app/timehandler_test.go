package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerTimeReportsBusinessDay(t *testing.T) {
	// 01:30 is still the previous business day; the boundary sits at 02:00.
	now := time.Date(2024, 3, 15, 1, 30, 0, 0, time.UTC)
	handler := serverTimeHandler(func() time.Time { return now })

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/time", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body serverTime
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.ServerTime.Equal(now))
	require.True(t, body.BusinessDay.Equal(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)))
}
