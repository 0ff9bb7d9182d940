package app

import (
	"net/http"
	"time"

	"github.com/mealpoint/mealpoint/internal/platform/httpx"
	"github.com/mealpoint/mealpoint/internal/shared"
)

// serverTime is the clock snapshot clients use to align their day pickers
// with the backend's business-day boundary.
type serverTime struct {
	ServerTime  time.Time `json:"server_time"`
	BusinessDay time.Time `json:"business_day"`
}

func serverTimeHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := now()
		httpx.JSON(w, http.StatusOK, serverTime{
			ServerTime:  t,
			BusinessDay: shared.BusinessDay(t),
		})
	}
}
