package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autovoyage/service-rental/internal/application"
	bookingDomain "github.com/autovoyage/service-rental/internal/domain/booking"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/autovoyage/service-rental/internal/platform/middleware"
	"github.com/autovoyage/service-rental/internal/repository/memory"
)

type stubVerifier map[string]auth.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

const (
	ownerToken  = "owner-token"
	renterToken = "renter-token"
	otherToken  = "other-token"
)

var cookie = middleware.CookieSettings{Name: "authToken", MaxAge: 3600}

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	log := zap.NewNop()
	publisher := application.NoopEventPublisher{}
	cars := application.NewCarService(store.Cars(), publisher, log)
	bookings := application.NewBookingService(store.Bookings(), store.Cars(),
		bookingDomain.NewDailyRatePricingStrategy(), publisher, log)

	verifier := stubVerifier{
		ownerToken:  {UID: "u1", Email: "owner@x.com", DisplayName: "Olivia Owner"},
		renterToken: {UID: "u2", Email: "a@x.com", DisplayName: "Alice"},
		otherToken:  {UID: "u3", Email: "b@x.com"},
	}
	authMW := middleware.AuthMiddleware(verifier, cookie)
	pass := func(c *gin.Context) { c.Next() }

	r := gin.New()
	NewCarHandler(cars).RegisterRoutes(&r.RouterGroup, authMW)
	NewBookingHandler(bookings).RegisterRoutes(&r.RouterGroup, authMW, pass)
	NewOwnerBookingHandler(bookings).RegisterRoutes(&r.RouterGroup, authMW)
	NewAuthHandler(verifier, cookie, log).RegisterRoutes(&r.RouterGroup, authMW, pass)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createCar(t *testing.T, r http.Handler, rate float64) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/cars", ownerToken, map[string]any{
		"model":                     "Toyota Corolla",
		"dailyRentalPrice":          rate,
		"vehicleRegistrationNumber": "B-1234-XYZ",
		"imageUrl":                  "https://img.example/corolla.jpg",
		"location":                  "Jakarta",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	id, ok := body["insertedId"].(string)
	require.True(t, ok)
	return id
}

func createBooking(t *testing.T, r http.Handler, carID string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/bookings", renterToken, map[string]any{
		"carId": carID, "startDate": "2025-06-01", "endDate": "2025-06-04",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id, ok := decode(t, w)["insertedId"].(string)
	require.True(t, ok)
	return id
}

func TestCars_PublicBrowseAndAuthenticatedWrites(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/cars", "", map[string]any{"model": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	carID := createCar(t, r, 50)

	w = do(t, r, http.MethodGet, "/cars?search=jakarta", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, carID, list[0]["_id"])
	assert.Equal(t, "owner@x.com", list[0]["ownerEmail"])
	assert.Equal(t, "Olivia Owner", list[0]["ownerName"])
	assert.EqualValues(t, 0, list[0]["bookingCount"])

	w = do(t, r, http.MethodGet, "/cars/"+carID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/cars/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/cars/mine", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestUpdateCar_NonOwnerForbidden(t *testing.T) {
	r, _ := newTestRouter(t)
	carID := createCar(t, r, 50)

	w := do(t, r, http.MethodPut, "/cars/"+carID, otherToken, map[string]any{"dailyRentalPrice": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized: You can only update your own cars", decode(t, w)["error"])

	w = do(t, r, http.MethodGet, "/cars/"+carID, "", nil)
	assert.EqualValues(t, 50, decode(t, w)["dailyRentalPrice"])

	w = do(t, r, http.MethodPut, "/cars/"+carID, ownerToken, map[string]any{"dailyRentalPrice": 60, "bookingCount": 99})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["modifiedCount"])

	w = do(t, r, http.MethodGet, "/cars/"+carID, "", nil)
	body := decode(t, w)
	assert.EqualValues(t, 60, body["dailyRentalPrice"])
	assert.EqualValues(t, 0, body["bookingCount"])

	w = do(t, r, http.MethodDelete, "/cars/"+carID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, "/cars/"+carID, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["deletedCount"])
}

func TestBookings_RequireAuth(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/bookings"},
		{http.MethodPost, "/bookings"},
		{http.MethodGet, "/bookings/check/x/a@x.com"},
		{http.MethodGet, "/owner/bookings"},
	} {
		w := do(t, r, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}

	w := do(t, r, http.MethodGet, "/bookings", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBooking_PricedServerSideAndDuplicateConflicts(t *testing.T) {
	r, _ := newTestRouter(t)
	carID := createCar(t, r, 50)

	w := do(t, r, http.MethodPost, "/bookings", renterToken, map[string]any{
		"carId": carID, "startDate": "2025-06-01", "endDate": "2025-06-04", "totalCost": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	booking := decode(t, w)["booking"].(map[string]any)
	assert.EqualValues(t, 3, booking["totalDays"])
	assert.EqualValues(t, 150, booking["totalCost"])
	assert.Equal(t, "pending", booking["status"])
	assert.Equal(t, "a@x.com", booking["renterEmail"])
	assert.Equal(t, "owner@x.com", booking["carOwnerEmail"])

	w = do(t, r, http.MethodPost, "/bookings", renterToken, map[string]any{
		"carId": carID, "startDate": "2025-07-01", "endDate": "2025-07-02",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "You already have an active booking for this car", decode(t, w)["error"])

	w = do(t, r, http.MethodGet, "/cars/"+carID, "", nil)
	assert.EqualValues(t, 1, decode(t, w)["bookingCount"])
}

func TestCreateBooking_Validation(t *testing.T) {
	r, _ := newTestRouter(t)
	carID := createCar(t, r, 50)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing car", map[string]any{"startDate": "2025-06-01", "endDate": "2025-06-04"}, http.StatusBadRequest},
		{"bad date", map[string]any{"carId": carID, "startDate": "June 1", "endDate": "2025-06-04"}, http.StatusBadRequest},
		{"end before start", map[string]any{"carId": carID, "startDate": "2025-06-04", "endDate": "2025-06-01"}, http.StatusBadRequest},
		{"unknown car", map[string]any{"carId": "6f1c1c8e-0000-4000-8000-000000000000", "startDate": "2025-06-01", "endDate": "2025-06-04"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/bookings", renterToken, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestListBookings_DanglingCarImageIsNull(t *testing.T) {
	r, _ := newTestRouter(t)
	carID := createCar(t, r, 50)
	createBooking(t, r, carID)

	w := do(t, r, http.MethodDelete, "/cars/"+carID, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/bookings", renterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	v, present := list[0]["carImageUrl"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestUpdateAndDeleteBooking(t *testing.T) {
	r, store := newTestRouter(t)
	carID := createCar(t, r, 50)
	bookingID := createBooking(t, r, carID)

	w := do(t, r, http.MethodPut, "/bookings/"+bookingID, otherToken, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPut, "/bookings/"+bookingID, renterToken, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/bookings/"+bookingID, renterToken, map[string]any{
		"startDate": "2025-06-01", "endDate": "2025-06-06",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["modifiedCount"])
	assert.EqualValues(t, 250, body["booking"].(map[string]any)["totalCost"])

	w = do(t, r, http.MethodDelete, "/bookings/"+bookingID, renterToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPut, "/bookings/"+bookingID, renterToken, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["modifiedCount"])

	w = do(t, r, http.MethodPut, "/bookings/"+bookingID, renterToken, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["modifiedCount"])

	w = do(t, r, http.MethodDelete, "/bookings/"+bookingID, renterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["deletedCount"])
	assert.Zero(t, store.BookingTotal())

	w = do(t, r, http.MethodGet, "/cars/"+carID, "", nil)
	assert.EqualValues(t, 0, decode(t, w)["bookingCount"])
}

func TestCheckActiveBooking(t *testing.T) {
	r, _ := newTestRouter(t)
	carID := createCar(t, r, 50)

	w := do(t, r, http.MethodGet, "/bookings/check/"+carID+"/a@x.com", renterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["hasActiveBooking"])
	assert.Nil(t, body["booking"])

	bookingID := createBooking(t, r, carID)

	w = do(t, r, http.MethodGet, "/bookings/check/"+carID+"/A@X.com", renterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["hasActiveBooking"])
	assert.Equal(t, bookingID, body["booking"].(map[string]any)["_id"])

	w = do(t, r, http.MethodGet, "/bookings/check/"+carID+"/a@x.com", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOwnerTransitions(t *testing.T) {
	r, _ := newTestRouter(t)
	carID := createCar(t, r, 50)
	bookingID := createBooking(t, r, carID)

	w := do(t, r, http.MethodPost, "/owner/bookings/"+bookingID+"/confirm", renterToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/owner/bookings/"+bookingID+"/complete", ownerToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/owner/bookings/"+bookingID+"/confirm", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", decode(t, w)["booking"].(map[string]any)["status"])

	w = do(t, r, http.MethodPut, "/bookings/"+bookingID, renterToken, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/owner/bookings/"+bookingID+"/complete", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/owner/bookings/stats", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["totalBookings"])
	assert.EqualValues(t, 1, body["byStatus"].(map[string]any)["completed"])

	w = do(t, r, http.MethodGet, "/owner/bookings", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestAuthLoginLogout(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/auth/login", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"idToken": "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"idToken": renterToken})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "a@x.com", body["user"].(map[string]any)["email"])

	setCookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "authToken="+renterToken)
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "SameSite=Strict")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: renterToken})
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "Alice", decode(t, me)["user"].(map[string]any)["name"])

	w = do(t, r, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(out, "authToken=;"), out)
	assert.Contains(t, out, "Max-Age=0")
}
