package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rent360-scheduling-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", handler)
	return app
}

func decodeError(t *testing.T, res *http.Response) ErrorBody {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestWriteError_MapsKindsToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", apperror.Validation("op", "bad input", map[string]string{"amount": "must be greater than 0"}), http.StatusBadRequest, "validation"},
		{"invalid state", apperror.InvalidState("op", "nope", "paused"), http.StatusConflict, "invalid_state"},
		{"not found", apperror.NotFound("op", "agreement", "x"), http.StatusNotFound, "not_found"},
		{"transient", apperror.Transient("op", errors.New("lock busy")), http.StatusServiceUnavailable, "transient"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(func(ctx *fiber.Ctx) error { return tt.err })

			res, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.StatusCode)

			body := decodeError(t, res)
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestWriteError_Details(t *testing.T) {
	err := apperror.WithContext(apperror.InvalidState("pause agreement", "only active agreements can be paused", "cancelled"), "agreement_id", "a-1")
	app := newTestApp(func(ctx *fiber.Ctx) error { return err })

	res, reqErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, reqErr)

	body := decodeError(t, res)
	assert.Equal(t, "only active agreements can be paused", body.Message)
	assert.Equal(t, "cancelled", body.CurrentStatus)
	assert.Equal(t, "a-1", body.Context["agreement_id"])
}

func TestWriteError_HidesInternalAndSetsRetryAfter(t *testing.T) {
	app := newTestApp(func(ctx *fiber.Ctx) error { return errors.New("pq: password authentication failed") })
	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "internal server error", decodeError(t, res).Message)

	app = newTestApp(func(ctx *fiber.Ctx) error { return apperror.Transient("op", errors.New("timeout")) })
	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "2", res.Header.Get(fiber.HeaderRetryAfter))
}

func TestWriteError_KeepsFiberStatus(t *testing.T) {
	app := newTestApp(func(ctx *fiber.Ctx) error { return fiber.NewError(fiber.StatusRequestEntityTooLarge, "too big") })

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Equal(t, "too big", decodeError(t, res).Message)
}

type sampleRequest struct {
	Frequency string `json:"frequency" validate:"required,oneof=daily weekly"`
	Amount    int64  `json:"amount" validate:"gt=0"`
	StartsOn  string `json:"starts_on" validate:"required,datetime=2006-01-02"`
}

func TestValidateRequest(t *testing.T) {
	err := ValidateRequest(sampleRequest{Frequency: "hourly", Amount: 0, StartsOn: "tomorrow"})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "must be one of daily, weekly", appErr.Fields["frequency"])
	assert.Equal(t, "must be greater than 0", appErr.Fields["amount"])
	assert.Equal(t, "must be a date formatted as 2006-01-02", appErr.Fields["starts_on"])

	assert.NoError(t, ValidateRequest(sampleRequest{Frequency: "daily", Amount: 1, StartsOn: "2024-01-01"}))
}

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJwtMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(JwtMiddleware(testSecret))
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString(CallerID(ctx))
	})

	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"user_id claim", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"user_id": "provider-1", "exp": exp}), http.StatusOK, "provider-1"},
		{"sub claim", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "client-7", "exp": exp}), http.StatusOK, "client-7"},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": "x", "exp": exp}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"user_id": "x", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, ""},
		{"wrong alg", "Bearer " + sign(t, jwt.SigningMethodHS384, []byte(testSecret), jwt.MapClaims{"user_id": "x", "exp": exp}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"exp": exp}), http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			res, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.StatusCode)

			if tt.status == http.StatusOK {
				raw, err := io.ReadAll(res.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(raw))
			}
		})
	}
}
