package controller_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rent360-scheduling-be/internal/controller"
	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/internal/pkg/lock"
	"rent360-scheduling-be/internal/pkg/logger"
	"rent360-scheduling-be/internal/pkg/serverutils"
	"rent360-scheduling-be/internal/repository/memory"
	"rent360-scheduling-be/internal/repository/unitofwork"
	"rent360-scheduling-be/internal/service"
	"rent360-scheduling-be/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "controller-secret"

type harness struct {
	app   *fiber.App
	clock *testutil.Clock
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	clock := testutil.NewClock(time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC))
	svc := service.NewSchedulingService(
		unitofwork.NewRepositoryFactory(db),
		lock.NewLocalLocker(),
		memory.NewAgreementCache(time.Minute),
		&testutil.Notifier{},
		logger.NewNopLogger(),
		clock.Now,
		service.SchedulingOptions{OperationTimeout: 5 * time.Second},
	)
	sweep := service.NewSweepService(svc, "15 0 * * *", time.UTC, logger.NewNopLogger())

	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler})
	app.Use(serverutils.ErrorHandlerMiddleware())
	v1 := app.Group("/api/scheduling/v1", serverutils.JwtMiddleware(secret))
	controller.NewRecurringServiceController(svc).RegisterRoutes(v1)
	controller.NewInstanceController(svc).RegisterRoutes(v1)
	controller.NewSweepController(sweep).RegisterRoutes(v1)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "client-42",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	return &harness{app: app, clock: clock, token: token}
}

type envelope[T any] struct {
	Success       bool              `json:"success"`
	Code          int               `json:"code"`
	Message       string            `json:"message"`
	Data          T                 `json:"data"`
	Kind          string            `json:"kind"`
	CurrentStatus string            `json:"current_status"`
	Fields        map[string]string `json:"fields"`
}

func do[T any](t *testing.T, h *harness, method, path string, body interface{}) (int, envelope[T]) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/scheduling/v1"+path, reader)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+h.token)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	res, err := h.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var env envelope[T]
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return res.StatusCode, env
}

func startBody() map[string]interface{} {
	return map[string]interface{}{
		"service_type":          "cleaning",
		"provider_id":           "provider-1",
		"frequency":             "Weekly",
		"amount":                45000,
		"location":              "Los Leones 100",
		"first_occurrence_date": "2024-01-01",
	}
}

func TestRecurringServiceController_Lifecycle(t *testing.T) {
	h := newHarness(t)

	status, started := do[dto.StartRecurringServiceResponse](t, h, http.MethodPost, "/recurring-services", startBody())
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 201, started.Code)
	assert.Equal(t, "client-42", started.Data.Agreement.ClientId)
	assert.Equal(t, "weekly", started.Data.Agreement.Frequency)
	id := started.Data.Agreement.Id.String()

	status, shown := do[dto.AgreementResponse](t, h, http.MethodGet, "/recurring-services/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", shown.Data.Status)

	status, completed := do[dto.InstanceTransitionResponse](t, h, http.MethodPost, "/recurring-services/"+id+"/current-instance/complete", map[string]interface{}{"rating": 5})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", completed.Data.Instance.Status)
	require.NotNil(t, completed.Data.NextInstance)
	assert.Equal(t, "2024-01-08", completed.Data.NextInstance.ScheduledDate)

	status, paused := do[dto.AgreementTransitionResponse](t, h, http.MethodPost, "/recurring-services/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paused", paused.Data.Agreement.Status)

	status, conflict := do[any](t, h, http.MethodPost, "/recurring-services/"+id+"/pause", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", conflict.Kind)
	assert.Equal(t, "paused", conflict.CurrentStatus)

	status, resumed := do[dto.AgreementTransitionResponse](t, h, http.MethodPost, "/recurring-services/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", resumed.Data.Agreement.Status)

	status, amount := do[dto.AgreementResponse](t, h, http.MethodPatch, "/recurring-services/"+id+"/amount", map[string]interface{}{"amount": 50000})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(50000), amount.Data.Amount)

	status, instances := do[[]dto.InstanceResponse](t, h, http.MethodGet, "/recurring-services/"+id+"/instances", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, instances.Data, 2)
	assert.Equal(t, int64(45000), instances.Data[1].Amount)

	status, cancelled := do[dto.AgreementTransitionResponse](t, h, http.MethodPost, "/recurring-services/"+id+"/cancel", map[string]interface{}{"reason": "moving"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", cancelled.Data.Agreement.Status)
	assert.Equal(t, "moving", cancelled.Data.Agreement.CancellationReason)

	status, list := do[[]dto.AgreementResponse](t, h, http.MethodGet, "/recurring-services?status=cancelled", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list.Data, 1)
}

func TestRecurringServiceController_ValidationErrors(t *testing.T) {
	h := newHarness(t)

	body := startBody()
	body["frequency"] = "hourly"
	body["amount"] = 0
	status, res := do[any](t, h, http.MethodPost, "/recurring-services", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation", res.Kind)
	assert.Contains(t, res.Fields, "frequency")
	assert.Contains(t, res.Fields, "amount")

	status, res = do[any](t, h, http.MethodGet, "/recurring-services/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, res.Fields, "id")

	status, res = do[any](t, h, http.MethodGet, "/recurring-services/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", res.Kind)

	status, _ = do[any](t, h, http.MethodGet, "/recurring-services?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestInstanceController(t *testing.T) {
	h := newHarness(t)

	_, started := do[dto.StartRecurringServiceResponse](t, h, http.MethodPost, "/recurring-services", startBody())
	instanceID := started.Data.CurrentInstance.Id.String()

	status, res := do[dto.InstanceTransitionResponse](t, h, http.MethodPost, "/instances/"+instanceID+"/start", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "in_progress", res.Data.Instance.Status)

	status, outcome := do[dto.InstanceResponse](t, h, http.MethodPost, "/instances/"+instanceID+"/outcome", map[string]interface{}{"notes": "windows done"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "windows done", outcome.Data.ProviderNotes)

	status, invalid := do[any](t, h, http.MethodPost, "/instances/"+instanceID+"/complete", map[string]interface{}{"rating": 7})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, invalid.Fields, "rating")

	status, done := do[dto.InstanceTransitionResponse](t, h, http.MethodPost, "/instances/"+instanceID+"/complete", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", done.Data.Instance.Status)

	status, again := do[any](t, h, http.MethodPost, "/instances/"+instanceID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "completed", again.CurrentStatus)

	nextID := done.Data.NextInstance.Id.String()
	h.clock.Set(time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC))
	status, missed := do[dto.MarkMissedResponse](t, h, http.MethodPost, "/instances/"+nextID+"/mark-missed", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, missed.Data.Marked)
	require.NotNil(t, missed.Data.NextInstance)
	assert.Equal(t, "2024-01-15", missed.Data.NextInstance.ScheduledDate)

	status, cancelled := do[dto.InstanceTransitionResponse](t, h, http.MethodPost, "/instances/"+missed.Data.NextInstance.Id.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", cancelled.Data.Instance.Status)
	assert.NotNil(t, cancelled.Data.NextInstance)
}

func TestSweepController(t *testing.T) {
	h := newHarness(t)

	status, _ := do[dto.StartRecurringServiceResponse](t, h, http.MethodPost, "/recurring-services", startBody())
	require.Equal(t, http.StatusCreated, status)

	h.clock.Set(time.Date(2024, time.January, 2, 0, 15, 0, 0, time.UTC))
	status, report := do[dto.SweepReportResponse](t, h, http.MethodPost, "/sweep", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2024-01-02", report.Data.Today)
	assert.Equal(t, 1, report.Data.Missed)
	assert.Equal(t, 1, report.Data.Materialized)
}

func TestRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scheduling/v1/recurring-services", nil)
	res, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
