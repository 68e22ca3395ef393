package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"decal_manager/internal/models"
	"decal_manager/internal/repository/memory"
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReplier struct {
	mu       sync.Mutex
	phones   []string
	messages []string
}

func (r *fakeReplier) SendTextMessage(_ context.Context, phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phones = append(r.phones, phone)
	r.messages = append(r.messages, message)
	return nil
}

type testAPI struct {
	t       *testing.T
	router  *gin.Engine
	store   *memory.Store
	replier *fakeReplier
}

func newTestAPI(t *testing.T, checks ...HealthCheck) *testAPI {
	t.Helper()
	store := memory.NewStore()
	deps := services.Deps{Store: store, Locker: services.NewLocalLocker()}
	replier := &fakeReplier{}
	router := SetupRouter(RouterConfig{
		Services: Services{
			Orders:     services.NewOrderService(deps),
			LineItems:  services.NewLineItemService(deps),
			Stages:     services.NewStageService(deps),
			Scheduling: services.NewSchedulingService(deps),
			Employees:  services.NewEmployeeService(deps),
		},
		HealthChecks: checks,
		Replier:      replier,
	})
	return &testAPI{t: t, router: router, store: store, replier: replier}
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// seedCatalog adds one product with the given stock and a service using 2 per unit.
func (a *testAPI) seedCatalog(stock int) (*models.Product, *models.Service) {
	a.t.Helper()
	ctx := context.Background()
	product := &models.Product{SKU: "VNL-BLK", Name: "Black vinyl", Unit: "m", StockQuantity: stock}
	require.NoError(a.t, a.store.Products().Create(ctx, product))
	service := &models.Service{Name: "Hood wrap", UnitPrice: decimal.NewFromInt(350000), StandardWorkUnits: decimal.NewFromInt(2)}
	require.NoError(a.t, a.store.Catalog().CreateService(ctx, service))
	require.NoError(a.t, a.store.Catalog().CreateComponent(ctx, &models.BillOfMaterialsEntry{ServiceID: service.ID, ProductID: product.ID, QuantityPerUnit: 2}))
	return product, service
}

func (a *testAPI) createOrder() models.Order {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/orders", CreateOrderRequest{CustomerName: "Budi", CustomerPhone: "0812"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Order](a.t, w)
}

func TestOrderAndLineItemEndpoints(t *testing.T) {
	api := newTestAPI(t)
	product, service := api.seedCatalog(5)
	order := api.createOrder()
	assert.Equal(t, models.OrderNew, order.Status)

	w := api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/line-items", order.ID), LineItemRequest{ServiceID: service.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.OrderLineItem](t, w)

	w = api.do(http.MethodPut, fmt.Sprintf("/api/line-items/%d", item.ID), LineItemRequest{ServiceID: service.ID, Quantity: 3})
	require.Equal(t, http.StatusConflict, w.Code)
	failure := decode[ErrorResponse](t, w)
	assert.Equal(t, "insufficient_stock", failure.Code)
	details := failure.Details.(map[string]interface{})
	assert.EqualValues(t, product.ID, details["product_id"])
	assert.EqualValues(t, 1, details["deficit"])

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Order](t, w)
	assert.Equal(t, "700000.00", got.TotalAmount.StringFixed(2))
	assert.Len(t, got.LineItems, 1)

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Code)

	stored, err := api.store.Products().GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.StockQuantity)
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	_, service := api.seedCatalog(5)
	order := api.createOrder()

	w := api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/line-items", order.ID), LineItemRequest{ServiceID: service.ID, Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, w).Code)

	w = api.do(http.MethodGet, "/api/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, w).Code)

	w = api.do(http.MethodPost, "/api/orders", map[string]string{"vehicle_plate": "B 1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStageEndpoints(t *testing.T) {
	api := newTestAPI(t)
	order := api.createOrder()

	w := api.do(http.MethodGet, "/api/stages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]models.StageDefinition](t, w)["stages"], len(models.Stages()))

	w = api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/stages/next", order.ID), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decode[models.OrderStageHistory](t, w)
	assert.Equal(t, models.StageSurvey, entry.Stage)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d/stages/current", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode[services.StageProgress](t, w)
	require.NotNil(t, progress.Stage)
	assert.Equal(t, models.StageSurvey, *progress.Stage)
	assert.Equal(t, 10, progress.CompletionPercentage)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d/stages/can-transition?stage=design", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]interface{}](t, w)["allowed"])

	w = api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/stages", order.ID), StageEntryRequest{Stage: models.StageCompleted, Notes: "legacy import"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/stages/next", order.ID), NextStageRequest{Notes: "again"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "terminal_stage", decode[ErrorResponse](t, w).Code)

	w = api.do(http.MethodPatch, fmt.Sprintf("/api/stage-history/%d", entry.ID), CorrectNotesRequest{Notes: "measured twice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "measured twice", decode[models.OrderStageHistory](t, w).Notes)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d/stages", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]models.OrderStageHistory](t, w)["history"], 2)
}

func TestWorkUnitEndpoints(t *testing.T) {
	api := newTestAPI(t)
	_, service := api.seedCatalog(10)
	first := api.createOrder()
	second := api.createOrder()
	for _, order := range []models.Order{first, second} {
		w := api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/line-items", order.ID), LineItemRequest{ServiceID: service.ID, Quantity: 1})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := api.do(http.MethodPost, "/api/employees", CreateEmployeeRequest{FullName: "Agus", PhoneNumber: "0811"})
	require.Equal(t, http.StatusCreated, w.Code)
	tech := decode[models.Employee](t, w)

	w = api.do(http.MethodPost, "/api/daily-schedules", DailyScheduleRequest{TechnicianID: tech.ID, WorkDate: "2026-03-02"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	schedule := decode[models.TechnicianDailySchedule](t, w)

	w = api.do(http.MethodPost, "/api/daily-schedules", DailyScheduleRequest{TechnicianID: tech.ID, WorkDate: "02/03/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/time-slots", TimeSlotRequest{StartTime: "09:00", EndTime: "11:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	slot := decode[models.TimeSlotDefinition](t, w)

	book := WorkUnitRequest{DailyScheduleID: schedule.ID, TimeSlotDefinitionID: slot.ID, OrderID: &first.ID, Status: models.WorkUnitBooked}
	w = api.do(http.MethodPost, "/api/work-units", book)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	unit := decode[models.ScheduledWorkUnit](t, w)

	book.OrderID = &second.ID
	w = api.do(http.MethodPost, "/api/work-units", book)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "slot_already_booked", decode[ErrorResponse](t, w).Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", first.ID), nil)
	assert.Equal(t, models.OrderInProgress, decode[models.Order](t, w).Status)

	complete := WorkUnitRequest{DailyScheduleID: schedule.ID, TimeSlotDefinitionID: slot.ID, OrderID: &first.ID, Status: models.WorkUnitCompleted}
	w = api.do(http.MethodPut, fmt.Sprintf("/api/work-units/%d", unit.ID), complete)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/work-units?order_id=%d&status=completed", first.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]models.ScheduledWorkUnit](t, w)["work_units"], 1)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/work-units/%d", unit.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.WorkUnitCompleted, decode[models.ScheduledWorkUnit](t, w).Status)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/status/recompute", first.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(models.OrderCompleted), decode[map[string]interface{}](t, w)["order_status"])

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/work-units/%d", unit.ID), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "work_unit_completed", decode[ErrorResponse](t, w).Code)
}

func TestRespondErrorClasses(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"validation", fmt.Errorf("%w: quantity", services.ErrValidation), http.StatusBadRequest, "validation_failed", false},
		{"not found", &services.NotFoundError{Entity: "order", ID: 1}, http.StatusNotFound, "not_found", false},
		{"concurrent", fmt.Errorf("%w: stale", services.ErrConcurrentUpdate), http.StatusConflict, "concurrent_update", true},
		{"illegal transition", fmt.Errorf("%w: design", services.ErrIllegalTransition), http.StatusConflict, "illegal_stage_transition", false},
		{"completed work", services.ErrOrderHasCompletedWork, http.StatusConflict, "order_has_completed_work", false},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout", true},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "internal_error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.retryable, body.Retryable)
			if tt.retryable {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))

	w = api.do(http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t,
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	w := api.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestWhatsAppWebhook(t *testing.T) {
	api := newTestAPI(t)
	order := api.createOrder()
	w := api.do(http.MethodPost, "/api/employees", CreateEmployeeRequest{FullName: "Agus", PhoneNumber: "0812-3456"})
	require.Equal(t, http.StatusCreated, w.Code)

	webhook := func(from, text string) {
		var req WebhookRequest
		req.From = from
		req.Message.Text = text
		w := api.do(http.MethodPost, "/api/whatsapp/webhook", req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	webhook("6281234567@s.whatsapp.net", "hello")
	webhook("628123456@s.whatsapp.net", fmt.Sprintf("/next %d arrived on site", order.ID))
	webhook("628123456@s.whatsapp.net", fmt.Sprintf("/stage %d", order.ID))
	webhook("628123456@s.whatsapp.net", fmt.Sprintf("/recompute %d", order.ID))

	require.Len(t, api.replier.messages, 4)
	assert.Contains(t, api.replier.messages[0], "not registered")
	assert.Equal(t, fmt.Sprintf("Order %d moved to survey.", order.ID), api.replier.messages[1])
	assert.Contains(t, api.replier.messages[2], "Vehicle survey")
	assert.Contains(t, api.replier.messages[3], "Only managers")

	w = api.do(http.MethodGet, fmt.Sprintf("/api/orders/%d/stages", order.ID), nil)
	history := decode[map[string][]models.OrderStageHistory](t, w)["history"]
	require.Len(t, history, 1)
	assert.Equal(t, "arrived on site", history[0].Notes)
	require.NotNil(t, history[0].ActorID)
}
