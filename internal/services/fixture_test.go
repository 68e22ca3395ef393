package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 2, 8, 30, 0, 0, time.UTC)

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	notifier   *recordingNotifier
	cache      *fakeStageCache
	orders     OrderService
	lineItems  LineItemService
	stages     StageService
	scheduling SchedulingService
	employees  EmployeeService
	seq        int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	cache := newFakeStageCache()
	deps := Deps{
		Store:      store,
		Locker:     NewLocalLocker(),
		Notifier:   notifier,
		StageCache: cache,
		Clock:      func() time.Time { return testNow },
	}
	return &fixture{
		ctx:        context.Background(),
		store:      store,
		notifier:   notifier,
		cache:      cache,
		orders:     NewOrderService(deps),
		lineItems:  NewLineItemService(deps),
		stages:     NewStageService(deps),
		scheduling: NewSchedulingService(deps),
		employees:  NewEmployeeService(deps),
	}
}

func (f *fixture) product(t *testing.T, sku string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{SKU: sku, Name: sku, Unit: "pcs", StockQuantity: stock}
	require.NoError(t, f.store.Products().Create(f.ctx, p))
	return p
}

// service registers a catalog service; components maps product id to quantity per unit.
func (f *fixture) service(t *testing.T, price, workUnits string, components map[uint]int) *models.Service {
	t.Helper()
	s := &models.Service{
		Name:              "Full wrap",
		UnitPrice:         decimal.RequireFromString(price),
		StandardWorkUnits: decimal.RequireFromString(workUnits),
	}
	require.NoError(t, f.store.Catalog().CreateService(f.ctx, s))
	for productID, qty := range components {
		entry := &models.BillOfMaterialsEntry{ServiceID: s.ID, ProductID: productID, QuantityPerUnit: qty}
		require.NoError(t, f.store.Catalog().CreateComponent(f.ctx, entry))
	}
	return s
}

func (f *fixture) order(t *testing.T) *models.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(f.ctx, CreateOrderInput{CustomerName: "Budi", CustomerPhone: "081234567890", VehiclePlate: "b 1234 xyz"})
	require.NoError(t, err)
	return o
}

func (f *fixture) technicianDay(t *testing.T, day time.Time) *models.TechnicianDailySchedule {
	t.Helper()
	tech, err := f.employees.CreateEmployee(f.ctx, "Agus", "0811", models.RoleTechnician)
	require.NoError(t, err)
	schedule, err := f.scheduling.CreateDailySchedule(f.ctx, tech.ID, day)
	require.NoError(t, err)
	return schedule
}

func (f *fixture) slot(t *testing.T, start, end string) *models.TimeSlotDefinition {
	t.Helper()
	slot, err := f.scheduling.CreateTimeSlotDefinition(f.ctx, start, end, decimal.Zero)
	require.NoError(t, err)
	return slot
}

func (f *fixture) stock(t *testing.T, productID uint) int {
	t.Helper()
	p, err := f.store.Products().GetByID(f.ctx, productID)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) reload(t *testing.T, orderID uint) *models.Order {
	t.Helper()
	o, err := f.store.Orders().GetByID(f.ctx, orderID)
	require.NoError(t, err)
	return o
}

type recordingNotifier struct {
	mu        sync.Mutex
	stages    []models.OrderStage
	completed []uint
}

func (n *recordingNotifier) StageChanged(_ context.Context, _ *models.Order, stage models.StageDefinition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stages = append(n.stages, stage.Stage)
}

func (n *recordingNotifier) OrderCompleted(_ context.Context, order *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, order.ID)
}

var errCacheMiss = errors.New("cache miss")

type fakeStageCache struct {
	mu     sync.Mutex
	stages map[uint]string
	err    error
	// setErr fails only writes, leaving reads and evictions working.
	setErr error
}

func newFakeStageCache() *fakeStageCache {
	return &fakeStageCache{stages: map[uint]string{}}
}

func (c *fakeStageCache) SetOrderStage(_ context.Context, orderID uint, stage string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.setErr != nil {
		return c.setErr
	}
	c.stages[orderID] = stage
	return nil
}

func (c *fakeStageCache) GetOrderStage(_ context.Context, orderID uint) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	stage, ok := c.stages[orderID]
	if !ok {
		return "", errCacheMiss
	}
	return stage, nil
}

func (c *fakeStageCache) DeleteOrderStage(_ context.Context, orderID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.stages, orderID)
	return nil
}
