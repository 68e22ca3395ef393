package repository

import (
	"context"
	"time"

	"decal_manager/internal/models"

	"gorm.io/gorm"
)

// Store groups the repositories that make up one consistent data store.
type Store interface {
	Orders() OrderRepository
	LineItems() OrderLineItemRepository
	Products() ProductRepository
	Catalog() CatalogRepository
	StageHistory() StageHistoryRepository
	Scheduling() SchedulingRepository
	Employees() EmployeeRepository

	// Transaction runs fn atomically. fn receives a Store bound to the transaction and a
	// context that is no longer cancelled by the caller, only by the transaction timeout.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error, opts ...TxOption) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	// GetForUpdate reads the order and holds a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.Order, error)
	List(ctx context.Context, limit, offset int) ([]models.Order, error)
	// UpdateDerived writes total, status and current stage if order.Version is still current,
	// and bumps the version. ErrStaleWrite otherwise.
	UpdateDerived(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uint) error
}

type OrderLineItemRepository interface {
	Create(ctx context.Context, item *models.OrderLineItem) error
	GetByID(ctx context.Context, id uint) (*models.OrderLineItem, error)
	GetByOrderID(ctx context.Context, orderID uint) ([]models.OrderLineItem, error)
	Update(ctx context.Context, item *models.OrderLineItem) error
	Delete(ctx context.Context, id uint) error
}

// ProductRepository is the stock ledger.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	// GetForUpdate locks the given products in ascending id order. Missing ids are absent from the map.
	GetForUpdate(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
	Decrement(ctx context.Context, id uint, qty int) error
	Increment(ctx context.Context, id uint, qty int) error
}

type CatalogRepository interface {
	CreateService(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, id uint) (*models.Service, error)
	GetServices(ctx context.Context, ids []uint) (map[uint]*models.Service, error)
	CreateComponent(ctx context.Context, entry *models.BillOfMaterialsEntry) error
	ListComponents(ctx context.Context, serviceID uint) ([]models.BillOfMaterialsEntry, error)
}

type StageHistoryRepository interface {
	Append(ctx context.Context, entry *models.OrderStageHistory) error
	GetByID(ctx context.Context, id uint) (*models.OrderStageHistory, error)
	// Latest returns the most recent entry by ChangedAt (ties broken by id), ErrNotFound if none.
	Latest(ctx context.Context, orderID uint) (*models.OrderStageHistory, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.OrderStageHistory, error)
	UpdateNotes(ctx context.Context, id uint, notes string) error
	DeleteByOrder(ctx context.Context, orderID uint) error
}

type WorkUnitFilter struct {
	OrderID         *uint
	DailyScheduleID *uint
	Status          *models.WorkUnitStatus
	From            *time.Time
	To              *time.Time
}

type SchedulingRepository interface {
	CreateSlot(ctx context.Context, slot *models.TimeSlotDefinition) error
	GetSlot(ctx context.Context, id uint) (*models.TimeSlotDefinition, error)
	GetSlots(ctx context.Context, ids []uint) (map[uint]*models.TimeSlotDefinition, error)
	ListSlots(ctx context.Context) ([]models.TimeSlotDefinition, error)

	CreateDailySchedule(ctx context.Context, schedule *models.TechnicianDailySchedule) error
	GetDailySchedule(ctx context.Context, id uint) (*models.TechnicianDailySchedule, error)
	GetDailyScheduleForUpdate(ctx context.Context, id uint) (*models.TechnicianDailySchedule, error)

	CreateWorkUnit(ctx context.Context, unit *models.ScheduledWorkUnit) error
	GetWorkUnit(ctx context.Context, id uint) (*models.ScheduledWorkUnit, error)
	UpdateWorkUnit(ctx context.Context, unit *models.ScheduledWorkUnit) error
	DeleteWorkUnit(ctx context.Context, id uint) error
	ListWorkUnits(ctx context.Context, filter WorkUnitFilter) ([]models.ScheduledWorkUnit, error)
	// FindClaimingUnit returns a booked or completed unit for the schedule/slot pair other
	// than excludeID, ErrNotFound if there is none.
	FindClaimingUnit(ctx context.Context, dailyScheduleID, slotID, excludeID uint) (*models.ScheduledWorkUnit, error)
	// HasAvailableUnitsFrom reports whether any available unit exists on a schedule dated on or after day.
	HasAvailableUnitsFrom(ctx context.Context, day time.Time) (bool, error)
}

type EmployeeRepository interface {
	Create(ctx context.Context, employee *models.Employee) error
	GetByID(ctx context.Context, id uint) (*models.Employee, error)
	GetByPhone(ctx context.Context, phone string) (*models.Employee, error)
	List(ctx context.Context) ([]models.Employee, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a Store backed by gorm.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Orders() OrderRepository { return NewOrderRepository(s.db) }
func (s *gormStore) LineItems() OrderLineItemRepository { return NewOrderLineItemRepository(s.db) }
func (s *gormStore) Products() ProductRepository { return NewProductRepository(s.db) }
func (s *gormStore) Catalog() CatalogRepository { return NewCatalogRepository(s.db) }
func (s *gormStore) StageHistory() StageHistoryRepository { return NewStageHistoryRepository(s.db) }
func (s *gormStore) Scheduling() SchedulingRepository { return NewSchedulingRepository(s.db) }
func (s *gormStore) Employees() EmployeeRepository { return NewEmployeeRepository(s.db) }

func (s *gormStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error, opts ...TxOption) error {
	return RunTransaction(ctx, func(txCtx context.Context) error {
		return s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
			return fn(txCtx, &gormStore{db: tx})
		})
	}, opts...)
}
