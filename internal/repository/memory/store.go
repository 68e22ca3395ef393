// Package memory is an in-process implementation of repository.Store. Transactions are
// serialised by a single mutex and roll back by restoring a snapshot of every table.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"
)

type tables struct {
	seq        uint
	orders     map[uint]models.Order
	lineItems  map[uint]models.OrderLineItem
	products   map[uint]models.Product
	services   map[uint]models.Service
	components map[uint]models.BillOfMaterialsEntry
	history    map[uint]models.OrderStageHistory
	slots      map[uint]models.TimeSlotDefinition
	schedules  map[uint]models.TechnicianDailySchedule
	workUnits  map[uint]models.ScheduledWorkUnit
	employees  map[uint]models.Employee
}

func newTables() *tables {
	return &tables{
		orders:     map[uint]models.Order{},
		lineItems:  map[uint]models.OrderLineItem{},
		products:   map[uint]models.Product{},
		services:   map[uint]models.Service{},
		components: map[uint]models.BillOfMaterialsEntry{},
		history:    map[uint]models.OrderStageHistory{},
		slots:      map[uint]models.TimeSlotDefinition{},
		schedules:  map[uint]models.TechnicianDailySchedule{},
		workUnits:  map[uint]models.ScheduledWorkUnit{},
		employees:  map[uint]models.Employee{},
	}
}

func cloneMap[T any](in map[uint]T) map[uint]T {
	out := make(map[uint]T, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		seq:        t.seq,
		orders:     cloneMap(t.orders),
		lineItems:  cloneMap(t.lineItems),
		products:   cloneMap(t.products),
		services:   cloneMap(t.services),
		components: cloneMap(t.components),
		history:    cloneMap(t.history),
		slots:      cloneMap(t.slots),
		schedules:  cloneMap(t.schedules),
		workUnits:  cloneMap(t.workUnits),
		employees:  cloneMap(t.employees),
	}
}

func (t *tables) nextID() uint {
	t.seq++
	return t.seq
}

type Store struct {
	mu   *sync.Mutex
	data *tables
	inTx bool
	now  func() time.Time
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, data: newTables(), now: time.Now}
}

// lock takes the store mutex unless the caller is already inside a transaction.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }
func (s *Store) LineItems() repository.OrderLineItemRepository { return lineItemRepo{s} }
func (s *Store) Products() repository.ProductRepository { return productRepo{s} }
func (s *Store) Catalog() repository.CatalogRepository { return catalogRepo{s} }
func (s *Store) StageHistory() repository.StageHistoryRepository { return historyRepo{s} }
func (s *Store) Scheduling() repository.SchedulingRepository { return schedulingRepo{s} }
func (s *Store) Employees() repository.EmployeeRepository { return employeeRepo{s} }

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error, opts ...repository.TxOption) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return repository.RunTransaction(ctx, func(txCtx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		snapshot := s.data.clone()
		tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
		if err := fn(txCtx, tx); err != nil {
			*s.data = *snapshot
			return err
		}
		return nil
	}, opts...)
}

func sortedValues[T any](in map[uint]T, keep func(T) bool) []T {
	ids := make([]uint, 0, len(in))
	for id, v := range in {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, in[id])
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stableSortByTime(entries []models.OrderStageHistory) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ChangedAt.Before(entries[j].ChangedAt) })
}
