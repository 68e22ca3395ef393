package memory

import (
	"context"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"
)

func copyOrder(o models.Order) *models.Order {
	if o.CurrentStage != nil {
		stage := *o.CurrentStage
		o.CurrentStage = &stage
	}
	o.LineItems = nil
	return &o
}

func copyWorkUnit(u models.ScheduledWorkUnit) *models.ScheduledWorkUnit {
	if u.OrderID != nil {
		id := *u.OrderID
		u.OrderID = &id
	}
	u.DailySchedule, u.TimeSlot, u.Order = nil, nil, nil
	return &u
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, order *models.Order) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.orders {
		if existing.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	order.ID = r.s.data.nextID()
	if order.Version == 0 {
		order.Version = 1
	}
	if order.Status == "" {
		order.Status = models.OrderNew
	}
	order.CreatedAt, order.UpdatedAt = now, now
	r.s.data.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id uint) (*models.Order, error) {
	defer r.s.lock()()
	order, ok := r.s.data.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOrder(order), nil
}

func (r orderRepo) GetForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepo) List(_ context.Context, limit, offset int) ([]models.Order, error) {
	defer r.s.lock()()
	all := sortedValues(r.s.data.orders, nil)
	// newest first, like the SQL repository
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]models.Order, 0, len(all))
	for _, o := range all {
		out = append(out, *copyOrder(o))
	}
	return out, nil
}

func (r orderRepo) UpdateDerived(_ context.Context, order *models.Order) error {
	defer r.s.lock()()
	stored, ok := r.s.data.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return repository.ErrStaleWrite
	}
	stored.TotalAmount = order.TotalAmount
	stored.Status = order.Status
	stored.CurrentStage = order.CurrentStage
	stored.Version++
	stored.UpdatedAt = r.s.now()
	r.s.data.orders[order.ID] = *copyOrder(stored)
	order.Version = stored.Version
	return nil
}

func (r orderRepo) Delete(_ context.Context, id uint) error {
	defer r.s.lock()()
	if _, ok := r.s.data.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.orders, id)
	return nil
}

type lineItemRepo struct{ s *Store }

func (r lineItemRepo) Create(_ context.Context, item *models.OrderLineItem) error {
	defer r.s.lock()()
	now := r.s.now()
	item.ID = r.s.data.nextID()
	item.CreatedAt, item.UpdatedAt = now, now
	stored := *item
	stored.Service = nil
	r.s.data.lineItems[item.ID] = stored
	return nil
}

func (r lineItemRepo) GetByID(_ context.Context, id uint) (*models.OrderLineItem, error) {
	defer r.s.lock()()
	item, ok := r.s.data.lineItems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (r lineItemRepo) GetByOrderID(_ context.Context, orderID uint) ([]models.OrderLineItem, error) {
	defer r.s.lock()()
	return sortedValues(r.s.data.lineItems, func(i models.OrderLineItem) bool { return i.OrderID == orderID }), nil
}

func (r lineItemRepo) Update(_ context.Context, item *models.OrderLineItem) error {
	defer r.s.lock()()
	stored, ok := r.s.data.lineItems[item.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.ServiceID = item.ServiceID
	stored.Quantity = item.Quantity
	stored.UnitPrice = item.UnitPrice
	stored.UpdatedAt = r.s.now()
	r.s.data.lineItems[item.ID] = stored
	return nil
}

func (r lineItemRepo) Delete(_ context.Context, id uint) error {
	defer r.s.lock()()
	if _, ok := r.s.data.lineItems[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.lineItems, id)
	return nil
}

type productRepo struct{ s *Store }

func (r productRepo) Create(_ context.Context, product *models.Product) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.products {
		if existing.SKU == product.SKU {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	product.ID = r.s.data.nextID()
	product.CreatedAt, product.UpdatedAt = now, now
	r.s.data.products[product.ID] = *product
	return nil
}

func (r productRepo) GetByID(_ context.Context, id uint) (*models.Product, error) {
	defer r.s.lock()()
	product, ok := r.s.data.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &product, nil
}

func (r productRepo) List(_ context.Context) ([]models.Product, error) {
	defer r.s.lock()()
	return sortedValues(r.s.data.products, nil), nil
}

func (r productRepo) GetForUpdate(_ context.Context, ids []uint) (map[uint]*models.Product, error) {
	defer r.s.lock()()
	out := make(map[uint]*models.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.s.data.products[id]; ok {
			p := product
			out[id] = &p
		}
	}
	return out, nil
}

func (r productRepo) Decrement(_ context.Context, id uint, qty int) error {
	defer r.s.lock()()
	product, ok := r.s.data.products[id]
	if !ok || product.StockQuantity < qty {
		return repository.ErrStockGuard
	}
	product.StockQuantity -= qty
	product.UpdatedAt = r.s.now()
	r.s.data.products[id] = product
	return nil
}

func (r productRepo) Increment(_ context.Context, id uint, qty int) error {
	defer r.s.lock()()
	product, ok := r.s.data.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	product.StockQuantity += qty
	product.UpdatedAt = r.s.now()
	r.s.data.products[id] = product
	return nil
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) CreateService(_ context.Context, service *models.Service) error {
	defer r.s.lock()()
	now := r.s.now()
	service.ID = r.s.data.nextID()
	service.CreatedAt, service.UpdatedAt = now, now
	r.s.data.services[service.ID] = *service
	return nil
}

func (r catalogRepo) GetService(_ context.Context, id uint) (*models.Service, error) {
	defer r.s.lock()()
	service, ok := r.s.data.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &service, nil
}

func (r catalogRepo) GetServices(_ context.Context, ids []uint) (map[uint]*models.Service, error) {
	defer r.s.lock()()
	out := make(map[uint]*models.Service, len(ids))
	for _, id := range ids {
		if service, ok := r.s.data.services[id]; ok {
			svc := service
			out[id] = &svc
		}
	}
	return out, nil
}

func (r catalogRepo) CreateComponent(_ context.Context, entry *models.BillOfMaterialsEntry) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.components {
		if existing.ServiceID == entry.ServiceID && existing.ProductID == entry.ProductID {
			return repository.ErrDuplicate
		}
	}
	entry.ID = r.s.data.nextID()
	r.s.data.components[entry.ID] = *entry
	return nil
}

func (r catalogRepo) ListComponents(_ context.Context, serviceID uint) ([]models.BillOfMaterialsEntry, error) {
	defer r.s.lock()()
	return sortedValues(r.s.data.components, func(e models.BillOfMaterialsEntry) bool { return e.ServiceID == serviceID }), nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Append(_ context.Context, entry *models.OrderStageHistory) error {
	defer r.s.lock()()
	entry.ID = r.s.data.nextID()
	entry.CreatedAt = r.s.now()
	r.s.data.history[entry.ID] = *entry
	return nil
}

func (r historyRepo) GetByID(_ context.Context, id uint) (*models.OrderStageHistory, error) {
	defer r.s.lock()()
	entry, ok := r.s.data.history[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

func (r historyRepo) Latest(_ context.Context, orderID uint) (*models.OrderStageHistory, error) {
	defer r.s.lock()()
	var latest *models.OrderStageHistory
	for _, entry := range r.s.data.history {
		if entry.OrderID != orderID {
			continue
		}
		if latest == nil || entry.ChangedAt.After(latest.ChangedAt) ||
			(entry.ChangedAt.Equal(latest.ChangedAt) && entry.ID > latest.ID) {
			e := entry
			latest = &e
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r historyRepo) ListByOrder(_ context.Context, orderID uint) ([]models.OrderStageHistory, error) {
	defer r.s.lock()()
	entries := sortedValues(r.s.data.history, func(e models.OrderStageHistory) bool { return e.OrderID == orderID })
	// ids are already ascending; a stable sort on ChangedAt keeps id as the tie-breaker
	stableSortByTime(entries)
	return entries, nil
}

func (r historyRepo) UpdateNotes(_ context.Context, id uint, notes string) error {
	defer r.s.lock()()
	entry, ok := r.s.data.history[id]
	if !ok {
		return repository.ErrNotFound
	}
	entry.Notes = notes
	r.s.data.history[id] = entry
	return nil
}

func (r historyRepo) DeleteByOrder(_ context.Context, orderID uint) error {
	defer r.s.lock()()
	for id, entry := range r.s.data.history {
		if entry.OrderID == orderID {
			delete(r.s.data.history, id)
		}
	}
	return nil
}

type employeeRepo struct{ s *Store }

func (r employeeRepo) Create(_ context.Context, employee *models.Employee) error {
	defer r.s.lock()()
	now := r.s.now()
	employee.ID = r.s.data.nextID()
	employee.CreatedAt, employee.UpdatedAt = now, now
	r.s.data.employees[employee.ID] = *employee
	return nil
}

func (r employeeRepo) GetByID(_ context.Context, id uint) (*models.Employee, error) {
	defer r.s.lock()()
	employee, ok := r.s.data.employees[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &employee, nil
}

func (r employeeRepo) GetByPhone(_ context.Context, phone string) (*models.Employee, error) {
	defer r.s.lock()()
	for _, employee := range sortedValues(r.s.data.employees, nil) {
		if employee.PhoneNumber == phone {
			return &employee, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r employeeRepo) List(_ context.Context) ([]models.Employee, error) {
	defer r.s.lock()()
	return sortedValues(r.s.data.employees, nil), nil
}

type schedulingRepo struct{ s *Store }

func (r schedulingRepo) CreateSlot(_ context.Context, slot *models.TimeSlotDefinition) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.slots {
		if existing.StartTime == slot.StartTime && existing.EndTime == slot.EndTime {
			return repository.ErrDuplicate
		}
	}
	slot.ID = r.s.data.nextID()
	slot.CreatedAt = r.s.now()
	r.s.data.slots[slot.ID] = *slot
	return nil
}

func (r schedulingRepo) GetSlot(_ context.Context, id uint) (*models.TimeSlotDefinition, error) {
	defer r.s.lock()()
	slot, ok := r.s.data.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &slot, nil
}

func (r schedulingRepo) GetSlots(_ context.Context, ids []uint) (map[uint]*models.TimeSlotDefinition, error) {
	defer r.s.lock()()
	out := make(map[uint]*models.TimeSlotDefinition, len(ids))
	for _, id := range ids {
		if slot, ok := r.s.data.slots[id]; ok {
			s := slot
			out[id] = &s
		}
	}
	return out, nil
}

func (r schedulingRepo) ListSlots(_ context.Context) ([]models.TimeSlotDefinition, error) {
	defer r.s.lock()()
	return sortedValues(r.s.data.slots, nil), nil
}

func (r schedulingRepo) CreateDailySchedule(_ context.Context, schedule *models.TechnicianDailySchedule) error {
	defer r.s.lock()()
	day := dateOnly(schedule.WorkDate)
	for _, existing := range r.s.data.schedules {
		if existing.TechnicianID == schedule.TechnicianID && existing.WorkDate.Equal(day) {
			return repository.ErrDuplicate
		}
	}
	schedule.ID = r.s.data.nextID()
	schedule.WorkDate = day
	schedule.CreatedAt = r.s.now()
	stored := *schedule
	stored.Technician = nil
	r.s.data.schedules[schedule.ID] = stored
	return nil
}

func (r schedulingRepo) GetDailySchedule(_ context.Context, id uint) (*models.TechnicianDailySchedule, error) {
	defer r.s.lock()()
	schedule, ok := r.s.data.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &schedule, nil
}

func (r schedulingRepo) GetDailyScheduleForUpdate(ctx context.Context, id uint) (*models.TechnicianDailySchedule, error) {
	return r.GetDailySchedule(ctx, id)
}

func (r schedulingRepo) claimedBy(unit models.ScheduledWorkUnit, excludeID uint) (models.ScheduledWorkUnit, bool) {
	for _, existing := range r.s.data.workUnits {
		if existing.ID == excludeID {
			continue
		}
		if existing.DailyScheduleID == unit.DailyScheduleID &&
			existing.TimeSlotDefinitionID == unit.TimeSlotDefinitionID &&
			existing.State().Claims() {
			return existing, true
		}
	}
	return models.ScheduledWorkUnit{}, false
}

// CreateWorkUnit enforces the same partial unique index as the SQL schema.
func (r schedulingRepo) CreateWorkUnit(_ context.Context, unit *models.ScheduledWorkUnit) error {
	defer r.s.lock()()
	if unit.State().Claims() {
		if _, taken := r.claimedBy(*unit, 0); taken {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	unit.ID = r.s.data.nextID()
	unit.CreatedAt, unit.UpdatedAt = now, now
	r.s.data.workUnits[unit.ID] = *copyWorkUnit(*unit)
	return nil
}

func (r schedulingRepo) GetWorkUnit(_ context.Context, id uint) (*models.ScheduledWorkUnit, error) {
	defer r.s.lock()()
	unit, ok := r.s.data.workUnits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyWorkUnit(unit), nil
}

func (r schedulingRepo) UpdateWorkUnit(_ context.Context, unit *models.ScheduledWorkUnit) error {
	defer r.s.lock()()
	stored, ok := r.s.data.workUnits[unit.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if unit.State().Claims() {
		if _, taken := r.claimedBy(*unit, unit.ID); taken {
			return repository.ErrDuplicate
		}
	}
	stored.DailyScheduleID = unit.DailyScheduleID
	stored.TimeSlotDefinitionID = unit.TimeSlotDefinitionID
	stored.OrderID = unit.OrderID
	stored.Status = unit.Status
	stored.UpdatedAt = r.s.now()
	r.s.data.workUnits[unit.ID] = *copyWorkUnit(stored)
	return nil
}

func (r schedulingRepo) DeleteWorkUnit(_ context.Context, id uint) error {
	defer r.s.lock()()
	if _, ok := r.s.data.workUnits[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.workUnits, id)
	return nil
}

func (r schedulingRepo) ListWorkUnits(_ context.Context, filter repository.WorkUnitFilter) ([]models.ScheduledWorkUnit, error) {
	defer r.s.lock()()
	units := sortedValues(r.s.data.workUnits, func(u models.ScheduledWorkUnit) bool {
		if filter.OrderID != nil && (u.OrderID == nil || *u.OrderID != *filter.OrderID) {
			return false
		}
		if filter.DailyScheduleID != nil && u.DailyScheduleID != *filter.DailyScheduleID {
			return false
		}
		if filter.Status != nil && u.Status != *filter.Status {
			return false
		}
		if filter.From != nil || filter.To != nil {
			schedule := r.s.data.schedules[u.DailyScheduleID]
			if filter.From != nil && schedule.WorkDate.Before(dateOnly(*filter.From)) {
				return false
			}
			if filter.To != nil && schedule.WorkDate.After(dateOnly(*filter.To)) {
				return false
			}
		}
		return true
	})
	out := make([]models.ScheduledWorkUnit, 0, len(units))
	for _, u := range units {
		out = append(out, *copyWorkUnit(u))
	}
	return out, nil
}

func (r schedulingRepo) FindClaimingUnit(_ context.Context, dailyScheduleID, slotID, excludeID uint) (*models.ScheduledWorkUnit, error) {
	defer r.s.lock()()
	probe := models.ScheduledWorkUnit{DailyScheduleID: dailyScheduleID, TimeSlotDefinitionID: slotID}
	existing, ok := r.claimedBy(probe, excludeID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyWorkUnit(existing), nil
}

func (r schedulingRepo) HasAvailableUnitsFrom(_ context.Context, day time.Time) (bool, error) {
	defer r.s.lock()()
	from := dateOnly(day)
	for _, unit := range r.s.data.workUnits {
		if unit.Status != models.WorkUnitAvailable {
			continue
		}
		if schedule, ok := r.s.data.schedules[unit.DailyScheduleID]; ok && !schedule.WorkDate.Before(from) {
			return true, nil
		}
	}
	return false, nil
}
