package migrations

import (
	"context"
	"fmt"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// At most one booked or completed unit may hold a technician's slot on a given day.
const claimedSlotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_work_units_claimed
ON scheduled_work_units (daily_schedule_id, time_slot_definition_id)
WHERE status IN ('booked', 'completed')`

// Booked and completed units carry an order; available units never do.
const workUnitStateCheck = `DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_work_unit_state') THEN
		ALTER TABLE scheduled_work_units ADD CONSTRAINT chk_work_unit_state CHECK (
			(status = 'available' AND order_id IS NULL) OR
			(status IN ('booked', 'completed') AND order_id IS NOT NULL)
		);
	END IF;
END $$`

// RunMigrations creates or updates the schema. It never drops data.
func RunMigrations(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("running database migrations")

	err := db.AutoMigrate(
		&models.Employee{},
		&models.Product{},
		&models.Service{},
		&models.BillOfMaterialsEntry{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OrderStageHistory{},
		&models.TimeSlotDefinition{},
		&models.TechnicianDailySchedule{},
		&models.ScheduledWorkUnit{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for name, stmt := range map[string]string{
		"claimed slot index":    claimedSlotIndex,
		"work unit state check": workUnitStateCheck,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}

	logger.Info("database migrations completed")
	return nil
}

type seedComponent struct {
	sku      string
	quantity int
}

type seedService struct {
	name       string
	price      string
	workUnits  string
	components []seedComponent
}

var (
	seedProducts = []models.Product{
		{SKU: "VNL-GLS-BLK", Name: "Gloss black vinyl", Unit: "m", StockQuantity: 60},
		{SKU: "VNL-MAT-WHT", Name: "Matte white vinyl", Unit: "m", StockQuantity: 40},
		{SKU: "VNL-CHR-SLV", Name: "Silver chrome vinyl", Unit: "m", StockQuantity: 20},
		{SKU: "LAM-CLR", Name: "Clear protective laminate", Unit: "m", StockQuantity: 80},
		{SKU: "SQG-FLT", Name: "Felt squeegee", Unit: "pcs", StockQuantity: 25},
	}

	seedServices = []seedService{
		{
			name: "Hood wrap", price: "350000", workUnits: "2",
			components: []seedComponent{{"VNL-GLS-BLK", 3}, {"LAM-CLR", 3}},
		},
		{
			name: "Roof wrap", price: "300000", workUnits: "2",
			components: []seedComponent{{"VNL-GLS-BLK", 2}, {"LAM-CLR", 2}},
		},
		{
			name: "Full body wrap", price: "4500000", workUnits: "8",
			components: []seedComponent{{"VNL-MAT-WHT", 18}, {"LAM-CLR", 18}, {"SQG-FLT", 1}},
		},
		{
			name: "Chrome delete", price: "750000", workUnits: "1",
			components: []seedComponent{{"VNL-CHR-SLV", 2}},
		},
	}

	seedSlots = []models.TimeSlotDefinition{
		{StartTime: "08:00", EndTime: "10:00"},
		{StartTime: "10:00", EndTime: "12:00"},
		{StartTime: "13:00", EndTime: "15:00"},
		{StartTime: "15:00", EndTime: "17:00"},
	}

	seedEmployees = []models.Employee{
		{FullName: "Workshop Manager", PhoneNumber: "6281100000001", Role: models.RoleManager},
		{FullName: "Front Desk", PhoneNumber: "6281100000002", Role: models.RoleScheduler},
		{FullName: "Technician One", PhoneNumber: "6281100000003", Role: models.RoleTechnician},
		{FullName: "Technician Two", PhoneNumber: "6281100000004", Role: models.RoleTechnician},
	}
)

// SeedCatalog loads a starter catalog, time slots and staff. It does nothing when products
// already exist, so it is safe to run on every start.
func SeedCatalog(ctx context.Context, store repository.Store, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	existing, err := store.Products().List(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("catalog already seeded", zap.Int("products", len(existing)))
		return nil
	}

	err = store.Transaction(ctx, func(ctx context.Context, tx repository.Store) error {
		productIDs := make(map[string]uint, len(seedProducts))
		for _, p := range seedProducts {
			product := p
			if err := tx.Products().Create(ctx, &product); err != nil {
				return fmt.Errorf("create product %s: %w", product.SKU, err)
			}
			productIDs[product.SKU] = product.ID
		}

		for _, s := range seedServices {
			service := &models.Service{
				Name:              s.name,
				UnitPrice:         decimal.RequireFromString(s.price),
				StandardWorkUnits: decimal.RequireFromString(s.workUnits),
			}
			if err := tx.Catalog().CreateService(ctx, service); err != nil {
				return fmt.Errorf("create service %s: %w", s.name, err)
			}
			for _, c := range s.components {
				entry := &models.BillOfMaterialsEntry{
					ServiceID:       service.ID,
					ProductID:       productIDs[c.sku],
					QuantityPerUnit: c.quantity,
				}
				if err := tx.Catalog().CreateComponent(ctx, entry); err != nil {
					return fmt.Errorf("create component %s for %s: %w", c.sku, s.name, err)
				}
			}
		}

		for _, sl := range seedSlots {
			slot := sl
			if err := tx.Scheduling().CreateSlot(ctx, &slot); err != nil {
				return fmt.Errorf("create time slot %s-%s: %w", slot.StartTime, slot.EndTime, err)
			}
		}

		for _, e := range seedEmployees {
			employee := e
			employee.IsActive = true
			if err := tx.Employees().Create(ctx, &employee); err != nil {
				return fmt.Errorf("create employee %s: %w", employee.FullName, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("catalog seeded",
		zap.Int("products", len(seedProducts)),
		zap.Int("services", len(seedServices)),
		zap.Int("time_slots", len(seedSlots)),
		zap.Int("employees", len(seedEmployees)),
	)
	return nil
}
