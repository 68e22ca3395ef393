package services

import (
	"context"
	"fmt"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/shopspring/decimal"
)

// BillOfMaterials is what one unit of a catalog service consumes and costs.
type BillOfMaterials struct {
	Service           models.Service
	Components        []models.BillOfMaterialsEntry
	UnitPrice         decimal.Decimal
	StandardWorkUnits decimal.Decimal
}

// Requirements returns product id -> quantity needed for qty units of the service.
func (b BillOfMaterials) Requirements(qty int) map[uint]int {
	out := make(map[uint]int, len(b.Components))
	for _, c := range b.Components {
		out[c.ProductID] += c.QuantityPerUnit * qty
	}
	return out
}

// BillOfMaterialsResolver reads catalog data for the engines. It is bound to whichever
// catalog repository it is given, so inside a transaction it reads transactional state.
type BillOfMaterialsResolver struct {
	catalog repository.CatalogRepository
}

func NewBillOfMaterialsResolver(catalog repository.CatalogRepository) *BillOfMaterialsResolver {
	return &BillOfMaterialsResolver{catalog: catalog}
}

func (r *BillOfMaterialsResolver) Resolve(ctx context.Context, serviceID uint) (*BillOfMaterials, error) {
	service, err := r.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, lookupErr(err, "service", serviceID)
	}
	components, err := r.catalog.ListComponents(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill of materials for service %d: %w", serviceID, err)
	}
	return &BillOfMaterials{
		Service:           *service,
		Components:        components,
		UnitPrice:         service.UnitPrice,
		StandardWorkUnits: service.StandardWorkUnits,
	}, nil
}

func (r *BillOfMaterialsResolver) GetComponents(ctx context.Context, serviceID uint) ([]models.BillOfMaterialsEntry, error) {
	bom, err := r.Resolve(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return bom.Components, nil
}

func (r *BillOfMaterialsResolver) GetUnitPrice(ctx context.Context, serviceID uint) (decimal.Decimal, error) {
	service, err := r.catalog.GetService(ctx, serviceID)
	if err != nil {
		return decimal.Zero, lookupErr(err, "service", serviceID)
	}
	return service.UnitPrice, nil
}

func (r *BillOfMaterialsResolver) GetStandardWorkUnits(ctx context.Context, serviceID uint) (decimal.Decimal, error) {
	service, err := r.catalog.GetService(ctx, serviceID)
	if err != nil {
		return decimal.Zero, lookupErr(err, "service", serviceID)
	}
	return service.StandardWorkUnits, nil
}

// RequiredWorkUnits sums quantity * standard work units over the given line items.
func (r *BillOfMaterialsResolver) RequiredWorkUnits(ctx context.Context, items []models.OrderLineItem) (decimal.Decimal, error) {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ServiceID)
	}
	services, err := r.catalog.GetServices(ctx, ids)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load services: %w", err)
	}

	total := decimal.Zero
	for _, item := range items {
		service, ok := services[item.ServiceID]
		if !ok {
			return decimal.Zero, notFound("service", item.ServiceID)
		}
		total = total.Add(service.StandardWorkUnits.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total, nil
}
