package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	warehouseTable = "cat_warehouses"
	locationTable  = "cat_warehouse_locations"
)

var (
	warehouseColumns = postgres.ExtractDBColumns[warehouse.Warehouse]()
	locationColumns  = postgres.ExtractDBColumns[warehouse.Location]()
)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct{ base }

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txm *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{base{txm: txm}}
}

func (r *WarehouseRepo) Get(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	var w warehouse.Warehouse
	q := r.Builder().Select(warehouseColumns...).From(warehouseTable).Where(squirrel.Eq{"id": warehouseID})
	if err := r.getOne(ctx, &w, q, "warehouse", warehouseID); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WarehouseRepo) GetLocation(ctx context.Context, locationID id.ID) (*warehouse.Location, error) {
	var l warehouse.Location
	q := r.Builder().Select(locationColumns...).From(locationTable).Where(squirrel.Eq{"id": locationID})
	if err := r.getOne(ctx, &l, q, "location", locationID); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *WarehouseRepo) Create(ctx context.Context, w *warehouse.Warehouse) error {
	return r.insert(ctx, warehouseTable, warehouseColumns, w)
}

func (r *WarehouseRepo) CreateLocation(ctx context.Context, l *warehouse.Location) error {
	return r.insert(ctx, locationTable, locationColumns, l)
}
