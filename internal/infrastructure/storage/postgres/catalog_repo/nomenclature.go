package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	productsTable      = "cat_products"
	kitComponentsTable = "cat_kit_components"
)

// bomGraphLockKey is the advisory lock id serializing BOM replacements.
const bomGraphLockKey int64 = 0x6b69745f626f6d

var (
	productColumns      = postgres.ExtractDBColumns[nomenclature.Product]()
	kitComponentColumns = []string{"id", "kit_id", "component_id", "quantity", "position", "created_at"}
)

// NomenclatureRepo implements nomenclature.Repository.
type NomenclatureRepo struct{ base }

var _ nomenclature.Repository = (*NomenclatureRepo)(nil)

// NewNomenclatureRepo creates a product repository.
func NewNomenclatureRepo(txm *postgres.TxManager) *NomenclatureRepo {
	return &NomenclatureRepo{base{txm: txm}}
}

// Get returns the product or NOT_FOUND.
func (r *NomenclatureRepo) Get(ctx context.Context, productID id.ID) (*nomenclature.Product, error) {
	var p nomenclature.Product
	q := r.Builder().Select(productColumns...).From(productsTable).Where(squirrel.Eq{"id": productID})
	if err := r.getOne(ctx, &p, q, "product", productID); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListKitComponents returns the BOM of kitID ordered by position, joined
// with the component products.
func (r *NomenclatureRepo) ListKitComponents(ctx context.Context, kitID id.ID) ([]nomenclature.KitComponent, error) {
	q := r.Builder().
		Select(
			"kc.id", "kc.kit_id", "kc.component_id", "kc.quantity", "kc.position", "kc.created_at",
			"p.name AS component_name", "p.sku AS component_sku", "p.unit AS component_unit",
		).
		From(kitComponentsTable + " kc").
		Join(productsTable + " p ON p.id = kc.component_id").
		Where(squirrel.Eq{"kc.kit_id": kitID}).
		OrderBy("kc.position")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []nomenclature.KitComponent
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list kit components: %w", err)
	}
	return rows, nil
}

// ListKitIDs returns every product flagged as a kit.
func (r *NomenclatureRepo) ListKitIDs(ctx context.Context) ([]id.ID, error) {
	sql, args, err := r.Builder().Select("id").From(productsTable).Where(squirrel.Eq{"is_kit": true}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("list kit ids: %w", err)
	}
	return ids, nil
}

// ListKitEdges returns all BOM edges. Inside a transaction it first takes
// the BOM graph advisory lock, held until commit, so two replacements cannot
// each pass the cycle check against a graph the other is changing.
func (r *NomenclatureRepo) ListKitEdges(ctx context.Context) ([]nomenclature.KitEdge, error) {
	if r.txm.InTransaction(ctx) {
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock($1)", bomGraphLockKey); err != nil {
			return nil, fmt.Errorf("lock bom graph: %w", err)
		}
	}
	sql, args, err := r.Builder().Select("kit_id", "component_id").From(kitComponentsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var edges []nomenclature.KitEdge
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &edges, sql, args...); err != nil {
		return nil, fmt.Errorf("list kit edges: %w", err)
	}
	return edges, nil
}

// ReplaceKitComponents deletes the BOM of kitID and inserts rows.
func (r *NomenclatureRepo) ReplaceKitComponents(ctx context.Context, kitID id.ID, rows []nomenclature.KitComponent) error {
	querier := r.txm.GetQuerier(ctx)

	// Lock the kit row so concurrent replacements of one BOM serialize.
	if _, err := querier.Exec(ctx, "SELECT 1 FROM "+productsTable+" WHERE id = $1 FOR UPDATE", kitID); err != nil {
		return fmt.Errorf("lock kit: %w", err)
	}
	if _, err := querier.Exec(ctx, "DELETE FROM "+kitComponentsTable+" WHERE kit_id = $1", kitID); err != nil {
		return fmt.Errorf("delete kit components: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	q := r.Builder().Insert(kitComponentsTable).Columns(kitComponentColumns...)
	for _, row := range rows {
		q = q.Values(row.ID, kitID, row.ComponentID, row.Quantity, row.Position, row.CreatedAt)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = querier.Exec(ctx, sql, args...)
	return postgres.MapError("insert kit components", err)
}

// Create inserts p.
func (r *NomenclatureRepo) Create(ctx context.Context, p *nomenclature.Product) error {
	return r.insert(ctx, productsTable, productColumns, p)
}
