// Package main provides a CLI tool for seeding the database with demo data:
// one warehouse, a handful of products, a kit with its bill of materials and
// an approved purchase order ready to be received.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"stockcore/internal/app"
	"stockcore/internal/core/apperror"
	appctx "stockcore/internal/core/context"
	"stockcore/internal/core/id"
	corenumerator "stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/auth"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/kitting"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/infrastructure/numerator"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/ledger_store"
	"stockcore/pkg/logger"
)

const seedActor = "seed"

// seedNamespace makes seeded IDs stable across runs.
var seedNamespace = uuid.MustParse("6f1c2a0e-8d4b-4c1e-9a57-3b2f1e0d9c11")

func seedID(name string) id.ID {
	return uuid.NewSHA1(seedNamespace, []byte(name))
}

var (
	warehouseID = seedID("warehouse:MAIN")
	locationID  = seedID("location:MAIN/A-01")
	frameID     = seedID("product:FRAME")
	wheelID     = seedID("product:WHEEL")
	lampID      = seedID("product:LAMP")
	bikeKitID   = seedID("product:BIKE-KIT")
	orderID     = seedID("purchase_order:demo")
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.AppEnv = "development"
	log := app.NewLogger(cfg).WithComponent("seed")

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	store := ledger_store.New(txm, cfg.LedgerTxOptions())
	numbering := corenumerator.NewNumbering(
		numerator.New(txm),
		numerator.NewPrefixStore(txm.PoolQuerier(), cfg.PrefixCacheTTL, nil),
		nil,
	)

	if err := seedCatalog(ctx, store, log); err != nil {
		log.Fatalw("failed to seed catalog", "error", err)
	}

	kits := kitting.NewService(kitting.Config{
		Store:     store,
		Checker:   security.AllowAll{},
		Numbering: numbering,
	})
	bom, err := kits.SetKitBOM(ctx, kitting.SetBOMInput{
		KitID:   bikeKitID,
		ActorID: seedActor,
		Components: []kitting.ComponentInput{
			{ComponentID: frameID, Quantity: types.MustQuantity("1")},
			{ComponentID: wheelID, Quantity: types.MustQuantity("2")},
			{ComponentID: lampID, Quantity: types.MustQuantity("1")},
		},
	})
	if err != nil {
		log.Fatalw("failed to seed kit bom", "error", err)
	}
	log.Infow("kit bom ready", "kit_id", bom.KitID, "components", len(bom.Components))

	number, err := seedPurchaseOrder(ctx, store, numbering)
	if err != nil {
		log.Fatalw("failed to seed purchase order", "error", err)
	}
	log.Infow("purchase order ready", "purchase_order_id", orderID, "number", number)

	if cfg.JWTSecret != "" {
		token, expiresAt, err := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret)).
			GenerateAccessToken(&appctx.UserContext{UserID: seedActor, IsAdmin: true}, time.Now())
		if err != nil {
			log.Fatalw("failed to issue demo token", "error", err)
		}
		log.Infow("demo admin token issued", "token", token, "expires_at", expiresAt)
	}

	log.Info("seeding completed successfully")
}

func seedCatalog(ctx context.Context, store ledger.Store, log *logger.Logger) error {
	return store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		if err := ensure(ctx, uow.Warehouses().Get, warehouseID, func() error {
			return uow.Warehouses().Create(ctx, &warehouse.Warehouse{
				ID: warehouseID, Code: "MAIN", Name: "Main warehouse", IsActive: true,
			})
		}); err != nil {
			return err
		}
		if err := ensure(ctx, uow.Warehouses().GetLocation, locationID, func() error {
			return uow.Warehouses().CreateLocation(ctx, &warehouse.Location{
				ID: locationID, WarehouseID: warehouseID, Code: "A-01", Name: "Aisle A, bin 01", IsActive: true,
			})
		}); err != nil {
			return err
		}

		products := []*nomenclature.Product{
			{ID: frameID, SKU: "FRAME", Name: "Bicycle frame", Unit: "pcs", IsActive: true},
			{ID: wheelID, SKU: "WHEEL", Name: "Wheel 28\"", Unit: "pcs", IsActive: true},
			{ID: lampID, SKU: "LAMP", Name: "LED lamp", Unit: "pcs", IsActive: true, TrackByBatch: true, TrackByExpiry: true},
			{ID: bikeKitID, SKU: "BIKE-KIT", Name: "Bicycle kit", Unit: "pcs", IsActive: true, IsKit: true},
		}
		for _, p := range products {
			if err := ensure(ctx, uow.Products().Get, p.ID, func() error {
				return uow.Products().Create(ctx, p)
			}); err != nil {
				return fmt.Errorf("product %s: %w", p.SKU, err)
			}
			log.Debugw("product ready", "sku", p.SKU, "id", p.ID)
		}
		return nil
	})
}

func seedPurchaseOrder(ctx context.Context, store ledger.Store, numbering *corenumerator.Numbering) (string, error) {
	var number string
	err := store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		existing, err := uow.PurchaseOrders().Get(ctx, orderID)
		if err == nil {
			number = existing.Number
			return nil
		}
		if !apperror.IsNotFound(err) {
			return err
		}

		number, err = numbering.Next(ctx, corenumerator.KindPurchaseOrder)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		po := &purchase_order.PurchaseOrder{
			ID:        orderID,
			Number:    number,
			Status:    purchase_order.StatusApproved,
			CreatedAt: now,
			UpdatedAt: now,
		}
		lines := []struct {
			product id.ID
			qty     string
			price   types.MinorUnits
		}{
			{frameID, "10", 12000},
			{wheelID, "20", 2500},
			{lampID, "10", 900},
		}
		for i, l := range lines {
			po.Items = append(po.Items, purchase_order.Item{
				ID:              id.New(),
				PurchaseOrderID: orderID,
				ProductID:       l.product,
				OrderedQuantity: types.MustQuantity(l.qty),
				UnitPrice:       l.price,
				Position:        i + 1,
			})
		}
		return uow.PurchaseOrders().Create(ctx, po)
	})
	return number, err
}

// ensure calls create when get reports the row missing.
func ensure[T any](ctx context.Context, get func(context.Context, id.ID) (T, error), rowID id.ID, create func() error) error {
	_, err := get(ctx, rowID)
	if err == nil {
		return nil
	}
	if !apperror.IsNotFound(err) {
		return err
	}
	return create()
}
