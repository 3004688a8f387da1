// Package kitting assembles kits from components, breaks them back down and
// maintains kit bills of materials.
package kitting

import (
	"context"

	"go.opentelemetry.io/otel"

	"stockcore/internal/core/clock"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/ledger"
)

var tracer = otel.Tracer("stockcore/kitting")

// Service runs kit operations against a ledger store.
type Service struct {
	store     ledger.Store
	checker   security.Checker
	numbering *numerator.Numbering
	activity  audit.Logger
	clock     clock.Clock
}

// Config wires Service collaborators. Activity and Clock are optional.
type Config struct {
	Store     ledger.Store
	Checker   security.Checker
	Numbering *numerator.Numbering
	Activity  audit.Logger
	Clock     clock.Clock
}

// NewService creates a kitting service.
func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Activity == nil {
		cfg.Activity = audit.Nop{}
	}
	return &Service{
		store:     cfg.Store,
		checker:   cfg.Checker,
		numbering: cfg.Numbering,
		activity:  cfg.Activity,
		clock:     cfg.Clock,
	}
}

// loadKit returns a kit product and its BOM, failing when either is missing.
func loadKit(ctx context.Context, uow ledger.UnitOfWork, kitID id.ID) (*nomenclature.Product, []nomenclature.KitComponent, error) {
	kit, err := uow.Products().Get(ctx, kitID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireKit(kit); err != nil {
		return nil, nil, err
	}
	bom, err := uow.Products().ListKitComponents(ctx, kitID)
	if err != nil {
		return nil, nil, err
	}
	if len(bom) == 0 {
		return nil, nil, errEmptyBOM(kitID)
	}
	return kit, bom, nil
}
