package kitting

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/ledger"
	"stockcore/pkg/logger"
)

// ComponentInput is one proposed BOM row.
type ComponentInput struct {
	ComponentID id.ID
	Quantity    types.Quantity
}

// SetBOMInput replaces the bill of materials of KitID.
type SetBOMInput struct {
	KitID      id.ID
	ActorID    string
	Components []ComponentInput
}

// BOMResult is the persisted bill of materials in insertion order.
type BOMResult struct {
	KitID      id.ID                       `json:"kitId"`
	Components []nomenclature.KitComponent `json:"components"`
}

func (in SetBOMInput) validate() error {
	seen := make(map[id.ID]struct{}, len(in.Components))
	for i, c := range in.Components {
		if c.ComponentID == in.KitID {
			return apperror.NewSelfReferencingBOM(in.KitID)
		}
		if !c.Quantity.IsPositive() {
			return apperror.NewValidation("component quantity must be positive").
				WithDetail("index", i).
				WithDetail("componentId", c.ComponentID.String())
		}
		if _, dup := seen[c.ComponentID]; dup {
			return apperror.NewValidation("component listed more than once").
				WithDetail("componentId", c.ComponentID.String())
		}
		seen[c.ComponentID] = struct{}{}
	}
	return nil
}

// SetKitBOM replaces the kit's bill of materials after checking that the new
// rows would not close a cycle in the kit graph.
func (s *Service) SetKitBOM(ctx context.Context, in SetBOMInput) (*BOMResult, error) {
	ctx, span := tracer.Start(ctx, "kitting.SetKitBOM",
		trace.WithAttributes(attribute.String("kit.id", in.KitID.String())))
	defer span.End()

	if err := security.Require(ctx, s.checker, in.ActorID, security.PermKitBOMManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	err := s.store.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		kit, err := uow.Products().Get(ctx, in.KitID)
		if err != nil {
			return err
		}
		if err := requireActiveKit(kit); err != nil {
			return err
		}
		for _, c := range in.Components {
			if _, err := uow.Products().Get(ctx, c.ComponentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	componentIDs := make([]id.ID, len(in.Components))
	for i, c := range in.Components {
		componentIDs[i] = c.ComponentID
	}

	var result *BOMResult
	err = s.store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		products := uow.Products()

		kitIDs, err := products.ListKitIDs(ctx)
		if err != nil {
			return fmt.Errorf("list kits: %w", err)
		}
		edges, err := products.ListKitEdges(ctx)
		if err != nil {
			return fmt.Errorf("list kit edges: %w", err)
		}
		if componentID, found := BuildGraph(kitIDs, edges).FindCycle(in.KitID, componentIDs); found {
			return apperror.NewCircularBOM(in.KitID, componentID)
		}

		now := s.clock.Now()
		rows := make([]nomenclature.KitComponent, len(in.Components))
		for i, c := range in.Components {
			rows[i] = nomenclature.KitComponent{
				ID:          id.New(),
				KitID:       in.KitID,
				ComponentID: c.ComponentID,
				Quantity:    c.Quantity,
				Position:    i + 1,
				CreatedAt:   now,
			}
		}
		if err := products.ReplaceKitComponents(ctx, in.KitID, rows); err != nil {
			return fmt.Errorf("replace kit components: %w", err)
		}

		persisted, err := products.ListKitComponents(ctx, in.KitID)
		if err != nil {
			return fmt.Errorf("reload kit components: %w", err)
		}
		result = &BOMResult{KitID: in.KitID, Components: persisted}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "kit BOM replaced", "kit_id", in.KitID, "components", len(result.Components))
	audit.Record(ctx, s.activity, audit.Activity{
		Action:      audit.ActionKitBOMReplaced,
		ActorUserID: in.ActorID,
		Entity:      "kit",
		EntityID:    in.KitID.String(),
		Changes:     map[string]any{"components": bomChanges(result.Components)},
	})
	return result, nil
}

func bomChanges(rows []nomenclature.KitComponent) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any{
			"componentId": r.ComponentID.String(),
			"quantity":    r.Quantity.String(),
		}
	}
	return out
}
