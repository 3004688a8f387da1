// Package security defines the permission port consulted by every ledger entry point.
package security

import (
	"context"
	"fmt"

	"stockcore/internal/core/apperror"
)

// Permission names a capability an actor may hold.
type Permission string

const (
	PermKitAssemble      Permission = "inventory.kit.assemble"
	PermKitDisassemble   Permission = "inventory.kit.disassemble"
	PermKitBOMManage     Permission = "inventory.kit.bom.manage"
	PermGoodsReceiptPost Permission = "inventory.goods_receipt.create"
	PermGoodsReceiptVoid Permission = "inventory.goods_receipt.void"
)

// Checker answers canUser(actor, permission).
type Checker interface {
	CanUser(ctx context.Context, actorID string, perm Permission) (bool, error)
}

// Require checks perm once and converts a denial into a FORBIDDEN error.
// A missing actor is rejected before the checker is asked.
func Require(ctx context.Context, checker Checker, actorID string, perm Permission) error {
	if actorID == "" {
		return apperror.NewUnauthorized("actor id is required")
	}
	if checker == nil {
		return apperror.NewForbidden("no permission checker configured")
	}
	ok, err := checker.CanUser(ctx, actorID, perm)
	if err != nil {
		return fmt.Errorf("check permission %s: %w", perm, err)
	}
	if !ok {
		return apperror.NewForbidden(fmt.Sprintf("permission %s required", perm)).
			WithDetail("permission", string(perm)).
			WithDetail("actor_id", actorID)
	}
	return nil
}

// AllowAll grants everything. Seed tooling and tests only.
type AllowAll struct{}

func (AllowAll) CanUser(context.Context, string, Permission) (bool, error) { return true, nil }

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, actorID string, perm Permission) (bool, error)

func (f CheckerFunc) CanUser(ctx context.Context, actorID string, perm Permission) (bool, error) {
	return f(ctx, actorID, perm)
}
