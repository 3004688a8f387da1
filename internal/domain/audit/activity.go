// Package audit records business activity after it has been committed.
package audit

import (
	"context"
	"time"

	appctx "stockcore/internal/core/context"
	"stockcore/pkg/logger"
)

// Action names a recorded business event.
type Action string

const (
	ActionKitAssembled       Action = "kit.assembled"
	ActionKitDisassembled    Action = "kit.disassembled"
	ActionKitBOMReplaced     Action = "kit.bom_replaced"
	ActionGoodsReceived      Action = "goods_receipt.created"
	ActionGoodsReceiptVoided Action = "goods_receipt.voided"
)

// Activity is one activity-log entry.
type Activity struct {
	Action      Action         `json:"action"`
	ActorUserID string         `json:"actorUserId"`
	Entity      string         `json:"entity"`
	EntityID    string         `json:"entityId"`
	Changes     map[string]any `json:"changes,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	RequestID   string         `json:"requestId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// Logger persists or forwards activity entries.
type Logger interface {
	LogActivity(ctx context.Context, a Activity) error
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(ctx context.Context, a Activity) error

func (f LoggerFunc) LogActivity(ctx context.Context, a Activity) error { return f(ctx, a) }

// Nop discards entries.
type Nop struct{}

func (Nop) LogActivity(context.Context, Activity) error { return nil }

// Record sends a to l after commit. Request metadata missing from a is taken
// from ctx. Failures are logged and never returned: the business event has
// already happened.
func Record(ctx context.Context, l Logger, a Activity) {
	if l == nil {
		return
	}
	if a.IPAddress == "" {
		a.IPAddress = appctx.GetClientIP(ctx)
	}
	if a.RequestID == "" {
		a.RequestID = appctx.GetRequestID(ctx)
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}
	if err := l.LogActivity(ctx, a); err != nil {
		logger.Warn(ctx, "activity log failed",
			"action", a.Action,
			"entity", a.Entity,
			"entity_id", a.EntityID,
			"error", err)
	}
}
