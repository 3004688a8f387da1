// Package receiving books goods received against purchase orders into stock
// and reverses receipts that were booked in error.
package receiving

import (
	"go.opentelemetry.io/otel"

	"stockcore/internal/core/clock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/ledger"
)

var tracer = otel.Tracer("stockcore/receiving")

// Service runs receipt operations against a ledger store.
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

// NewService creates a receiving service.
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
