package numerator

import (
	"context"
	"fmt"
	"time"
)

// Generator hands out sequential numbers.
type Generator interface {
	// GetNextNumber returns the next formatted number, e.g. GRN-2024-00001.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the sequence value (data migration only).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// SequenceKey is the storage key of cfg's sequence for the given period.
func SequenceKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// Format renders value according to cfg.
func Format(cfg Config, period time.Time, value int64) string {
	pad := cfg.PadWidth
	if pad == 0 {
		pad = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), pad, value)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, pad, value)
}
