package numerator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"stockcore/internal/core/clock"
	"stockcore/pkg/logger"
)

// Kind identifies a numbered ledger record type.
type Kind string

const (
	KindPurchaseOrder      Kind = "purchase_order"
	KindGoodsReceipt       Kind = "goods_receipt"
	KindReceiptTransaction Kind = "receipt_transaction"
	KindAssembly           Kind = "kit_assembly"
	KindDisassembly        Kind = "kit_disassembly"
	KindAdjustment         Kind = "stock_adjustment"
)

// DefaultPrefixes is used whenever no configured prefix is available.
var DefaultPrefixes = map[Kind]string{
	KindPurchaseOrder:      "PO",
	KindGoodsReceipt:       "GRN",
	KindReceiptTransaction: "RCV",
	KindAssembly:           "ASM",
	KindDisassembly:        "DSM",
	KindAdjustment:         "ADJ",
}

// PrefixProvider returns the configured prefix for kind. An empty result
// means "not configured".
type PrefixProvider interface {
	Prefix(ctx context.Context, kind Kind) (string, error)
}

// Numbering builds numbers for ledger records from a sequence generator,
// an optional prefix provider and a clock.
type Numbering struct {
	generator Generator
	prefixes  PrefixProvider
	clock     clock.Clock
	opts      *Options
}

// NewNumbering creates Numbering. prefixes may be nil.
func NewNumbering(generator Generator, prefixes PrefixProvider, clk clock.Clock) *Numbering {
	if clk == nil {
		clk = clock.System{}
	}
	return &Numbering{
		generator: generator,
		prefixes:  prefixes,
		clock:     clk,
		opts:      DefaultOptions(),
	}
}

// WithOptions sets the generator strategy.
func (n *Numbering) WithOptions(opts *Options) *Numbering {
	n.opts = opts
	return n
}

// Prefix resolves the prefix for kind. Provider failures never block numbering.
func (n *Numbering) Prefix(ctx context.Context, kind Kind) string {
	if n.prefixes != nil {
		p, err := n.prefixes.Prefix(ctx, kind)
		if err != nil {
			logger.Warn(ctx, "numbering prefix lookup failed, using default", "kind", kind, "error", err)
		} else if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	if p, ok := DefaultPrefixes[kind]; ok {
		return p
	}
	return strings.ToUpper(string(kind))
}

// Next returns the next sequential number for kind.
func (n *Numbering) Next(ctx context.Context, kind Kind) (string, error) {
	cfg := DefaultConfig(n.Prefix(ctx, kind))
	return n.generator.GetNextNumber(ctx, cfg, n.opts, n.clock.Now())
}

// FromKey derives a stable number from a caller-supplied idempotency key.
// The same key always yields the same number for the same prefix.
func (n *Numbering) FromKey(ctx context.Context, kind Kind, key string) string {
	sum := sha256.Sum256([]byte(key))
	return n.Prefix(ctx, kind) + "-" + strings.ToUpper(hex.EncodeToString(sum[:6]))
}
