package numerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"stockcore/internal/core/clock"
	corenumerator "stockcore/internal/core/numerator"
)

// PrefixStore reads configured prefixes from sys_numbering_prefixes and keeps
// them for ttl. Concurrent misses for one kind share a single query.
type PrefixStore struct {
	querier Querier
	ttl     time.Duration
	clock   clock.Clock

	mu    sync.RWMutex
	cache map[corenumerator.Kind]prefixEntry
	group singleflight.Group
}

type prefixEntry struct {
	prefix  string
	expires time.Time
}

var _ corenumerator.PrefixProvider = (*PrefixStore)(nil)

// NewPrefixStore creates a prefix provider. A nil clk uses the system clock.
func NewPrefixStore(q Querier, ttl time.Duration, clk clock.Clock) *PrefixStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &PrefixStore{
		querier: q,
		ttl:     ttl,
		clock:   clk,
		cache:   make(map[corenumerator.Kind]prefixEntry),
	}
}

// Prefix returns the configured prefix for kind, or "" when none is set.
func (p *PrefixStore) Prefix(ctx context.Context, kind corenumerator.Kind) (string, error) {
	now := p.clock.Now()
	p.mu.RLock()
	e, ok := p.cache[kind]
	p.mu.RUnlock()
	if ok && now.Before(e.expires) {
		return e.prefix, nil
	}

	ch := p.group.DoChan(string(kind), func() (any, error) {
		return p.load(context.WithoutCancel(ctx), kind)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *PrefixStore) load(ctx context.Context, kind corenumerator.Kind) (string, error) {
	var prefix string
	err := p.querier.QueryRow(ctx,
		`SELECT prefix FROM sys_numbering_prefixes WHERE kind = $1`, string(kind)).Scan(&prefix)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("load prefix %s: %w", kind, err)
	}

	p.mu.Lock()
	p.cache[kind] = prefixEntry{prefix: prefix, expires: p.clock.Now().Add(p.ttl)}
	p.mu.Unlock()
	return prefix, nil
}

// Invalidate drops every cached prefix.
func (p *PrefixStore) Invalidate() {
	p.mu.Lock()
	p.cache = make(map[corenumerator.Kind]prefixEntry)
	p.mu.Unlock()
}
