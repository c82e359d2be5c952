package rating

import (
	"context"
	"sync"

	"github.com/acme/call-billing/internal/domain"
)

// CachedRuleSource memoizes a rule-table snapshot so segmentation does not
// hit the repository on every call. Invalidate must be called after any rule
// mutation; readers then see the next committed snapshot on the following
// List. Reads during the staleness window serve the previous snapshot, which
// is acceptable by contract.
type CachedRuleSource struct {
	src RuleSource

	mu     sync.RWMutex
	rules  []domain.TariffRule
	loaded bool
}

// NewCachedRuleSource wraps src with a process-wide snapshot cache.
func NewCachedRuleSource(src RuleSource) *CachedRuleSource {
	return &CachedRuleSource{src: src}
}

// List returns the cached snapshot, loading it from the underlying source on
// first use or after invalidation.
func (c *CachedRuleSource) List(ctx context.Context) ([]domain.TariffRule, error) {
	c.mu.RLock()
	if c.loaded {
		rules := c.rules
		c.mu.RUnlock()
		return rules, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.rules, nil
	}

	rules, err := c.src.List(ctx)
	if err != nil {
		return nil, err
	}
	c.rules = rules
	c.loaded = true
	return rules, nil
}

// Invalidate drops the snapshot; the next List reloads.
func (c *CachedRuleSource) Invalidate() {
	c.mu.Lock()
	c.rules = nil
	c.loaded = false
	c.mu.Unlock()
}
