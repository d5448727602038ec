// Package invalidation declares which mutations invalidate which cache-key
// families and drives the cascading invalidation after a committed write.
package invalidation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/sync/cache"
	"github.com/hackfest/syncengine/internal/sync/metrics"
)

// Graph resolves mutation names to cache invalidations.
type Graph struct {
	store *cache.Store
	rules map[string][]Pattern
	log   *slog.Logger
}

// NewGraph builds a graph over the given store. Extra rules are appended to
// the defaults; a rule for an existing trigger extends it.
func NewGraph(store *cache.Store, log *slog.Logger, extra ...Rule) *Graph {
	if log == nil {
		log = slog.Default()
	}
	g := &Graph{
		store: store,
		rules: make(map[string][]Pattern),
		log:   log,
	}
	for _, r := range DefaultRules() {
		g.rules[r.Trigger] = append(g.rules[r.Trigger], r.Affects...)
	}
	for _, r := range extra {
		g.rules[r.Trigger] = append(g.rules[r.Trigger], r.Affects...)
	}
	return g
}

// InvalidateFor expands every pattern declared for the mutation against the
// context and invalidates the matches. A mutation with no declared rule
// invalidates nothing and is logged, so missing edges surface in review
// rather than as silently stale UI.
func (g *Graph) InvalidateFor(ctx context.Context, mutationName string, mctx Context) int {
	patterns, ok := g.rules[mutationName]
	if !ok {
		g.log.Warn("no invalidation rule declared for mutation", "mutation", mutationName)
		return 0
	}

	total := 0
	for _, p := range patterns {
		resolved := Resolve(p, mctx)
		total += g.store.Invalidate(ctx, domain.KeyPattern{Prefix: resolved})
	}
	metrics.Invalidations.WithLabelValues(mutationName).Add(float64(total))
	g.log.Debug("cascading invalidation",
		"mutation", mutationName, "patterns", len(patterns), "entries", total)
	return total
}

// Rules returns the patterns declared for a mutation, for inspection.
func (g *Graph) Rules(mutationName string) []Pattern {
	return g.rules[mutationName]
}

// Resolve substitutes {placeholder} segments from the context. The prefix is
// truncated at the first placeholder the context cannot fill, widening the
// match to the enclosing family.
func Resolve(p Pattern, mctx Context) domain.QueryKey {
	out := make(domain.QueryKey, 0, len(p))
	for _, seg := range p {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			v, ok := mctx[name]
			if !ok || v == "" {
				return out
			}
			out = append(out, v)
			continue
		}
		out = append(out, seg)
	}
	return out
}
