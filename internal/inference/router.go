package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/aios/autonomy-core/internal/budget"
	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("inference")

// budgetChecker is the subset of *budget.Manager the router needs; an
// interface so tests can substitute a fake.
type budgetChecker interface {
	IsProviderBudgetExceeded(provider string) bool
	RecordUsage(provider, model string, totalTokens int, agentID, taskID string) budget.UsageRecord
}

// Router selects a provider for each request, applies the cache, and falls
// back across providers on failure.
type Router struct {
	providers map[string]Provider
	budget    budgetChecker
	cache     *responseCache
}

// NewRouter builds a Router over the given providers (keyed by their Name())
// and a budget checker used to skip providers whose monthly budget is
// exhausted.
func NewRouter(providers []Provider, budgetMgr budgetChecker) *Router {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Router{
		providers: byName,
		budget:    budgetMgr,
		cache:     newResponseCache(),
	}
}

// Route selects a provider and returns its inference result, consulting the
// cache first and falling back across providers on failure when
// req.AllowFallback is set.
func (r *Router) Route(ctx context.Context, req Request) (Result, error) {
	if cached, ok := r.cache.get(req.Prompt, req.SystemPrompt); ok {
		return cached, nil
	}

	primary := r.selectPrimary(req.PreferredProvider)
	order := append([]string{primary}, r.fallbackOrder(primary)...)
	if !req.AllowFallback {
		order = order[:1]
	}

	var lastErr error
	for i, name := range order {
		p, ok := r.providers[name]
		if !ok {
			lastErr = fmt.Errorf("inference: provider %q not configured", name)
			continue
		}
		if !p.Available() {
			lastErr = fmt.Errorf("inference: provider %q not available", name)
			continue
		}
		start := time.Now()
		result, err := p.Infer(ctx, req)
		if err != nil {
			log.Warn().Str("provider", name).Err(err).Int("attempt", i+1).Msg("inference attempt failed")
			lastErr = err
			continue
		}
		if result.LatencyMS == 0 {
			result.LatencyMS = time.Since(start).Milliseconds()
		}
		r.budget.RecordUsage(name, result.ModelUsed, result.TokensUsed, req.RequestingAgent, req.TaskID)
		r.cache.put(req.Prompt, req.SystemPrompt, result)
		return result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("inference: no provider available")
	}
	return Result{}, lastErr
}

// RouteStream performs the same selection as Route; since no provider
// streams incrementally, the full response is produced and emitted as a
// single final chunk (spec.md §4.E).
func (r *Router) RouteStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	result, err := r.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Text: result.Text, Final: true}
	close(ch)
	return ch, nil
}

// selectPrimary applies spec.md §4.E step 2: explicit preference first,
// then the static priority list filtered by availability/budget, else local.
func (r *Router) selectPrimary(preferred string) string {
	if preferred != "" {
		if _, ok := r.providers[preferred]; ok {
			return preferred
		}
	}
	for _, name := range PriorityOrder {
		p, ok := r.providers[name]
		if !ok || !p.Available() {
			continue
		}
		if r.budget.IsProviderBudgetExceeded(name) {
			continue
		}
		return name
	}
	return Local
}

// fallbackOrder derives the deterministic retry order after primary fails:
// each remote falls back to the other remotes then to local; local falls
// back to the remotes in priority order.
func (r *Router) fallbackOrder(primary string) []string {
	var order []string
	if primary == Local {
		order = append(order, PriorityOrder...)
		return order
	}
	for _, name := range PriorityOrder {
		if name != primary {
			order = append(order, name)
		}
	}
	order = append(order, Local)
	return order
}
