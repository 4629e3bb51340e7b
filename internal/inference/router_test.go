package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aios/autonomy-core/internal/budget"
)

type fakeProvider struct {
	name      string
	available bool
	result    Result
	err       error
	calls     int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) Available() bool   { return f.available }
func (f *fakeProvider) Infer(ctx context.Context, req Request) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	return f.result, nil
}

type fakeBudget struct {
	exceeded map[string]bool
	recorded []budget.UsageRecord
}

func (f *fakeBudget) IsProviderBudgetExceeded(provider string) bool {
	return f.exceeded[provider]
}

func (f *fakeBudget) RecordUsage(provider, model string, totalTokens int, agentID, taskID string) budget.UsageRecord {
	rec := budget.UsageRecord{Provider: provider, Model: model, InputTokens: totalTokens / 2, OutputTokens: totalTokens / 2}
	f.recorded = append(f.recorded, rec)
	return rec
}

func TestRoute_SelectsPreferredProviderWhenConfigured(t *testing.T) {
	a := &fakeProvider{name: RemoteA, available: true, result: Result{Text: "from A", ModelUsed: "claude"}}
	b := &fakeProvider{name: RemoteB, available: true, result: Result{Text: "from B", ModelUsed: "gpt"}}
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter([]Provider{a, b}, bm)

	got, err := r.Route(context.Background(), Request{Prompt: "hi", PreferredProvider: RemoteB})
	require.NoError(t, err)
	require.Equal(t, "from B", got.Text)
	require.Equal(t, 1, b.calls)
	require.Equal(t, 0, a.calls)
}

func TestRoute_SkipsBudgetExceededProvider(t *testing.T) {
	a := &fakeProvider{name: RemoteA, available: true, result: Result{Text: "from A"}}
	local := &fakeProvider{name: Local, available: true, result: Result{Text: "from local"}}
	bm := &fakeBudget{exceeded: map[string]bool{RemoteA: true}}
	r := NewRouter([]Provider{a, local}, bm)

	got, err := r.Route(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "from local", got.Text)
}

func TestRoute_FallsBackOnFailure(t *testing.T) {
	a := &fakeProvider{name: RemoteA, available: true, err: errors.New("boom")}
	b := &fakeProvider{name: RemoteB, available: true, result: Result{Text: "from B"}}
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter([]Provider{a, b}, bm)

	got, err := r.Route(context.Background(), Request{Prompt: "hi", AllowFallback: true})
	require.NoError(t, err)
	require.Equal(t, "from B", got.Text)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
}

func TestRoute_NoFallbackSurfacesFirstError(t *testing.T) {
	a := &fakeProvider{name: RemoteA, available: true, err: errors.New("boom")}
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter([]Provider{a}, bm)

	_, err := r.Route(context.Background(), Request{Prompt: "hi", AllowFallback: false})
	require.Error(t, err)
	require.Equal(t, 1, a.calls)
}

func TestRoute_CachesSuccessfulResult(t *testing.T) {
	a := &fakeProvider{name: RemoteA, available: true, result: Result{Text: "cached", ModelUsed: "claude"}}
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter([]Provider{a}, bm)

	req := Request{Prompt: "hi", PreferredProvider: RemoteA}
	_, err := r.Route(context.Background(), req)
	require.NoError(t, err)

	_, err = r.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, a.calls, "second call should hit cache, not the provider")
}

func TestRoute_DefaultsToLocalWhenNoRemoteAvailable(t *testing.T) {
	local := &fakeProvider{name: Local, available: true, result: Result{Text: "from local"}}
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter([]Provider{local}, bm)

	got, err := r.Route(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "from local", got.Text)
}

func TestRouteStream_EmitsSingleFinalChunk(t *testing.T) {
	a := &fakeProvider{name: RemoteA, available: true, result: Result{Text: "done"}}
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter([]Provider{a}, bm)

	ch, err := r.RouteStream(context.Background(), Request{Prompt: "hi", PreferredProvider: RemoteA})
	require.NoError(t, err)

	var chunks []StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 1)
	require.True(t, chunks[0].Final)
	require.Equal(t, "done", chunks[0].Text)
}

func TestSelectPrimary_FallsThroughPriorityToLocal(t *testing.T) {
	bm := &fakeBudget{exceeded: map[string]bool{}}
	r := NewRouter(nil, bm)
	require.Equal(t, Local, r.selectPrimary(""))
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := newResponseCache()
	c.put("p", "s", Result{Text: "x"})
	c.entries[cacheKey("p", "s")] = cacheEntry{result: Result{Text: "x"}, insertAt: c.entries[cacheKey("p", "s")].insertAt.Add(-2 * cacheTTL)}

	_, ok := c.get("p", "s")
	require.False(t, ok)
}

func TestCache_EvictsOldestWhenOverCapacity(t *testing.T) {
	c := newResponseCache()
	for i := 0; i < cacheCapacity+10; i++ {
		c.put("p", string(rune(i)), Result{Text: "x"})
	}
	require.LessOrEqual(t, c.len(), cacheCapacity)
}
