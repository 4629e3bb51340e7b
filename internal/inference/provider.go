// Package inference routes prompts to one of several model providers,
// caching responses and falling back across providers on failure
// (spec.md §4.E).
package inference

import "context"

// Provider names — the four slots spec.md §4.E names concretely.
const (
	Local   = "local"
	RemoteA = "remote-a"
	RemoteB = "remote-b"
	RemoteC = "remote-c"
)

// PriorityOrder is the static provider preference order (spec.md §4.E step
// 2), tried before falling back to Local, which is always available.
var PriorityOrder = []string{RemoteA, RemoteB, RemoteC}

// Request is one inference call.
type Request struct {
	Prompt            string
	SystemPrompt      string
	MaxTokens         int
	Temperature       float64
	PreferredProvider string
	RequestingAgent   string
	TaskID            string
	AllowFallback     bool
}

// Result is what a provider (or the cache) returns for a Request.
type Result struct {
	Text       string
	TokensUsed int
	LatencyMS  int64
	ModelUsed  string
}

// StreamChunk is one emitted piece of a streamed response. Since no
// provider here streams incrementally, RouteStream emits exactly one chunk
// with Final set.
type StreamChunk struct {
	Text  string
	Final bool
}

// Provider is a single backend capable of producing an inference Result.
type Provider interface {
	Name() string
	// Available reports whether this provider has the credentials/config
	// it needs to be attempted at all.
	Available() bool
	Infer(ctx context.Context, req Request) (Result, error)
}
