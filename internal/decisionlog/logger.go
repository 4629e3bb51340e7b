// Package decisionlog records every decision the autonomy loop makes —
// what options it weighed, what it picked, and why — in a bounded ring
// buffer (spec.md §4.J).
package decisionlog

import (
	"strings"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/ids"
	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("decisionlog")

// MaxEntries caps the ring buffer's size.
const MaxEntries = 10000

// Record is one logged decision.
type Record struct {
	ID                string
	Timestamp         int64
	Context           string
	Options           []string
	Chosen            string
	Reasoning         string
	IntelligenceLevel string
	ModelUsed         string
	Outcome           string // "" until UpdateOutcome is called
}

// Logger is a fixed-capacity, oldest-evict-first history of decisions, kept
// as a plain slice: each record is appended, and once the slice holds more
// than MaxEntries it is trimmed to the newest MaxEntries — the same
// bounded-history idiom the teacher uses for its small in-process caches.
type Logger struct {
	mu      sync.Mutex
	entries []Record
	byID    map[string]int // id -> index into entries
}

// New returns an empty Logger.
func New() *Logger {
	return &Logger{
		byID: make(map[string]int),
	}
}

// LogDecision records a decision and returns its id.
func (l *Logger) LogDecision(context string, options []string, chosen, reasoning, intelligenceLevel, modelUsed string) string {
	id := ids.Decision()
	rec := Record{
		ID:                id,
		Timestamp:         time.Now().UTC().Unix(),
		Context:           context,
		Options:           append([]string(nil), options...),
		Chosen:            chosen,
		Reasoning:         reasoning,
		IntelligenceLevel: intelligenceLevel,
		ModelUsed:         modelUsed,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, rec)
	if len(l.entries) > MaxEntries {
		l.entries = l.entries[len(l.entries)-MaxEntries:]
		l.rebuildIndexLocked()
	} else {
		l.byID[id] = len(l.entries) - 1
	}

	log.Info().Str("id", id).Str("context", context).Str("chosen", chosen).Str("reason", reasoning).Msg("decision logged")
	return id
}

func (l *Logger) rebuildIndexLocked() {
	l.byID = make(map[string]int, len(l.entries))
	for i, r := range l.entries {
		l.byID[r.ID] = i
	}
}

// UpdateOutcome attaches an outcome to a previously logged decision; a
// no-op if decisionID is unknown or has since been evicted.
func (l *Logger) UpdateOutcome(decisionID, outcome string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx, ok := l.byID[decisionID]; ok {
		l.entries[idx].Outcome = outcome
	}
}

// Recent returns up to count most-recently-logged decisions, newest first.
func (l *Logger) Recent(count int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if count > n {
		count = n
	}
	out := make([]Record, count)
	for i := 0; i < count; i++ {
		out[i] = l.entries[n-1-i]
	}
	return out
}

// ByContext returns every logged decision whose context contains pattern,
// in original logging order.
func (l *Logger) ByContext(pattern string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	for _, r := range l.entries {
		if strings.Contains(r.Context, pattern) {
			out = append(out, r)
		}
	}
	return out
}

// SuccessRate returns the fraction of decisions matching pattern (with a
// recorded outcome) whose outcome looks successful ("success" or "ok").
// Returns 0 if no matching decision has an outcome yet.
func (l *Logger) SuccessRate(pattern string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var relevant, successes int
	for _, r := range l.entries {
		if !strings.Contains(r.Context, pattern) || r.Outcome == "" {
			continue
		}
		relevant++
		if strings.Contains(r.Outcome, "success") || strings.Contains(r.Outcome, "ok") {
			successes++
		}
	}
	if relevant == 0 {
		return 0
	}
	return float64(successes) / float64(relevant)
}

// Count returns the number of decisions currently retained.
func (l *Logger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
