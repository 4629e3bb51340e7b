// Package budget tracks per-provider monthly API spend and enforces the
// spending caps the Inference Router consults before routing a request
// (spec.md §4.F). Counters persist across restarts via internal/storage;
// a month boundary crossing resets them in place.
package budget

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("budget")

// Providers carrying their own monthly budget. "local" never costs anything.
const (
	Local   = "local"
	RemoteA = "remote-a"
	RemoteB = "remote-b"
	RemoteC = "remote-c"
)

// rate is the USD-per-1K-token price for one side (input or output) of a
// provider's traffic. local has no rate since it never costs anything.
type rate struct {
	inputPer1K  float64
	outputPer1K float64
}

// defaultRates are representative published rates for each remote provider;
// local is omitted deliberately since costPerTokens short-circuits to 0 for it.
var defaultRates = map[string]rate{
	RemoteA: {inputPer1K: 0.003, outputPer1K: 0.015},
	RemoteB: {inputPer1K: 0.0025, outputPer1K: 0.01},
	RemoteC: {inputPer1K: 0.003, outputPer1K: 0.015},
}

// UsageRecord is one recorded call, kept in memory for the current billing
// month (and durably in usage_records for history beyond it).
type UsageRecord struct {
	Provider        string
	Model           string
	InputTokens     int
	OutputTokens    int
	CostUSD         float64
	Timestamp       time.Time
	RequestingAgent string
	TaskID          string
}

// Status is a snapshot of the current billing period.
type Status struct {
	Budgets        map[string]float64
	Used           map[string]float64
	DaysRemaining  int
	DailyRateUSD   float64
	BudgetExceeded bool
}

// Manager tracks monthly spend for every provider slot.
type Manager struct {
	mu         sync.Mutex
	db         *sql.DB
	budgets    map[string]float64
	used       map[string]float64
	records    []UsageRecord
	monthStart time.Time
}

// New creates a Manager with the given per-provider monthly budgets (USD),
// starting at the current UTC month and rehydrating used-so-far counters
// from db rows persisted within that month; older rows are ignored.
func New(db *sql.DB, budgets map[string]float64) (*Manager, error) {
	m := &Manager{
		db:         db,
		budgets:    budgets,
		used:       make(map[string]float64, len(budgets)),
		monthStart: currentMonthStart(),
	}
	for p := range budgets {
		m.used[p] = 0
	}
	if err := m.rehydrate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) rehydrate() error {
	rows, err := m.db.Query(`SELECT provider, monthly_budget_usd, used_usd, month_start FROM provider_budgets`)
	if err != nil {
		return fmt.Errorf("budget: rehydrate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var budget, used float64
		var monthStartUnix int64
		if err := rows.Scan(&provider, &budget, &used, &monthStartUnix); err != nil {
			return fmt.Errorf("budget: scan: %w", err)
		}
		persistedMonth := time.Unix(monthStartUnix, 0).UTC()
		if persistedMonth.Before(m.monthStart) {
			// new billing month since last persisted row — leave at zero
			continue
		}
		if _, known := m.budgets[provider]; known {
			m.used[provider] = used
		}
	}
	return rows.Err()
}

// RecordUsage records one completed call against provider's monthly
// counter, applying the 50/50 input/output token split documented as an
// approximation in spec.md §4.F.
func (m *Manager) RecordUsage(provider, model string, totalTokens int, agentID, taskID string) UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeResetMonthly()

	inputTokens := totalTokens / 2
	outputTokens := totalTokens - inputTokens
	cost := m.costFor(provider, inputTokens, outputTokens)
	m.used[provider] += cost

	rec := UsageRecord{
		Provider:        provider,
		Model:           model,
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
		CostUSD:         cost,
		Timestamp:       time.Now().UTC(),
		RequestingAgent: agentID,
		TaskID:          taskID,
	}
	m.records = append(m.records, rec)
	m.persist(provider)

	log.Info().
		Str("provider", provider).
		Int("tokens", totalTokens).
		Float64("cost_usd", cost).
		Float64("used_usd", m.used[provider]).
		Msg("recorded usage")

	if budget, ok := m.budgets[provider]; ok && budget > 0 && m.used[provider] > budget*0.8 {
		log.Warn().
			Str("provider", provider).
			Float64("used_usd", m.used[provider]).
			Float64("budget_usd", budget).
			Msg("approaching monthly budget")
	}
	return rec
}

func (m *Manager) costFor(provider string, inputTokens, outputTokens int) float64 {
	r, ok := defaultRates[provider]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*r.inputPer1K + float64(outputTokens)/1000*r.outputPer1K
}

func (m *Manager) persist(provider string) {
	budget := m.budgets[provider]
	_, err := m.db.Exec(
		`INSERT INTO provider_budgets (provider, monthly_budget_usd, used_usd, month_start)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(provider) DO UPDATE SET used_usd = excluded.used_usd, month_start = excluded.month_start`,
		provider, budget, m.used[provider], m.monthStart.Unix(),
	)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("failed to persist budget counter")
	}
}

// IsBudgetExceeded reports whether EVERY remote provider has exhausted its
// monthly budget — local is never considered since it has no cap.
func (m *Manager) IsBudgetExceeded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allRemoteExceededLocked()
}

func (m *Manager) allRemoteExceededLocked() bool {
	any := false
	for _, p := range []string{RemoteA, RemoteB, RemoteC} {
		budget, ok := m.budgets[p]
		if !ok {
			continue
		}
		any = true
		if m.used[p] < budget {
			return false
		}
	}
	return any
}

// IsProviderBudgetExceeded reports whether the given provider's own monthly
// budget has been used up. local never exceeds; an unregistered provider is
// always treated as exceeded.
func (m *Manager) IsProviderBudgetExceeded(provider string) bool {
	if provider == Local {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	budget, ok := m.budgets[provider]
	if !ok {
		return true
	}
	return m.used[provider] >= budget
}

// PreCheck rejects a request before it is routed if the provider's budget is
// already used up, or if every remote provider is already exhausted.
func (m *Manager) PreCheck(provider string) error {
	if provider == Local {
		return nil
	}
	if m.IsBudgetExceeded() {
		return fmt.Errorf("all remote provider budgets exceeded for this billing period")
	}
	if m.IsProviderBudgetExceeded(provider) {
		m.mu.Lock()
		used, budget := m.used[provider], m.budgets[provider]
		m.mu.Unlock()
		return fmt.Errorf("%s budget exceeded: $%.2f / $%.2f", provider, used, budget)
	}
	return nil
}

// RemainingBudget returns the USD remaining for a provider this month, never
// negative. local always returns +Inf conceptually; we report 0 cost headroom
// as irrelevant since PreCheck never gates it — callers should not branch on
// this value for local.
func (m *Manager) RemainingBudget(provider string) float64 {
	if provider == Local {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	budget, ok := m.budgets[provider]
	if !ok {
		return 0
	}
	remaining := budget - m.used[provider]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Status returns a snapshot used by the management HTTP surface.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	dayOfMonth := now.Day()
	const approxDaysInMonth = 30
	daysRemaining := approxDaysInMonth - dayOfMonth
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	var totalUsed float64
	for _, v := range m.used {
		totalUsed += v
	}
	var dailyRate float64
	if dayOfMonth > 0 {
		dailyRate = totalUsed / float64(dayOfMonth)
	}

	budgets := make(map[string]float64, len(m.budgets))
	used := make(map[string]float64, len(m.used))
	for k, v := range m.budgets {
		budgets[k] = v
	}
	for k, v := range m.used {
		used[k] = v
	}

	return Status{
		Budgets:        budgets,
		Used:           used,
		DaysRemaining:  daysRemaining,
		DailyRateUSD:   dailyRate,
		BudgetExceeded: m.allRemoteExceededLocked(),
	}
}

// Usage returns recorded calls for provider (or all providers if empty)
// within the last `days` days.
func (m *Manager) Usage(provider string, days int) []UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	var out []UsageRecord
	for _, r := range m.records {
		if (provider == "" || r.Provider == provider) && !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) maybeResetMonthly() {
	current := currentMonthStart()
	if current.After(m.monthStart) {
		log.Info().Time("new_month_start", current).Msg("new billing month — resetting counters")
		for p := range m.used {
			m.used[p] = 0
		}
		m.monthStart = current
		m.records = nil
	}
}

func currentMonthStart() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
