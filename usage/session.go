package usage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
)

// Record is the usage of one generation.
type Record struct {
	Time  time.Time
	Model string
	Usage llmprovider.TokenUsage
	Cost  float64
}

// Limits caps spending. Zero disables a limit.
type Limits struct {
	PerSession float64 // USD
	PerHour    float64 // USD
}

// DefaultLimits are the spending caps applied when none are configured.
func DefaultLimits() Limits {
	return Limits{PerSession: 5.0, PerHour: 10.0}
}

// Session keeps running totals across turns. It is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	table   *Table
	limits  Limits
	records []Record
	total   llmprovider.TokenUsage
	cost    float64
	now     func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTable prices records with t instead of the default table.
func WithTable(t *Table) SessionOption {
	return func(s *Session) { s.table = t }
}

// WithLimits sets spending caps.
func WithLimits(l Limits) SessionOption {
	return func(s *Session) { s.limits = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession returns an empty session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = Default()
	}
	return s
}

// Record adds the usage of one generation and returns the priced record.
func (s *Session) Record(model string, u llmprovider.TokenUsage) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Record{
		Time:  s.now(),
		Model: model,
		Usage: u,
		Cost:  s.table.CostFor(u, model),
	}
	s.records = append(s.records, r)
	s.total = s.total.Add(u)
	s.cost += r.Cost
	return r
}

// Total returns the accumulated token usage.
func (s *Session) Total() llmprovider.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Cost returns the accumulated cost in USD.
func (s *Session) Cost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cost
}

// HourlyCost returns the cost of records from the last hour.
func (s *Session) HourlyCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hourlyCostLocked()
}

func (s *Session) hourlyCostLocked() float64 {
	cutoff := s.now().Add(-time.Hour)
	var cost float64
	for _, r := range s.records {
		if r.Time.After(cutoff) {
			cost += r.Cost
		}
	}
	return cost
}

// Records returns a copy of every record.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// CheckLimit reports whether spending is within the limits. The message
// explains a breach, or warns once 80% of a limit is used.
func (s *Session) CheckLimit() (ok bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.cost
	hour := s.hourlyCostLocked()

	if s.limits.PerSession > 0 && session >= s.limits.PerSession {
		return false, fmt.Sprintf("session cost limit ($%.2f) reached, current: $%.2f", s.limits.PerSession, session)
	}
	if s.limits.PerHour > 0 && hour >= s.limits.PerHour {
		return false, fmt.Sprintf("hourly cost limit ($%.2f) reached, current: $%.2f", s.limits.PerHour, hour)
	}

	var warnings []string
	if s.limits.PerSession > 0 && session >= s.limits.PerSession*0.8 {
		warnings = append(warnings, fmt.Sprintf("approaching session limit: $%.2f/$%.2f", session, s.limits.PerSession))
	}
	if s.limits.PerHour > 0 && hour >= s.limits.PerHour*0.8 {
		warnings = append(warnings, fmt.Sprintf("approaching hourly limit: $%.2f/$%.2f", hour, s.limits.PerHour))
	}
	return true, strings.Join(warnings, "; ")
}

// Reset clears all records.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.total = llmprovider.TokenUsage{}
	s.cost = 0
}
