// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package learn

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/latexforge/pkg/types"
)

// Learner folds the compilation record stream into per-strategy
// aggregates. It implements both the selector's performance source and
// the optimizer's recorder.
type Learner struct {
	history *HistoryStore

	mu   sync.RWMutex
	perf map[string]*types.StrategyPerformance
}

// NewLearner builds a learner over history, replaying existing records
// into the aggregates.
func NewLearner(history *HistoryStore) *Learner {
	l := &Learner{history: history, perf: map[string]*types.StrategyPerformance{}}
	for _, rec := range history.Records() {
		l.fold(rec)
	}
	return l
}

// Record appends rec to history and updates the aggregates. Aggregates
// update only after the append succeeds; history is the source of truth.
func (l *Learner) Record(rec types.CompilationRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := l.history.Append(rec); err != nil {
		return err
	}
	l.mu.Lock()
	l.fold(rec)
	l.mu.Unlock()
	return nil
}

// fold applies one record to the aggregates. Callers hold the lock
// except during construction.
func (l *Learner) fold(rec types.CompilationRecord) {
	if rec.Strategy == "" {
		return
	}
	p, ok := l.perf[rec.Strategy]
	if !ok {
		p = &types.StrategyPerformance{
			Strategy:      rec.Strategy,
			DocumentTypes: map[types.DocumentType]int{},
		}
		l.perf[rec.Strategy] = p
	}
	if rec.Status == types.StatusSuccess {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	if rec.Timestamp.After(p.LastUsed) {
		p.LastUsed = rec.Timestamp
	}
	if rec.DocumentType != "" {
		p.DocumentTypes[rec.DocumentType]++
	}
}

// Performance returns the aggregate for one strategy.
func (l *Learner) Performance(strategy string) (types.StrategyPerformance, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.perf[strategy]
	if !ok {
		return types.StrategyPerformance{}, false
	}
	out := *p
	out.DocumentTypes = map[types.DocumentType]int{}
	for k, v := range p.DocumentTypes {
		out.DocumentTypes[k] = v
	}
	return out, true
}

// Ranking returns every strategy with history, best success rate first.
// Strategies tried on docType rank ahead of those never tried on it.
func (l *Learner) Ranking(docType types.DocumentType) []types.StrategyPerformance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.StrategyPerformance, 0, len(l.perf))
	for _, p := range l.perf {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		iTyped := out[i].DocumentTypes[docType] > 0
		jTyped := out[j].DocumentTypes[docType] > 0
		if iTyped != jTyped {
			return iTyped
		}
		if out[i].SuccessRate() != out[j].SuccessRate() {
			return out[i].SuccessRate() > out[j].SuccessRate()
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}

// ExportYAML writes the aggregates to path as YAML, sorted by strategy
// name for stable diffs.
func (l *Learner) ExportYAML(path string) error {
	l.mu.RLock()
	out := make([]types.StrategyPerformance, 0, len(l.perf))
	for _, p := range l.perf {
		out = append(out, *p)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding performance export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing performance export: %w", err)
	}
	return nil
}
