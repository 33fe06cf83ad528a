// Package memory provides an in-memory movement source for tests and for
// hosts that assemble movement history themselves.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/erp/costing/internal/domain/costing"
	"github.com/erp/costing/internal/domain/shared"
)

// MovementSource is an append-only, per-SKU movement store. Appends assign
// log order; reads return an independently sorted copy so replay always sees
// a complete, stably ordered batch.
type MovementSource struct {
	mu        sync.RWMutex
	movements map[string][]costing.Movement
	nextSeq   int
}

// NewMovementSource creates an empty movement source
func NewMovementSource() *MovementSource {
	return &MovementSource{
		movements: make(map[string][]costing.Movement),
	}
}

// Append records a movement at the end of the log. The movement's Seq is
// assigned here; movements are immutable once recorded.
func (s *MovementSource) Append(m costing.Movement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Seq = s.nextSeq
	s.nextSeq++
	s.movements[m.SKU] = append(s.movements[m.SKU], m)
}

// AppendAll records movements in order
func (s *MovementSource) AppendAll(movements ...costing.Movement) {
	for _, m := range movements {
		s.Append(m)
	}
}

// Movements returns the SKU's full history, chronologically sorted with
// same-day ties in log order. Unknown SKUs return ErrNotFound so callers can
// tell "SKU not found" apart from "insufficient stock".
func (s *MovementSource) Movements(ctx context.Context, sku string) ([]costing.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.movements[sku]
	if !ok {
		return nil, shared.ErrNotFound
	}

	out := make([]costing.Movement, len(history))
	copy(out, history)
	costing.SortMovements(out)
	return out, nil
}

// SKUs returns all known SKUs in lexical order
func (s *MovementSource) SKUs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skus := make([]string, 0, len(s.movements))
	for sku := range s.movements {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus, nil
}
