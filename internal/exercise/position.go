package exercise

import (
	"context"
	"sync"
	"time"
)

// Position locates an exercise inside its unit with its neighbours.
type Position struct {
	ExerciseID string `json:"exercise_id"`
	UnitID     string `json:"unit_id"`
	Index      int    `json:"index"` // zero-based
	Total      int    `json:"total"`
	PrevID     string `json:"prev_id,omitempty"`
	NextID     string `json:"next_id,omitempty"`
}

type unitEntry struct {
	ids     []string
	expires time.Time
}

// PositionIndex caches unit orderings for prev/next navigation. Entries expire
// after ttl and can be dropped early with Invalidate when a unit changes.
type PositionIndex struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	units map[string]unitEntry
}

func NewPositionIndex(store Store, ttl time.Duration) *PositionIndex {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PositionIndex{store: store, ttl: ttl, now: time.Now, units: map[string]unitEntry{}}
}

// Lookup returns the position of exerciseID within its unit.
func (p *PositionIndex) Lookup(ctx context.Context, exerciseID string) (Position, error) {
	e, err := p.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return Position{}, err
	}
	ids, err := p.unit(ctx, e.UnitID)
	if err != nil {
		return Position{}, err
	}
	idx := indexOf(ids, exerciseID)
	if idx < 0 {
		// exercise moved in after the unit was cached
		p.Invalidate(e.UnitID)
		if ids, err = p.unit(ctx, e.UnitID); err != nil {
			return Position{}, err
		}
		if idx = indexOf(ids, exerciseID); idx < 0 {
			return Position{}, ErrExerciseNotFound
		}
	}
	pos := Position{ExerciseID: exerciseID, UnitID: e.UnitID, Index: idx, Total: len(ids)}
	if idx > 0 {
		pos.PrevID = ids[idx-1]
	}
	if idx < len(ids)-1 {
		pos.NextID = ids[idx+1]
	}
	return pos, nil
}

// Invalidate drops the cached ordering of unitID.
func (p *PositionIndex) Invalidate(unitID string) {
	p.mu.Lock()
	delete(p.units, unitID)
	p.mu.Unlock()
}

func (p *PositionIndex) unit(ctx context.Context, unitID string) ([]string, error) {
	p.mu.Lock()
	ent, ok := p.units[unitID]
	p.mu.Unlock()
	if ok && p.now().Before(ent.expires) {
		return ent.ids, nil
	}

	list, err := p.store.ListUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, es := range list {
		ids[i] = es.ID
	}
	p.mu.Lock()
	p.units[unitID] = unitEntry{ids: ids, expires: p.now().Add(p.ttl)}
	p.mu.Unlock()
	return ids, nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
