package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMemoryCapacity bounds the in-memory repository used when no
// database is configured.
const DefaultMemoryCapacity = 1000

type extractionRepoMemory struct {
	mu       sync.RWMutex
	capacity int
	order    []uuid.UUID // oldest first
	byID     map[uuid.UUID]*Extraction
	now      func() time.Time
}

// NewRepoMemory keeps the most recent capacity extractions in process.
// Older ones are evicted first.
func NewRepoMemory(capacity int) Repository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &extractionRepoMemory{
		capacity: capacity,
		byID:     make(map[uuid.UUID]*Extraction),
		now:      time.Now,
	}
}

func (r *extractionRepoMemory) Create(_ context.Context, e *Extraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.now().UTC()
	stored := *e
	if _, exists := r.byID[e.ID]; !exists {
		r.order = append(r.order, e.ID)
	}
	r.byID[e.ID] = &stored
	for len(r.order) > r.capacity {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *extractionRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Extraction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *e
	return &out, nil
}

func (r *extractionRepoMemory) List(_ context.Context, f ListFilter, limit, offset int) ([]*Extraction, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*Extraction
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.byID[r.order[i]]
		if f.PatientRef != "" && (e.PatientRef == nil || *e.PatientRef != f.PatientRef) {
			continue
		}
		if f.EngineID != "" && e.EngineID != f.EngineID {
			continue
		}
		if f.RequiresAttention != nil && e.RequiresAttention != *f.RequiresAttention {
			continue
		}
		out := *e
		matched = append(matched, &out)
	}
	total := len(matched)
	if offset >= total {
		return []*Extraction{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *extractionRepoMemory) ListByDocument(_ context.Context, documentHash string) ([]*Extraction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := []*Extraction{}
	for i := len(r.order) - 1; i >= 0; i-- {
		if e := r.byID[r.order[i]]; e.DocumentHash == documentHash {
			out := *e
			items = append(items, &out)
		}
	}
	return items, nil
}
