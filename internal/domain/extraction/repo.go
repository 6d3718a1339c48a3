package extraction

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List. Zero fields do not filter.
type ListFilter struct {
	PatientRef        string
	EngineID          string
	RequiresAttention *bool
}

type Repository interface {
	Create(ctx context.Context, e *Extraction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Extraction, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Extraction, int, error)
	ListByDocument(ctx context.Context, documentHash string) ([]*Extraction, error)
}
