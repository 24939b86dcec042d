package patient

import (
	"context"
	"errors"
)

// Errors reported by Repository implementations. The service layer maps
// them onto the caller-facing taxonomy.
var (
	ErrNotFound  = errors.New("patient not found")
	ErrDuplicate = errors.New("patient already exists")
)

// Repository is the persistence boundary for patient records. NHS numbers
// passed in are expected in canonical form; lookups are exact.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, nhsNumber string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, nhsNumber string) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Exists(ctx context.Context, nhsNumber string) (bool, error)
}
