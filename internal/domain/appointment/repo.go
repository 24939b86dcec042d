package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors reported by Repository implementations. The service layer maps
// them onto the caller-facing taxonomy.
var (
	ErrNotFound = errors.New("appointment not found")
	// ErrStatusChanged reports a conditional status update that matched no
	// row because the appointment's status was no longer the expected one.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository is the persistence boundary for appointment records.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, nhsNumber string) ([]*Appointment, error)
	// FindOverdue returns every scheduled appointment whose start time is
	// strictly before asOf.
	FindOverdue(ctx context.Context, asOf time.Time) ([]*Appointment, error)
	// UpdateStatusFrom sets the status only while it still equals from,
	// returning the updated record. It reports ErrNotFound when the id is
	// gone and ErrStatusChanged when the row exists with a different status.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error)
}
