package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMemory struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
}

// NewRepoMemory returns an in-memory Repository. It is safe for concurrent
// use and backs both the unit tests and the server's --in-memory mode.
// Listing order is by scheduled time then id, matching the Postgres
// implementation.
func NewRepoMemory() Repository {
	return &repoMemory{appointments: make(map[uuid.UUID]*Appointment)}
}

func (r *repoMemory) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *repoMemory) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *repoMemory) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *repoMemory) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return ErrNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *repoMemory) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := r.collect(func(a *Appointment) bool { return matchesFilter(a, f) })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *repoMemory) ListByPatient(_ context.Context, nhsNumber string) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(a *Appointment) bool { return a.NHSNumber == nhsNumber }), nil
}

func (r *repoMemory) FindOverdue(_ context.Context, asOf time.Time) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(a *Appointment) bool { return IsOverdue(a, asOf) }), nil
}

func (r *repoMemory) UpdateStatusFrom(_ context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.UpdatedAt = updatedAt
	cp := *a
	return &cp, nil
}

// collect returns copies of all matching appointments, ordered by scheduled
// time then id. Callers must hold at least the read lock.
func (r *repoMemory) collect(match func(*Appointment) bool) []*Appointment {
	var items []*Appointment
	for _, a := range r.appointments {
		if match(a) {
			cp := *a
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ScheduledTime.Equal(items[j].ScheduledTime) {
			return items[i].ScheduledTime.Before(items[j].ScheduledTime)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items
}

func matchesFilter(a *Appointment, f Filter) bool {
	if f.NHSNumber != "" && a.NHSNumber != f.NHSNumber {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Department != "" && !strings.EqualFold(a.Department, f.Department) {
		return false
	}
	if f.Clinician != "" && !strings.Contains(strings.ToLower(a.Clinician), strings.ToLower(f.Clinician)) {
		return false
	}
	return true
}
