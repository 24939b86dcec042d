package patient

import (
	"context"
	"sort"
	"sync"
)

type repoMemory struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewRepoMemory returns an in-memory Repository. It is safe for concurrent
// use and backs both the unit tests and the server's --in-memory mode.
// Listing order is by NHS number, matching the Postgres implementation.
func NewRepoMemory() Repository {
	return &repoMemory{patients: make(map[string]*Patient)}
}

func (r *repoMemory) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.NHSNumber]; ok {
		return ErrDuplicate
	}
	cp := *p
	r.patients[p.NHSNumber] = &cp
	return nil
}

func (r *repoMemory) Get(_ context.Context, nhsNumber string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[nhsNumber]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *repoMemory) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.NHSNumber]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.patients[p.NHSNumber] = &cp
	return nil
}

func (r *repoMemory) Delete(_ context.Context, nhsNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[nhsNumber]; !ok {
		return ErrNotFound
	}
	delete(r.patients, nhsNumber)
	return nil
}

func (r *repoMemory) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.patients))
	for k := range r.patients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	total := len(keys)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	items := make([]*Patient, 0, end-offset)
	for _, k := range keys[offset:end] {
		cp := *r.patients[k]
		items = append(items, &cp)
	}
	return items, total, nil
}

func (r *repoMemory) Exists(_ context.Context, nhsNumber string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.patients[nhsNumber]
	return ok, nil
}
