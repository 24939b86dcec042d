package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/Dragos0000/patient-appointment-api/pkg/errors"
	"github.com/Dragos0000/patient-appointment-api/pkg/pagination"
	"github.com/Dragos0000/patient-appointment-api/pkg/validate"
)

const maxNameLength = 255

// Service implements patient registration and record upkeep on top of a
// Repository. All stored identifiers and postcodes are canonical.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and registers a new patient. The identifier and postcode
// are canonicalized before storage.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Patient, error) {
	nhs, err := validNHSNumber(req.NHSNumber)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := validName(name); err != nil {
		return nil, err
	}
	if req.DateOfBirth.IsZero() {
		return nil, pkgerrors.Validation("date_of_birth", "Date of birth is required")
	}
	postcode, err := validPostcode(req.Postcode)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, nhs)
	if err != nil {
		return nil, fmt.Errorf("check patient exists: %w", err)
	}
	if exists {
		return nil, conflict(nhs)
	}

	now := s.now().UTC()
	p := &Patient{
		NHSNumber:   nhs,
		Name:        name,
		DateOfBirth: req.DateOfBirth,
		Postcode:    postcode,
		Phone:       optional(req.Phone),
		Email:       optional(req.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, conflict(nhs)
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// Get returns the patient with the given NHS number.
func (s *Service) Get(ctx context.Context, nhsNumber string) (*Patient, error) {
	p, err := s.repo.Get(ctx, nhsNumber)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(nhsNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// Update applies a partial update. The NHS number itself is immutable:
// supplying a value that differs from the addressed record is rejected.
func (s *Service) Update(ctx context.Context, nhsNumber string, req *UpdateRequest) (*Patient, error) {
	p, err := s.repo.Get(ctx, nhsNumber)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(nhsNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}

	if req.NHSNumber != nil {
		supplied, err := validNHSNumber(*req.NHSNumber)
		if err != nil {
			return nil, err
		}
		if supplied != p.NHSNumber {
			return nil, pkgerrors.Validation("nhs_number", "NHS number cannot be changed")
		}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validName(name); err != nil {
			return nil, err
		}
		p.Name = name
	}
	if req.DateOfBirth != nil {
		if req.DateOfBirth.IsZero() {
			return nil, pkgerrors.Validation("date_of_birth", "Date of birth is required")
		}
		p.DateOfBirth = *req.DateOfBirth
	}
	if req.Postcode != nil {
		postcode, err := validPostcode(*req.Postcode)
		if err != nil {
			return nil, err
		}
		p.Postcode = postcode
	}
	if req.Phone != nil {
		p.Phone = optional(req.Phone)
	}
	if req.Email != nil {
		p.Email = optional(req.Email)
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(nhsNumber)
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

// Delete permanently removes the patient. Dependent appointments are
// removed by the storage layer's cascade.
func (s *Service) Delete(ctx context.Context, nhsNumber string) error {
	err := s.repo.Delete(ctx, nhsNumber)
	if errors.Is(err, ErrNotFound) {
		return notFound(nhsNumber)
	}
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

// List returns a page of patients plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return items, total, nil
}

// Exists reports whether a patient with the given canonical NHS number is
// registered. The appointment service uses it for its referential check.
func (s *Service) Exists(ctx context.Context, nhsNumber string) (bool, error) {
	return s.repo.Exists(ctx, nhsNumber)
}

func validNHSNumber(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", pkgerrors.Validation("nhs_number", "NHS number is required")
	}
	nhs, ok := validate.FormatNHSNumber(raw)
	if !ok {
		return "", pkgerrors.Validation("nhs_number", "Invalid NHS number: must be 10 digits with valid checksum")
	}
	return nhs, nil
}

func validName(name string) error {
	if name == "" {
		return pkgerrors.Validation("name", "Name is required")
	}
	if len(name) > maxNameLength {
		return pkgerrors.Validation("name", "Name must be 255 characters or fewer")
	}
	return nil
}

func validPostcode(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", pkgerrors.Validation("postcode", "Postcode is required")
	}
	postcode, ok := validate.FormatUKPostcode(raw)
	if !ok {
		return "", pkgerrors.Validation("postcode", "Invalid UK postcode format")
	}
	return postcode, nil
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func notFound(nhsNumber string) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "Patient with NHS number %s not found", nhsNumber)
}

func conflict(nhsNumber string) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Patient with NHS number %s already exists", nhsNumber)
}
