package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/Dragos0000/patient-appointment-api/pkg/errors"
	"github.com/Dragos0000/patient-appointment-api/pkg/pagination"
	"github.com/Dragos0000/patient-appointment-api/pkg/validate"
)

// PatientDirectory is the view of the patient registry the appointment
// service needs: an existence check for the referential validation on
// creation, and a not-found check on per-patient listings.
type PatientDirectory interface {
	Exists(ctx context.Context, nhsNumber string) (bool, error)
}

// Service implements appointment booking, lifecycle transitions and the
// overdue sweep on top of a Repository.
type Service struct {
	repo     Repository
	patients PatientDirectory
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory) *Service {
	return &Service{repo: repo, patients: patients, now: time.Now}
}

// Create validates and books a new appointment. The patient reference must
// pass the identifier grammar and resolve to a registered patient; both
// failures are validation errors because the booking request itself is
// malformed. New appointments always start scheduled.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	nhs, ok := validate.FormatNHSNumber(req.NHSNumber)
	if !ok {
		return nil, pkgerrors.Validation("patient", "Invalid NHS number: must be 10 digits with valid checksum")
	}
	exists, err := s.patients.Exists(ctx, nhs)
	if err != nil {
		return nil, fmt.Errorf("check patient exists: %w", err)
	}
	if !exists {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Patient with NHS number %s does not exist", nhs)
	}
	if req.ScheduledTime.IsZero() {
		return nil, pkgerrors.Validation("time", "Scheduled time is required")
	}
	_, duration, err := ParseDuration(req.Duration)
	if err != nil {
		return nil, err
	}
	clinician := strings.TrimSpace(req.Clinician)
	if clinician == "" {
		return nil, pkgerrors.Validation("clinician", "Clinician is required")
	}
	department := strings.TrimSpace(req.Department)
	if department == "" {
		return nil, pkgerrors.Validation("department", "Department is required")
	}
	postcode, err := validAppointmentPostcode(req.Postcode)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &Appointment{
		ID:            uuid.New(),
		NHSNumber:     nhs,
		Status:        StatusScheduled,
		ScheduledTime: req.ScheduledTime,
		Duration:      duration,
		Clinician:     clinician,
		Department:    department,
		Postcode:      postcode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return a, nil
}

// Get returns the appointment with the given id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// Update applies a partial update. Supplied fields are re-validated; a
// status change must be legal under the transition graph, and an illegal
// one is a business-rule failure rather than a validation failure.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	if req.NHSNumber != nil {
		nhs, ok := validate.FormatNHSNumber(*req.NHSNumber)
		if !ok {
			return nil, pkgerrors.Validation("patient", "Invalid NHS number: must be 10 digits with valid checksum")
		}
		exists, err := s.patients.Exists(ctx, nhs)
		if err != nil {
			return nil, fmt.Errorf("check patient exists: %w", err)
		}
		if !exists {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Patient with NHS number %s does not exist", nhs)
		}
		a.NHSNumber = nhs
	}
	if req.Status != nil {
		status, ok := ParseStatus(*req.Status)
		if !ok {
			return nil, pkgerrors.Validation("status", "Invalid status: must be one of scheduled, attended, cancelled, missed")
		}
		if !CanTransition(a.Status, status) {
			return nil, pkgerrors.Newf(pkgerrors.CodeBusinessRule, "Invalid status transition from %s to %s", a.Status, status)
		}
		a.Status = status
	}
	if req.ScheduledTime != nil {
		if req.ScheduledTime.IsZero() {
			return nil, pkgerrors.Validation("time", "Scheduled time is required")
		}
		a.ScheduledTime = *req.ScheduledTime
	}
	if req.Duration != nil {
		_, duration, err := ParseDuration(*req.Duration)
		if err != nil {
			return nil, err
		}
		a.Duration = duration
	}
	if req.Clinician != nil {
		clinician := strings.TrimSpace(*req.Clinician)
		if clinician == "" {
			return nil, pkgerrors.Validation("clinician", "Clinician is required")
		}
		a.Clinician = clinician
	}
	if req.Department != nil {
		department := strings.TrimSpace(*req.Department)
		if department == "" {
			return nil, pkgerrors.Validation("department", "Department is required")
		}
		a.Department = department
	}
	if req.Postcode != nil {
		postcode, err := validAppointmentPostcode(*req.Postcode)
		if err != nil {
			return nil, err
		}
		a.Postcode = postcode
	}

	a.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return a, nil
}

// Delete permanently removes the appointment.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// Cancel moves a scheduled appointment to cancelled. Cancelling an already
// cancelled appointment is an idempotent no-op; any other state refuses.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	switch a.Status {
	case StatusCancelled:
		return a, nil
	case StatusScheduled:
		return s.transition(ctx, id, StatusScheduled, StatusCancelled)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Only scheduled appointments can be cancelled")
	}
}

// Attend moves a scheduled appointment to attended.
func (s *Service) Attend(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	switch a.Status {
	case StatusScheduled:
		return s.transition(ctx, id, StatusScheduled, StatusAttended)
	case StatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Cancelled appointments cannot be reinstated")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Only scheduled appointments can be marked as attended")
	}
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	updated, err := s.repo.UpdateStatusFrom(ctx, id, from, to, s.now().UTC())
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(id)
	}
	if errors.Is(err, ErrStatusChanged) {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrency, "Appointment was modified concurrently, please retry")
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

// List returns a filtered page of appointments plus the total count of
// matches.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return items, total, nil
}

// ListByPatient returns every appointment booked for the given patient,
// failing with not-found when the patient is not registered.
func (s *Service) ListByPatient(ctx context.Context, nhsNumber string) ([]*Appointment, error) {
	exists, err := s.patients.Exists(ctx, nhsNumber)
	if err != nil {
		return nil, fmt.Errorf("check patient exists: %w", err)
	}
	if !exists {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Patient with NHS number %s not found", nhsNumber)
	}
	items, err := s.repo.ListByPatient(ctx, nhsNumber)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return items, nil
}

// SweepResult reports what one overdue sweep pass did.
type SweepResult struct {
	// Marked holds the appointments transitioned to missed, in the state
	// they were left in.
	Marked []*Appointment
	// Skipped counts candidates that changed status or disappeared between
	// the scan and the conditional update.
	Skipped int
	// Errors collects per-appointment update failures; one bad record never
	// aborts the rest of the sweep.
	Errors []error
}

// MarkedIDs returns the ids of the appointments the sweep transitioned.
func (r *SweepResult) MarkedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Marked))
	for _, a := range r.Marked {
		ids = append(ids, a.ID)
	}
	return ids
}

// RunOverdueSweep finds every scheduled appointment whose start time is
// strictly before asOf and marks each one missed through a conditional
// per-record update, so a concurrent interactive transition always wins.
// Running it again immediately produces no further transitions.
func (s *Service) RunOverdueSweep(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	overdue, err := s.repo.FindOverdue(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("find overdue appointments: %w", err)
	}
	res := &SweepResult{}
	for _, a := range overdue {
		updated, err := s.repo.UpdateStatusFrom(ctx, a.ID, StatusScheduled, StatusMissed, s.now().UTC())
		switch {
		case errors.Is(err, ErrStatusChanged) || errors.Is(err, ErrNotFound):
			res.Skipped++
		case err != nil:
			res.Errors = append(res.Errors, fmt.Errorf("appointment %s: %w", a.ID, err))
		default:
			res.Marked = append(res.Marked, updated)
		}
	}
	return res, nil
}

func validAppointmentPostcode(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", pkgerrors.Validation("postcode", "Postcode is required")
	}
	postcode, ok := validate.FormatUKPostcode(raw)
	if !ok {
		return "", pkgerrors.Validation("postcode", "Invalid UK postcode format")
	}
	return postcode, nil
}

func notFound(id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "Appointment with ID %s not found", id)
}
