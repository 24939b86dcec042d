package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/Dragos0000/patient-appointment-api/pkg/errors"
)

type fakeDirectory struct {
	known map[string]bool
}

func (d *fakeDirectory) Exists(_ context.Context, nhsNumber string) (bool, error) {
	return d.known[nhsNumber], nil
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	dir := &fakeDirectory{known: map[string]bool{
		"9434765919": true,
		"1234567881": true,
	}}
	svc := NewService(NewRepoMemory(), dir)
	svc.now = func() time.Time { return testNow }
	return svc
}

func validCreate() *CreateRequest {
	return &CreateRequest{
		NHSNumber:     "9434765919",
		ScheduledTime: testNow.Add(24 * time.Hour),
		Duration:      "1h",
		Clinician:     "Dr. Sarah Jones",
		Department:    "Cardiology",
		Postcode:      "SW1A 1AA",
	}
}

func mustCreate(t *testing.T, svc *Service, req *CreateRequest) *Appointment {
	t.Helper()
	a, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestCreateAppointment(t *testing.T) {
	svc := newTestService()

	req := validCreate()
	req.NHSNumber = "943 476 5919"
	req.Duration = "  1h 30m  "
	req.Postcode = "sw1a1aa"

	a := mustCreate(t, svc, req)
	if a.ID == uuid.Nil {
		t.Error("expected id to be generated")
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected new appointment to be scheduled, got %s", a.Status)
	}
	if a.NHSNumber != "9434765919" {
		t.Errorf("expected canonical patient reference, got %q", a.NHSNumber)
	}
	if a.Duration != "1h 30m" {
		t.Errorf("expected trimmed duration, got %q", a.Duration)
	}
	if a.Postcode != "SW1A 1AA" {
		t.Errorf("expected canonical postcode, got %q", a.Postcode)
	}
	if a.CreatedAt.IsZero() || a.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCreateAppointment_UnknownPatient(t *testing.T) {
	svc := newTestService()

	req := validCreate()
	req.NHSNumber = "9876543210"
	_, err := svc.Create(context.Background(), req)
	if !pkgerrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := "Patient with NHS number 9876543210 does not exist"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	items, total, _ := svc.List(context.Background(), Filter{}, 10, 0)
	if total != 0 || len(items) != 0 {
		t.Error("expected nothing to be persisted for a rejected booking")
	}
}

func TestCreateAppointment_InvalidPatientIdentifier(t *testing.T) {
	svc := newTestService()

	req := validCreate()
	req.NHSNumber = "9434765918"
	if _, err := svc.Create(context.Background(), req); !pkgerrors.IsValidation(err) {
		t.Errorf("expected validation error for bad checksum, got %v", err)
	}
}

func TestCreateAppointment_FieldValidation(t *testing.T) {
	svc := newTestService()

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"missing time", func(r *CreateRequest) { r.ScheduledTime = time.Time{} }},
		{"bad duration", func(r *CreateRequest) { r.Duration = "ninety minutes" }},
		{"zero duration", func(r *CreateRequest) { r.Duration = "0h" }},
		{"missing clinician", func(r *CreateRequest) { r.Clinician = "  " }},
		{"missing department", func(r *CreateRequest) { r.Department = "" }},
		{"bad postcode", func(r *CreateRequest) { r.Postcode = "XYZ" }},
	}
	for _, tc := range cases {
		req := validCreate()
		tc.mutate(req)
		if _, err := svc.Create(context.Background(), req); !pkgerrors.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	svc := newTestService()

	id := uuid.New()
	_, err := svc.Get(context.Background(), id)
	if !pkgerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	want := "Appointment with ID " + id.String() + " not found"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestUpdateAppointment(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())

	clinician := "Dr. Alan Reid"
	duration := "45m"
	updated, err := svc.Update(context.Background(), a.ID, &UpdateRequest{
		Clinician: &clinician,
		Duration:  &duration,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Clinician != "Dr. Alan Reid" || updated.Duration != "45m" {
		t.Errorf("expected updated fields, got %q %q", updated.Clinician, updated.Duration)
	}
	if updated.Department != "Cardiology" {
		t.Error("expected untouched fields to survive the update")
	}
}

func TestUpdateAppointment_StatusTransitions(t *testing.T) {
	svc := newTestService()

	set := func(s string) *string { return &s }

	// A direct update may move a scheduled appointment anywhere.
	a := mustCreate(t, svc, validCreate())
	updated, err := svc.Update(context.Background(), a.ID, &UpdateRequest{Status: set("attended")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusAttended {
		t.Errorf("expected attended, got %s", updated.Status)
	}

	// Attended is not terminal under the current graph.
	if _, err := svc.Update(context.Background(), a.ID, &UpdateRequest{Status: set("scheduled")}); err != nil {
		t.Errorf("expected attended -> scheduled to be permitted, got %v", err)
	}

	// Nothing leaves cancelled.
	b := mustCreate(t, svc, validCreate())
	if _, err := svc.Cancel(context.Background(), b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Update(context.Background(), b.ID, &UpdateRequest{Status: set("scheduled")})
	if !pkgerrors.IsBusinessRule(err) {
		t.Fatalf("expected business-rule error, got %v", err)
	}
	want := "Invalid status transition from cancelled to scheduled"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	// Re-asserting cancelled is permitted.
	if _, err := svc.Update(context.Background(), b.ID, &UpdateRequest{Status: set("cancelled")}); err != nil {
		t.Errorf("expected cancelled -> cancelled to be permitted, got %v", err)
	}

	// Unknown status values are validation failures, not business rules.
	_, err = svc.Update(context.Background(), b.ID, &UpdateRequest{Status: set("active")})
	if !pkgerrors.IsValidation(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdateAppointment_MovePatient(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())

	unknown := "9876543210"
	if _, err := svc.Update(context.Background(), a.ID, &UpdateRequest{NHSNumber: &unknown}); !pkgerrors.IsValidation(err) {
		t.Errorf("expected validation error for unknown patient, got %v", err)
	}

	known := "1234567881"
	updated, err := svc.Update(context.Background(), a.ID, &UpdateRequest{NHSNumber: &known})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.NHSNumber != "1234567881" {
		t.Errorf("expected reassigned patient, got %q", updated.NHSNumber)
	}
}

func TestCancel(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())

	cancelled, err := svc.Cancel(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	// Cancelling again is an idempotent no-op.
	again, err := svc.Cancel(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", again.Status)
	}
}

func TestCancel_OnlyFromScheduled(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())
	if _, err := svc.Attend(context.Background(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Cancel(context.Background(), a.ID)
	if !pkgerrors.IsBusinessRule(err) {
		t.Fatalf("expected business-rule error, got %v", err)
	}
	want := "Only scheduled appointments can be cancelled"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestCancel_NotFound(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Cancel(context.Background(), uuid.New()); !pkgerrors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestAttend(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())

	attended, err := svc.Attend(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attended.Status != StatusAttended {
		t.Errorf("expected attended, got %s", attended.Status)
	}
}

func TestAttend_CancelledCannotBeReinstated(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())
	svc.Cancel(context.Background(), a.ID)

	_, err := svc.Attend(context.Background(), a.ID)
	if !pkgerrors.IsBusinessRule(err) {
		t.Fatalf("expected business-rule error, got %v", err)
	}
	want := "Cancelled appointments cannot be reinstated"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestAttend_OnlyFromScheduled(t *testing.T) {
	svc := newTestService()
	a := mustCreate(t, svc, validCreate())
	svc.Attend(context.Background(), a.ID)

	if _, err := svc.Attend(context.Background(), a.ID); !pkgerrors.IsBusinessRule(err) {
		t.Errorf("expected business-rule error for attended appointment, got %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	svc := newTestService()

	first := validCreate()
	first.Clinician = "Dr. Sarah Jones"
	first.Department = "Cardiology"
	mustCreate(t, svc, first)

	second := validCreate()
	second.NHSNumber = "1234567881"
	second.Clinician = "Dr. Alan Reid"
	second.Department = "Neurology"
	second.ScheduledTime = testNow.Add(48 * time.Hour)
	b := mustCreate(t, svc, second)

	svc.Cancel(context.Background(), b.ID)

	// By patient, exact.
	items, total, err := svc.List(context.Background(), Filter{NHSNumber: "9434765919"}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].NHSNumber != "9434765919" {
		t.Errorf("patient filter: expected 1 match, got %d", total)
	}

	// By status.
	items, total, _ = svc.List(context.Background(), Filter{Status: StatusCancelled}, 50, 0)
	if total != 1 || items[0].ID != b.ID {
		t.Errorf("status filter: expected the cancelled appointment, got %d matches", total)
	}

	// Department is case-insensitive, exact.
	_, total, _ = svc.List(context.Background(), Filter{Department: "neurology"}, 50, 0)
	if total != 1 {
		t.Errorf("department filter: expected 1 match, got %d", total)
	}
	_, total, _ = svc.List(context.Background(), Filter{Department: "neuro"}, 50, 0)
	if total != 0 {
		t.Errorf("department filter: expected no partial matches, got %d", total)
	}

	// Clinician is a case-insensitive substring.
	_, total, _ = svc.List(context.Background(), Filter{Clinician: "reid"}, 50, 0)
	if total != 1 {
		t.Errorf("clinician filter: expected 1 match, got %d", total)
	}

	// Combined filters.
	_, total, _ = svc.List(context.Background(), Filter{NHSNumber: "1234567881", Status: StatusCancelled}, 50, 0)
	if total != 1 {
		t.Errorf("combined filter: expected 1 match, got %d", total)
	}
	_, total, _ = svc.List(context.Background(), Filter{NHSNumber: "1234567881", Status: StatusScheduled}, 50, 0)
	if total != 0 {
		t.Errorf("combined filter: expected no matches, got %d", total)
	}
}

func TestList_OrderedByScheduledTime(t *testing.T) {
	svc := newTestService()

	later := validCreate()
	later.ScheduledTime = testNow.Add(72 * time.Hour)
	mustCreate(t, svc, later)

	sooner := validCreate()
	sooner.ScheduledTime = testNow.Add(24 * time.Hour)
	mustCreate(t, svc, sooner)

	items, _, err := svc.List(context.Background(), Filter{}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || !items[0].ScheduledTime.Before(items[1].ScheduledTime) {
		t.Error("expected listing ordered by scheduled time")
	}
}

func TestListByPatient(t *testing.T) {
	svc := newTestService()
	mustCreate(t, svc, validCreate())
	mustCreate(t, svc, validCreate())

	items, err := svc.ListByPatient(context.Background(), "9434765919")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 appointments, got %d", len(items))
	}
}

func TestListByPatient_UnknownPatient(t *testing.T) {
	svc := newTestService()

	_, err := svc.ListByPatient(context.Background(), "9876543210")
	if !pkgerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	want := "Patient with NHS number 9876543210 not found"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestRunOverdueSweep(t *testing.T) {
	svc := newTestService()

	overdue := validCreate()
	overdue.ScheduledTime = testNow.Add(-time.Hour)
	a := mustCreate(t, svc, overdue)

	future := validCreate()
	future.ScheduledTime = testNow.Add(time.Hour)
	b := mustCreate(t, svc, future)

	attended := validCreate()
	attended.ScheduledTime = testNow.Add(-2 * time.Hour)
	c := mustCreate(t, svc, attended)
	svc.Attend(context.Background(), c.ID)

	res, err := svc.RunOverdueSweep(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Marked) != 1 || res.Marked[0].ID != a.ID {
		t.Fatalf("expected exactly the overdue appointment to be marked, got %d", len(res.Marked))
	}
	if res.Marked[0].Status != StatusMissed {
		t.Errorf("expected missed, got %s", res.Marked[0].Status)
	}

	got, _ := svc.Get(context.Background(), a.ID)
	if got.Status != StatusMissed {
		t.Errorf("expected stored status missed, got %s", got.Status)
	}
	if untouched, _ := svc.Get(context.Background(), b.ID); untouched.Status != StatusScheduled {
		t.Errorf("expected future appointment untouched, got %s", untouched.Status)
	}
	if untouched, _ := svc.Get(context.Background(), c.ID); untouched.Status != StatusAttended {
		t.Errorf("expected attended appointment untouched, got %s", untouched.Status)
	}

	// A second pass with no intervening change does nothing.
	res, err = svc.RunOverdueSweep(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Marked) != 0 || res.Skipped != 0 || len(res.Errors) != 0 {
		t.Errorf("expected idempotent second pass, got %+v", res)
	}
}

// staleRepo serves a scan result that no longer reflects the store, the way
// a concurrent writer between scan and update would.
type staleRepo struct {
	Repository
	stale []*Appointment
}

func (r *staleRepo) FindOverdue(context.Context, time.Time) ([]*Appointment, error) {
	return r.stale, nil
}

func TestRunOverdueSweep_SkipsConcurrentlyChanged(t *testing.T) {
	svc := newTestService()

	a := mustCreate(t, svc, validCreate())
	if _, err := svc.Attend(context.Background(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ghost := &Appointment{ID: uuid.New(), Status: StatusScheduled, ScheduledTime: testNow.Add(-time.Hour)}

	scanned := *a
	scanned.Status = StatusScheduled
	svc.repo = &staleRepo{Repository: svc.repo, stale: []*Appointment{&scanned, ghost}}

	res, err := svc.RunOverdueSweep(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Marked) != 0 {
		t.Errorf("expected no transitions, got %d", len(res.Marked))
	}
	if res.Skipped != 2 {
		t.Errorf("expected both candidates skipped, got %d", res.Skipped)
	}

	got, _ := svc.Get(context.Background(), a.ID)
	if got.Status != StatusAttended {
		t.Errorf("expected the interactive transition to win, got %s", got.Status)
	}
}

// fallibleRepo fails conditional updates for one chosen appointment.
type fallibleRepo struct {
	Repository
	failID uuid.UUID
}

func (r *fallibleRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) (*Appointment, error) {
	if id == r.failID {
		return nil, errors.New("storage failure")
	}
	return r.Repository.UpdateStatusFrom(ctx, id, from, to, updatedAt)
}

func TestRunOverdueSweep_CollectsErrorsWithoutAborting(t *testing.T) {
	svc := newTestService()

	bad := validCreate()
	bad.ScheduledTime = testNow.Add(-2 * time.Hour)
	failing := mustCreate(t, svc, bad)

	good := validCreate()
	good.ScheduledTime = testNow.Add(-time.Hour)
	ok := mustCreate(t, svc, good)

	svc.repo = &fallibleRepo{Repository: svc.repo, failID: failing.ID}

	res, err := svc.RunOverdueSweep(context.Background(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 collected error, got %d", len(res.Errors))
	}
	if len(res.Marked) != 1 || res.Marked[0].ID != ok.ID {
		t.Errorf("expected the other appointment to still be marked")
	}
}
