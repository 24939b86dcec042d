package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusAttended  Status = "attended"
	StatusCancelled Status = "cancelled"
	StatusMissed    Status = "missed"
)

// ParseStatus parses a status value. Only the exact lowercase forms are
// recognized.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusScheduled, StatusAttended, StatusCancelled, StatusMissed:
		return Status(s), true
	}
	return "", false
}

// Appointment maps to the appointments table. The patient reference is the
// canonical NHS number and is checked against the patient registry when the
// appointment is created, not afterwards.
type Appointment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	NHSNumber     string    `db:"nhs_number" json:"patient"`
	Status        Status    `db:"status" json:"status"`
	ScheduledTime time.Time `db:"scheduled_time" json:"time"`
	Duration      string    `db:"duration" json:"duration"`
	Clinician     string    `db:"clinician" json:"clinician"`
	Department    string    `db:"department" json:"department"`
	Postcode      string    `db:"postcode" json:"postcode"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CreateRequest carries the fields accepted when booking an appointment.
// Status is not among them: new appointments always start scheduled.
type CreateRequest struct {
	NHSNumber     string    `json:"patient"`
	ScheduledTime time.Time `json:"time"`
	Duration      string    `json:"duration"`
	Clinician     string    `json:"clinician"`
	Department    string    `json:"department"`
	Postcode      string    `json:"postcode"`
}

// UpdateRequest is a partial update; nil fields are left unchanged. Status
// changes go through the same transition check as the named operations.
type UpdateRequest struct {
	NHSNumber     *string    `json:"patient,omitempty"`
	Status        *string    `json:"status,omitempty"`
	ScheduledTime *time.Time `json:"time,omitempty"`
	Duration      *string    `json:"duration,omitempty"`
	Clinician     *string    `json:"clinician,omitempty"`
	Department    *string    `json:"department,omitempty"`
	Postcode      *string    `json:"postcode,omitempty"`
}

// Filter narrows a listing. Zero values mean the dimension is not filtered.
// NHSNumber and Status match exactly, Department matches case-insensitively,
// Clinician is a case-insensitive substring match.
type Filter struct {
	NHSNumber  string
	Status     Status
	Department string
	Clinician  string
}
