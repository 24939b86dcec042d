package patient

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component. On the wire it is
// the YYYY-MM-DD form.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return errors.New("date must be in YYYY-MM-DD format")
	}
	d.Time = t
	return nil
}

// Patient maps to the patients table. NHSNumber is the primary key, stored
// in canonical 10-digit form, and never changes once the record exists.
type Patient struct {
	NHSNumber   string    `db:"nhs_number" json:"nhs_number"`
	Name        string    `db:"name" json:"name"`
	DateOfBirth Date      `db:"date_of_birth" json:"date_of_birth"`
	Postcode    string    `db:"postcode" json:"postcode"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreateRequest carries the fields accepted when registering a patient.
type CreateRequest struct {
	NHSNumber   string  `json:"nhs_number"`
	Name        string  `json:"name"`
	DateOfBirth Date    `json:"date_of_birth"`
	Postcode    string  `json:"postcode"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	NHSNumber   *string `json:"nhs_number,omitempty"`
	Name        *string `json:"name,omitempty"`
	DateOfBirth *Date   `json:"date_of_birth,omitempty"`
	Postcode    *string `json:"postcode,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
}
