package assignment

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dentalclinic/clinic/internal/domain/patient"
)

// Draft is the input of CreatePatient.
type Draft struct {
	TicketNumber    string                    `json:"ticket_number" validate:"required,max=50"`
	Name            string                    `json:"name" validate:"required,max=200"`
	Mobile          *string                   `json:"mobile,omitempty" validate:"omitempty,mobile"`
	Age             *int                      `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	ClassYearID     *uuid.UUID                `json:"class_year_id,omitempty"`
	StudentID       *uuid.UUID                `json:"student_id,omitempty"`
	ToothTreatments []*patient.ToothTreatment `json:"tooth_treatments" validate:"required,min=1"`
}

// Edit is the input of UpdatePatient, the edit-form save. Detail fields are
// always written. StudentID nil leaves the student unchanged, "" unassigns.
// Status nil leaves the status unchanged. A non-zero VersionID must match the
// stored version.
type Edit struct {
	TicketNumber string          `json:"ticket_number" validate:"required,max=50"`
	Name         string          `json:"name" validate:"required,max=200"`
	Mobile       *string         `json:"mobile,omitempty" validate:"omitempty,mobile"`
	Age          *int            `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	ClassYearID  *uuid.UUID      `json:"class_year_id,omitempty"`
	StudentID    *string         `json:"student_id,omitempty"`
	Status       *patient.Status `json:"status,omitempty"`
	VersionID    int             `json:"version_id,omitempty"`
}

func trimOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (d *Draft) normalize() {
	d.TicketNumber = strings.TrimSpace(d.TicketNumber)
	d.Name = strings.TrimSpace(d.Name)
	d.Mobile = trimOptional(d.Mobile)
}

func (e *Edit) normalize() {
	e.TicketNumber = strings.TrimSpace(e.TicketNumber)
	e.Name = strings.TrimSpace(e.Name)
	e.Mobile = trimOptional(e.Mobile)
	if e.StudentID != nil {
		v := strings.TrimSpace(*e.StudentID)
		e.StudentID = &v
	}
}

// BulkResult reports one row of BulkCreatePatients. A row that failed after
// its patient was inserted carries both ID and Error.
type BulkResult struct {
	Row          int        `json:"row"`
	TicketNumber string     `json:"ticket_number"`
	ID           *uuid.UUID `json:"id,omitempty"`
	Error        string     `json:"error,omitempty"`
	Partial      bool       `json:"partial,omitempty"`
}
