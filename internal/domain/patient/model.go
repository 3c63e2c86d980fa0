package patient

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists the workflow states in their natural order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// HoldsStudent reports whether a patient in this status keeps the assigned
// student busy. Pending and in-progress patients do; completed and cancelled
// patients free the student.
func (s Status) HoldsStudent() bool {
	return s == StatusPending || s == StatusInProgress
}

type Patient struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	TicketNumber    string            `db:"ticket_number" json:"ticket_number" validate:"required,max=50"`
	Name            string            `db:"name" json:"name" validate:"required,max=200"`
	Mobile          *string           `db:"mobile" json:"mobile,omitempty" validate:"omitempty,mobile"`
	Age             *int              `db:"age" json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	ClassYearID     *uuid.UUID        `db:"class_year_id" json:"class_year_id,omitempty"`
	TreatmentID     *uuid.UUID        `db:"treatment_id" json:"treatment_id,omitempty"`
	ToothNumber     *string           `db:"tooth_number" json:"tooth_number,omitempty"`
	ToothClassID    *uuid.UUID        `db:"tooth_class_id" json:"tooth_class_id,omitempty"`
	Status          Status            `db:"status" json:"status"`
	StartDate       *time.Time        `db:"start_date" json:"start_date,omitempty"`
	EndDate         *time.Time        `db:"end_date" json:"end_date,omitempty"`
	StudentID       *uuid.UUID        `db:"student_id" json:"student_id,omitempty"`
	StudentName     *string           `db:"-" json:"student_name,omitempty"`
	VersionID       int               `db:"version_id" json:"version_id"`
	HasNotes        bool              `db:"-" json:"has_notes"`
	ToothTreatments []*ToothTreatment `db:"-" json:"tooth_treatments,omitempty"`
	Notes           []*Note           `db:"-" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// CheckDates verifies that start and end dates agree with the status.
func (p *Patient) CheckDates() error {
	switch p.Status {
	case StatusPending:
		if p.StartDate != nil || p.EndDate != nil {
			return fmt.Errorf("pending patient %s has dates set", p.ID)
		}
	case StatusInProgress:
		if p.StartDate == nil || p.EndDate != nil {
			return fmt.Errorf("in-progress patient %s needs a start date and no end date", p.ID)
		}
	case StatusCompleted:
		if p.EndDate == nil {
			return fmt.Errorf("completed patient %s has no end date", p.ID)
		}
	case StatusCancelled:
	default:
		return fmt.Errorf("patient %s has unknown status %q", p.ID, p.Status)
	}
	return nil
}

// Mirror copies the primary line item onto the patient's listing fields, or
// clears them when tt is nil.
func (p *Patient) Mirror(tt *ToothTreatment) {
	if tt == nil {
		p.TreatmentID, p.ToothNumber, p.ToothClassID = nil, nil, nil
		return
	}
	treatment, class := tt.TreatmentID, tt.ToothClassID
	p.TreatmentID = &treatment
	p.ToothClassID = &class
	p.ToothNumber = nil
	if tt.ToothNumber != "" {
		n := tt.ToothNumber
		p.ToothNumber = &n
	}
}

// ToothTreatment is one treatment line item on a patient.
type ToothTreatment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	TreatmentID  uuid.UUID `db:"treatment_id" json:"treatment_id"`
	ToothNumber  string    `db:"tooth_number" json:"tooth_number"`
	ToothClassID uuid.UUID `db:"tooth_class_id" json:"tooth_class_id"`
	IsPrimary    bool      `db:"is_primary" json:"is_primary"`
	Ordinal      int       `db:"ordinal" json:"ordinal"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type Note struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Body      string    `db:"body" json:"body"`
	Author    *string   `db:"author" json:"author,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type ListFilter struct {
	Status      string
	StudentID   *uuid.UUID
	ClassYearID *uuid.UUID
	TreatmentID *uuid.UUID
	Query       string
}

// StatusCounts is the per-student tally used to rebuild workload counters.
type StatusCounts struct {
	InProgress int
	Completed  int
}
