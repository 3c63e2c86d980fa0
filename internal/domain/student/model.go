package student

import (
	"time"

	"github.com/google/uuid"
)

type RegistrationStatus string

const (
	RegistrationPending      RegistrationStatus = "pending"
	RegistrationRegistered   RegistrationStatus = "registered"
	RegistrationUnregistered RegistrationStatus = "unregistered"
)

var validRegistrationStatuses = map[RegistrationStatus]bool{
	RegistrationPending:      true,
	RegistrationRegistered:   true,
	RegistrationUnregistered: true,
}

func (s RegistrationStatus) Valid() bool { return validRegistrationStatuses[s] }

// Availability is the displayed assignment state of a student. It is derived
// from the registration status and the stored is_available flag and is never
// persisted.
type Availability string

const (
	AvailabilityAvailable     Availability = "available"
	AvailabilityBusy          Availability = "busy"
	AvailabilityNotApplicable Availability = "not_applicable"
)

// DisplayAvailability maps (registration_status, is_available) to the
// displayed state. Unregistered students show not_applicable even when the
// stored flag holds a stale value.
func DisplayAvailability(reg RegistrationStatus, isAvailable bool) Availability {
	switch {
	case reg == RegistrationUnregistered:
		return AvailabilityNotApplicable
	case isAvailable:
		return AvailabilityAvailable
	default:
		return AvailabilityBusy
	}
}

type Student struct {
	ID                  uuid.UUID          `db:"id" json:"id"`
	Name                string             `db:"name" json:"name" validate:"required,max=200"`
	Mobile              string             `db:"mobile" json:"mobile" validate:"required,mobile"`
	City                *string            `db:"city" json:"city,omitempty" validate:"omitempty,max=100"`
	University          *string            `db:"university" json:"university,omitempty" validate:"omitempty,max=150"`
	UniversityType      *string            `db:"university_type" json:"university_type,omitempty" validate:"omitempty,max=50"`
	WorkingDaysGroupID  *uuid.UUID         `db:"working_days_group_id" json:"working_days_group_id,omitempty"`
	ClassYearID         *uuid.UUID         `db:"class_year_id" json:"class_year_id,omitempty"`
	RegistrationStatus  RegistrationStatus `db:"registration_status" json:"registration_status" validate:"omitempty,oneof=pending registered unregistered"`
	RegistrationEndDate *time.Time         `db:"registration_end_date" json:"registration_end_date,omitempty"`
	IsAvailable         bool               `db:"is_available" json:"is_available"`
	PatientsInProgress  int                `db:"patients_in_progress" json:"patients_in_progress"`
	PatientsCompleted   int                `db:"patients_completed" json:"patients_completed"`
	PatientLimit        *int               `db:"patient_limit" json:"patient_limit,omitempty" validate:"omitempty,gt=0"`
	Availability        Availability       `db:"-" json:"availability"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// Decorate fills the derived display fields.
func (s *Student) Decorate() {
	s.Availability = DisplayAvailability(s.RegistrationStatus, s.IsAvailable)
}

// EffectiveLimit returns the student's own patient limit, or def when unset.
func (s *Student) EffectiveLimit(def int) int {
	if s.PatientLimit != nil && *s.PatientLimit > 0 {
		return *s.PatientLimit
	}
	return def
}

// Assignable reports whether the student may be offered for a new patient.
func (s *Student) Assignable(defaultLimit int) bool {
	return s.RegistrationStatus == RegistrationRegistered &&
		s.IsAvailable &&
		s.PatientsInProgress < s.EffectiveLimit(defaultLimit)
}

// Counters are the denormalized per-student workload counts.
type Counters struct {
	InProgress int `json:"patients_in_progress"`
	Completed  int `json:"patients_completed"`
}

type ListFilter struct {
	RegistrationStatus string
	Available          *bool
	ClassYearID        *uuid.UUID
	WorkingDaysGroupID *uuid.UUID
	City               string
	University         string
	Query              string
}
