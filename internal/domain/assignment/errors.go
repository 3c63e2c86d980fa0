package assignment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentalclinic/clinic/internal/domain/patient"
	"github.com/dentalclinic/clinic/internal/domain/student"
	"github.com/dentalclinic/clinic/internal/platform/validation"
)

// ValidationError rejects an operation before any write.
type ValidationError = validation.FieldError

var (
	ErrPatientNotFound = patient.ErrNotFound
	ErrStudentNotFound = student.ErrNotFound
	ErrDuplicateTicket = patient.ErrDuplicateTicket
	// ErrConflict means the patient changed after it was read.
	ErrConflict = patient.ErrVersionConflict
	// ErrStudentBusy is returned only when availability is enforced.
	ErrStudentBusy = errors.New("student is not available")
)

// PartialFailureError reports a multi-step operation whose later write failed
// after an earlier write succeeded. Nothing is rolled back; the affected
// student should be reconciled by recomputing its counters and availability.
type PartialFailureError struct {
	Operation string
	PatientID uuid.UUID
	StudentID *uuid.UUID
	Step      string
	Err       error
}

func (e *PartialFailureError) Error() string {
	sid := "none"
	if e.StudentID != nil {
		sid = e.StudentID.String()
	}
	return fmt.Sprintf("%s partially applied to patient %s (student %s): %s failed: %v",
		e.Operation, e.PatientID, sid, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// IsPartialFailure reports whether err carries a *PartialFailureError.
func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
