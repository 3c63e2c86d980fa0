// Package assignment keeps patient status, treatment dates and student
// availability consistent. Every caller that changes a patient's status or
// assigned student goes through the Engine.
//
// Each operation is an ordered sequence of single-row writes: the patient
// first, then the dependent student. There is no cross-table transaction. A
// failure on the first write leaves nothing behind; a failure on a later
// write is returned as a *PartialFailureError and logged with enough context
// to reconcile the student with RecomputeStudentCounters.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalclinic/clinic/internal/domain/patient"
	"github.com/dentalclinic/clinic/internal/domain/student"
	"github.com/dentalclinic/clinic/internal/platform/validation"
)

// PatientStore is the patient table surface the engine writes through.
type PatientStore interface {
	Create(ctx context.Context, p *patient.Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	GetByTicket(ctx context.Context, ticket string) (*patient.Patient, error)
	UpdateState(ctx context.Context, p *patient.Patient) error
	UpdateDetails(ctx context.Context, p *patient.Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStudent(ctx context.Context, studentID uuid.UUID) (patient.StatusCounts, error)
	AddToothTreatment(ctx context.Context, tt *patient.ToothTreatment) error
}

// StudentStore is the student table surface the engine writes through.
type StudentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	SetCounters(ctx context.Context, id uuid.UUID, c student.Counters) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	ExpireRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type Engine struct {
	patients            PatientStore
	students            StudentStore
	classes             patient.ToothClassLookup
	logger              zerolog.Logger
	now                 func() time.Time
	enforceAvailability bool
}

type Option func(*Engine)

// WithClock replaces time.Now for dates written by the engine.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAvailabilityEnforcement rejects assigning a busy student to a patient
// that would hold them.
func WithAvailabilityEnforcement(on bool) Option {
	return func(e *Engine) { e.enforceAvailability = on }
}

func NewEngine(patients PatientStore, students StudentStore, classes patient.ToothClassLookup, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		patients: patients,
		students: students,
		classes:  classes,
		logger:   logger.With().Str("component", "assignment").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// partial builds and logs a *PartialFailureError.
func (e *Engine) partial(op string, patientID uuid.UUID, studentID *uuid.UUID, step string, err error) error {
	pf := &PartialFailureError{Operation: op, PatientID: patientID, StudentID: studentID, Step: step, Err: err}
	ev := e.logger.Error().Err(err).
		Str("operation", op).
		Str("patient_id", patientID.String()).
		Str("step", step)
	if studentID != nil {
		ev = ev.Str("student_id", studentID.String())
	}
	ev.Msg("partial failure; recompute the student to reconcile")
	return pf
}

// checkStudent verifies that id exists and, when enforcement is on and the
// patient would hold the student, that the student is free.
func (e *Engine) checkStudent(ctx context.Context, id uuid.UUID, holds bool) error {
	st, err := e.students.GetByID(ctx, id)
	if errors.Is(err, student.ErrNotFound) {
		return &ValidationError{Field: "student_id", Reason: "does not exist"}
	}
	if err != nil {
		return fmt.Errorf("look up student: %w", err)
	}
	if e.enforceAvailability && holds && !st.IsAvailable {
		return ErrStudentBusy
	}
	return nil
}

// ensureTicketFree looks the ticket up immediately before a write. A
// concurrent insert can still win; the store's unique constraint reports that
// as ErrDuplicateTicket too.
func (e *Engine) ensureTicketFree(ctx context.Context, ticket string, self uuid.UUID) error {
	existing, err := e.patients.GetByTicket(ctx, ticket)
	switch {
	case errors.Is(err, patient.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("look up ticket: %w", err)
	case existing.ID != self:
		return ErrDuplicateTicket
	}
	return nil
}

// CreatePatient inserts a pending patient with its line items and marks the
// assigned student busy. The first line item is primary and is mirrored onto
// the patient row.
func (e *Engine) CreatePatient(ctx context.Context, d *Draft) (*patient.Patient, error) {
	d.normalize()
	if err := validation.Struct(d); err != nil {
		return nil, err
	}
	for i, tt := range d.ToothTreatments {
		if tt == nil {
			return nil, &ValidationError{Field: fmt.Sprintf("tooth_treatments[%d]", i), Reason: "is required"}
		}
		if err := patient.CheckLineItem(ctx, e.classes, fmt.Sprintf("tooth_treatments[%d]", i), tt); err != nil {
			return nil, err
		}
	}
	if d.StudentID != nil {
		if err := e.checkStudent(ctx, *d.StudentID, true); err != nil {
			return nil, err
		}
	}
	if err := e.ensureTicketFree(ctx, d.TicketNumber, uuid.Nil); err != nil {
		return nil, err
	}

	p := &patient.Patient{
		TicketNumber: d.TicketNumber,
		Name:         d.Name,
		Mobile:       d.Mobile,
		Age:          d.Age,
		ClassYearID:  d.ClassYearID,
		Status:       patient.StatusPending,
		StudentID:    d.StudentID,
	}
	p.Mirror(d.ToothTreatments[0])
	if err := e.patients.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateTicket) {
			return nil, ErrDuplicateTicket
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}

	for i, tt := range d.ToothTreatments {
		tt.PatientID = p.ID
		tt.IsPrimary = i == 0
		if err := e.patients.AddToothTreatment(ctx, tt); err != nil {
			return p, e.partial("create_patient", p.ID, p.StudentID, fmt.Sprintf("insert tooth treatment %d", i+1), err)
		}
	}
	p.ToothTreatments = d.ToothTreatments

	if p.StudentID != nil {
		if err := e.students.SetAvailability(ctx, *p.StudentID, false); err != nil {
			return p, e.partial("create_patient", p.ID, p.StudentID, "mark student busy", err)
		}
	}
	return p, nil
}

// applyStatus sets the status and the dates it implies.
func applyStatus(p *patient.Patient, to patient.Status, now time.Time) {
	switch to {
	case patient.StatusInProgress:
		if p.StartDate == nil {
			p.StartDate = &now
		}
		p.EndDate = nil
	case patient.StatusCompleted:
		p.EndDate = &now
	case patient.StatusPending, patient.StatusCancelled:
		p.StartDate = nil
		p.EndDate = nil
	}
	p.Status = to
}

// ChangeStatus moves a patient to a new status. The assigned student is
// written only when the old and new status disagree on whether the patient
// holds the student.
func (e *Engine) ChangeStatus(ctx context.Context, id uuid.UUID, to patient.Status) (*patient.Patient, error) {
	if !to.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "must be one of: pending in_progress completed cancelled"}
	}
	p, err := e.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.changeStatus(ctx, p, to)
}

func (e *Engine) changeStatus(ctx context.Context, p *patient.Patient, to patient.Status) (*patient.Patient, error) {
	from := p.Status
	if from == to {
		return p, nil
	}
	flip := p.StudentID != nil && from.HoldsStudent() != to.HoldsStudent()
	if flip && to.HoldsStudent() {
		if err := e.checkStudent(ctx, *p.StudentID, true); err != nil {
			return nil, err
		}
	}

	applyStatus(p, to, e.now())
	if err := e.patients.UpdateState(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient status: %w", err)
	}

	if flip {
		available := !to.HoldsStudent()
		if err := e.students.SetAvailability(ctx, *p.StudentID, available); err != nil {
			return p, e.partial("change_status", p.ID, p.StudentID, "update student availability", err)
		}
	}
	return p, nil
}

func sameStudent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ReassignStudent points the patient at a new student, or none. The previous
// student is always freed. The new student becomes busy only when the
// patient's status holds a student.
func (e *Engine) ReassignStudent(ctx context.Context, id uuid.UUID, to *uuid.UUID) (*patient.Patient, error) {
	p, err := e.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.reassign(ctx, p, to)
}

func (e *Engine) reassign(ctx context.Context, p *patient.Patient, to *uuid.UUID) (*patient.Patient, error) {
	prev := p.StudentID
	if sameStudent(prev, to) {
		return p, nil
	}
	if to != nil {
		if err := e.checkStudent(ctx, *to, p.Status.HoldsStudent()); err != nil {
			return nil, err
		}
	}

	p.StudentID = to
	if err := e.patients.UpdateState(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient student: %w", err)
	}
	p.StudentName = nil

	if prev != nil {
		if err := e.students.SetAvailability(ctx, *prev, true); err != nil {
			return p, e.partial("reassign_student", p.ID, prev, "free previous student", err)
		}
	}
	if to != nil && p.Status.HoldsStudent() {
		if err := e.students.SetAvailability(ctx, *to, false); err != nil {
			return p, e.partial("reassign_student", p.ID, to, "mark new student busy", err)
		}
	}
	return p, nil
}

// DeletePatient removes the patient and frees its student whatever the
// status was. Line items and notes go with the patient row.
func (e *Engine) DeletePatient(ctx context.Context, id uuid.UUID) error {
	p, err := e.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := e.patients.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if p.StudentID != nil {
		if err := e.students.SetAvailability(ctx, *p.StudentID, true); err != nil {
			return e.partial("delete_patient", p.ID, p.StudentID, "free student", err)
		}
	}
	return nil
}

// UpdatePatient saves the edit form: details first, then a student change
// through ReassignStudent, then a status change through ChangeStatus. Every
// input is checked before the first write. A failure after the details are
// saved is a partial failure.
func (e *Engine) UpdatePatient(ctx context.Context, id uuid.UUID, edit *Edit) (*patient.Patient, error) {
	edit.normalize()
	if err := validation.Struct(edit); err != nil {
		return nil, err
	}
	var target *uuid.UUID
	if edit.StudentID != nil && *edit.StudentID != "" {
		sid, err := uuid.Parse(*edit.StudentID)
		if err != nil {
			return nil, &ValidationError{Field: "student_id", Reason: "must be a valid id"}
		}
		target = &sid
	}
	if edit.Status != nil && !edit.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "must be one of: pending in_progress completed cancelled"}
	}

	p, err := e.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if edit.VersionID != 0 && edit.VersionID != p.VersionID {
		return nil, ErrConflict
	}
	studentChange := edit.StudentID != nil && !sameStudent(p.StudentID, target)
	finalStatus := p.Status
	if edit.Status != nil {
		finalStatus = *edit.Status
	}
	finalStudent := p.StudentID
	if studentChange {
		finalStudent = target
	}
	if finalStudent != nil && finalStatus.HoldsStudent() &&
		(studentChange || !p.Status.HoldsStudent()) {
		if err := e.checkStudent(ctx, *finalStudent, true); err != nil {
			return nil, err
		}
	}
	if edit.TicketNumber != p.TicketNumber {
		if err := e.ensureTicketFree(ctx, edit.TicketNumber, p.ID); err != nil {
			return nil, err
		}
	}

	p.TicketNumber = edit.TicketNumber
	p.Name = edit.Name
	p.Mobile = edit.Mobile
	p.Age = edit.Age
	p.ClassYearID = edit.ClassYearID
	if err := e.patients.UpdateDetails(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateTicket) {
			return nil, ErrDuplicateTicket
		}
		return nil, fmt.Errorf("update patient details: %w", err)
	}

	if studentChange {
		if p, err = e.reassign(ctx, p, target); err != nil {
			return p, e.wrapLater(id, target, "reassign student", err)
		}
	}
	if edit.Status != nil {
		if p, err = e.changeStatus(ctx, p, *edit.Status); err != nil {
			return p, e.wrapLater(id, finalStudent, "change status", err)
		}
	}
	return p, nil
}

// wrapLater turns an error from a step that ran after an earlier successful
// write into a partial failure, keeping an inner partial failure as is.
func (e *Engine) wrapLater(patientID uuid.UUID, studentID *uuid.UUID, step string, err error) error {
	if IsPartialFailure(err) {
		return err
	}
	return e.partial("update_patient", patientID, studentID, step, err)
}

// BulkCreatePatients runs CreatePatient for every draft. A failed row does
// not stop later rows.
func (e *Engine) BulkCreatePatients(ctx context.Context, drafts []*Draft) []BulkResult {
	results := make([]BulkResult, 0, len(drafts))
	for i, d := range drafts {
		res := BulkResult{Row: i + 1}
		if d == nil {
			res.Error = "empty row"
			results = append(results, res)
			continue
		}
		p, err := e.CreatePatient(ctx, d)
		res.TicketNumber = d.TicketNumber
		if p != nil {
			id := p.ID
			res.ID = &id
		}
		if err != nil {
			res.Error = err.Error()
			res.Partial = IsPartialFailure(err)
		}
		results = append(results, res)
	}
	return results
}

// RecomputeStudentCounters rebuilds the student's workload counters from its
// patients and overwrites the stored values. Safe to repeat.
func (e *Engine) RecomputeStudentCounters(ctx context.Context, studentID uuid.UUID) (student.Counters, error) {
	counts, err := e.patients.CountByStudent(ctx, studentID)
	if err != nil {
		return student.Counters{}, fmt.Errorf("count patients: %w", err)
	}
	c := student.Counters{InProgress: counts.InProgress, Completed: counts.Completed}
	if err := e.students.SetCounters(ctx, studentID, c); err != nil {
		return student.Counters{}, fmt.Errorf("write counters: %w", err)
	}
	return c, nil
}

// RecomputeAllCounters recomputes every student and returns how many
// succeeded along with the joined errors of those that did not.
func (e *Engine) RecomputeAllCounters(ctx context.Context) (int, error) {
	ids, err := e.students.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}
	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := e.RecomputeStudentCounters(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("student %s: %w", id, err))
			continue
		}
		done++
	}
	e.logger.Info().Int("students", len(ids)).Int("recomputed", done).Msg("counter recompute finished")
	return done, errors.Join(errs...)
}

// SweepExpiredRegistrations unregisters every registered student whose
// registration end date is at or before now, in one batch. Availability is
// not touched.
func (e *Engine) SweepExpiredRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := e.students.ExpireRegistrations(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("expire registrations: %w", err)
	}
	e.logger.Info().Int("expired", len(ids)).Time("as_of", now).Msg("registration sweep finished")
	return ids, nil
}
