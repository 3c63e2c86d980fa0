package assignment

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalclinic/clinic/internal/domain/catalog"
	"github.com/dentalclinic/clinic/internal/domain/patient"
	"github.com/dentalclinic/clinic/internal/domain/student"
)

var errStore = errors.New("store unavailable")

// -- Patients --

type fakePatients struct {
	rows  map[uuid.UUID]*patient.Patient
	items map[uuid.UUID][]*patient.ToothTreatment
	fail  map[string]error
	// failItemAt makes the n-th AddToothTreatment call (1-based) fail.
	failItemAt int
	itemCalls  int
	writes     int
}

func newFakePatients() *fakePatients {
	return &fakePatients{
		rows:  make(map[uuid.UUID]*patient.Patient),
		items: make(map[uuid.UUID][]*patient.ToothTreatment),
		fail:  make(map[string]error),
	}
}

func (f *fakePatients) Create(_ context.Context, p *patient.Patient) error {
	if err := f.fail["Create"]; err != nil {
		return err
	}
	for _, existing := range f.rows {
		if existing.TicketNumber == p.TicketNumber {
			return patient.ErrDuplicateTicket
		}
	}
	f.writes++
	p.ID = uuid.New()
	p.VersionID = 1
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePatients) GetByTicket(ctx context.Context, ticket string) (*patient.Patient, error) {
	if err := f.fail["GetByTicket"]; err != nil {
		return nil, err
	}
	for id, p := range f.rows {
		if p.TicketNumber == ticket {
			return f.GetByID(ctx, id)
		}
	}
	return nil, patient.ErrNotFound
}

func (f *fakePatients) versioned(p *patient.Patient, op string, apply func(stored *patient.Patient)) error {
	if err := f.fail[op]; err != nil {
		return err
	}
	stored, ok := f.rows[p.ID]
	if !ok {
		return patient.ErrNotFound
	}
	if stored.VersionID != p.VersionID {
		return patient.ErrVersionConflict
	}
	f.writes++
	apply(stored)
	stored.VersionID++
	p.VersionID = stored.VersionID
	return nil
}

func (f *fakePatients) UpdateState(_ context.Context, p *patient.Patient) error {
	return f.versioned(p, "UpdateState", func(stored *patient.Patient) {
		stored.Status, stored.StartDate, stored.EndDate, stored.StudentID = p.Status, p.StartDate, p.EndDate, p.StudentID
	})
}

func (f *fakePatients) UpdateDetails(_ context.Context, p *patient.Patient) error {
	return f.versioned(p, "UpdateDetails", func(stored *patient.Patient) {
		stored.TicketNumber, stored.Name, stored.Mobile, stored.Age, stored.ClassYearID =
			p.TicketNumber, p.Name, p.Mobile, p.Age, p.ClassYearID
	})
}

func (f *fakePatients) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.fail["Delete"]; err != nil {
		return err
	}
	if _, ok := f.rows[id]; !ok {
		return patient.ErrNotFound
	}
	f.writes++
	delete(f.rows, id)
	delete(f.items, id)
	return nil
}

func (f *fakePatients) CountByStudent(_ context.Context, studentID uuid.UUID) (patient.StatusCounts, error) {
	var c patient.StatusCounts
	for _, p := range f.rows {
		if p.StudentID == nil || *p.StudentID != studentID {
			continue
		}
		switch p.Status {
		case patient.StatusInProgress:
			c.InProgress++
		case patient.StatusCompleted:
			c.Completed++
		}
	}
	return c, nil
}

func (f *fakePatients) AddToothTreatment(_ context.Context, tt *patient.ToothTreatment) error {
	f.itemCalls++
	if f.failItemAt == f.itemCalls {
		return errStore
	}
	tt.ID = uuid.New()
	tt.Ordinal = len(f.items[tt.PatientID])
	f.items[tt.PatientID] = append(f.items[tt.PatientID], tt)
	return nil
}

// -- Students --

type fakeStudents struct {
	rows map[uuid.UUID]*student.Student
	fail map[string]error
	// failAvailabilityFor makes SetAvailability fail for one student only.
	failAvailabilityFor uuid.UUID
	availabilityWrites  int
}

func newFakeStudents() *fakeStudents {
	return &fakeStudents{rows: make(map[uuid.UUID]*student.Student), fail: make(map[string]error)}
}

func (f *fakeStudents) add(name string) *student.Student {
	s := &student.Student{
		ID:                 uuid.New(),
		Name:               name,
		RegistrationStatus: student.RegistrationRegistered,
		IsAvailable:        true,
	}
	f.rows[s.ID] = s
	return s
}

func (f *fakeStudents) GetByID(_ context.Context, id uuid.UUID) (*student.Student, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, student.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudents) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	if err := f.fail["SetAvailability"]; err != nil {
		return err
	}
	if id == f.failAvailabilityFor {
		return errStore
	}
	s, ok := f.rows[id]
	if !ok {
		return student.ErrNotFound
	}
	f.availabilityWrites++
	s.IsAvailable = available
	return nil
}

func (f *fakeStudents) SetCounters(_ context.Context, id uuid.UUID, c student.Counters) error {
	if err := f.fail["SetCounters"]; err != nil {
		return err
	}
	s, ok := f.rows[id]
	if !ok {
		return student.ErrNotFound
	}
	s.PatientsInProgress = c.InProgress
	s.PatientsCompleted = c.Completed
	return nil
}

func (f *fakeStudents) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (f *fakeStudents) ExpireRegistrations(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	if err := f.fail["ExpireRegistrations"]; err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, s := range f.rows {
		if s.RegistrationStatus == student.RegistrationRegistered &&
			s.RegistrationEndDate != nil && !s.RegistrationEndDate.After(now) {
			s.RegistrationStatus = student.RegistrationUnregistered
			s.RegistrationEndDate = nil
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

// -- Tooth classes --

type fakeClasses map[uuid.UUID]*catalog.ToothClass

func (f fakeClasses) GetToothClass(_ context.Context, id uuid.UUID) (*catalog.ToothClass, error) {
	tc, ok := f[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return tc, nil
}

var (
	adultClass     = &catalog.ToothClass{ID: uuid.New(), Name: "Molar", ChartMode: catalog.ChartAdult}
	pediatricClass = &catalog.ToothClass{ID: uuid.New(), Name: "Primary molar", ChartMode: catalog.ChartPediatric}
	fillingID      = uuid.New()
	extractionID   = uuid.New()
)

// -- Harness --

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	engine   *Engine
	patients *fakePatients
	students *fakeStudents
	clock    *clock
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		patients: newFakePatients(),
		students: newFakeStudents(),
		clock:    &clock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	classes := fakeClasses{adultClass.ID: adultClass, pediatricClass.ID: pediatricClass}
	opts = append([]Option{WithClock(h.clock.now)}, opts...)
	h.engine = NewEngine(h.patients, h.students, classes, zerolog.New(io.Discard), opts...)
	return h
}

func draft(ticket string, studentID *uuid.UUID) *Draft {
	return &Draft{
		TicketNumber: ticket,
		Name:         "Jane Doe",
		StudentID:    studentID,
		ToothTreatments: []*patient.ToothTreatment{
			{TreatmentID: fillingID, ToothClassID: adultClass.ID, ToothNumber: "36"},
		},
	}
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }
