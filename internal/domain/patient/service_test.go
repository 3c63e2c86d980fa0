package patient

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentalclinic/clinic/internal/domain/catalog"
	"github.com/dentalclinic/clinic/internal/platform/validation"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	items    map[uuid.UUID]*ToothTreatment
	notes    map[uuid.UUID]*Note
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]*Patient),
		items:    make(map[uuid.UUID]*ToothTreatment),
		notes:    make(map[uuid.UUID]*Note),
	}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.TicketNumber == p.TicketNumber {
			return ErrDuplicateTicket
		}
	}
	p.ID = uuid.New()
	p.VersionID = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	for _, n := range m.notes {
		if n.PatientID == id {
			cp.HasNotes = true
		}
	}
	return &cp, nil
}

func (m *mockRepo) GetByTicket(ctx context.Context, ticket string) (*Patient, error) {
	for id, p := range m.patients {
		if p.TicketNumber == ticket {
			return m.GetByID(ctx, id)
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) versioned(p *Patient, apply func(stored *Patient)) error {
	stored, ok := m.patients[p.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.VersionID != p.VersionID {
		return ErrVersionConflict
	}
	apply(stored)
	stored.VersionID++
	p.VersionID = stored.VersionID
	return nil
}

func (m *mockRepo) UpdateState(_ context.Context, p *Patient) error {
	return m.versioned(p, func(stored *Patient) {
		stored.Status, stored.StartDate, stored.EndDate, stored.StudentID = p.Status, p.StartDate, p.EndDate, p.StudentID
	})
}

func (m *mockRepo) UpdateDetails(_ context.Context, p *Patient) error {
	return m.versioned(p, func(stored *Patient) {
		stored.TicketNumber, stored.Name, stored.Mobile, stored.Age, stored.ClassYearID =
			p.TicketNumber, p.Name, p.Mobile, p.Age, p.ClassYearID
	})
}

func (m *mockRepo) UpdateMirror(_ context.Context, p *Patient) error {
	stored, ok := m.patients[p.ID]
	if !ok {
		return ErrNotFound
	}
	stored.TreatmentID, stored.ToothNumber, stored.ToothClassID = p.TreatmentID, p.ToothNumber, p.ToothClassID
	stored.VersionID++
	p.VersionID = stored.VersionID
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return ErrNotFound
	}
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) CountByStudent(_ context.Context, studentID uuid.UUID) (StatusCounts, error) {
	var c StatusCounts
	for _, p := range m.patients {
		if p.StudentID == nil || *p.StudentID != studentID {
			continue
		}
		switch p.Status {
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		}
	}
	return c, nil
}

func (m *mockRepo) AddToothTreatment(_ context.Context, tt *ToothTreatment) error {
	tt.ID = uuid.New()
	tt.Ordinal = 0
	for _, existing := range m.items {
		if existing.PatientID == tt.PatientID && existing.Ordinal >= tt.Ordinal {
			tt.Ordinal = existing.Ordinal + 1
		}
	}
	cp := *tt
	m.items[tt.ID] = &cp
	return nil
}

func (m *mockRepo) GetToothTreatment(_ context.Context, id uuid.UUID) (*ToothTreatment, error) {
	tt, ok := m.items[id]
	if !ok {
		return nil, ErrLineItemNotFound
	}
	cp := *tt
	return &cp, nil
}

func (m *mockRepo) ListToothTreatments(_ context.Context, patientID uuid.UUID) ([]*ToothTreatment, error) {
	var out []*ToothTreatment
	for _, tt := range m.items {
		if tt.PatientID == patientID {
			cp := *tt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (m *mockRepo) UpdateToothTreatment(_ context.Context, tt *ToothTreatment) error {
	stored, ok := m.items[tt.ID]
	if !ok {
		return ErrLineItemNotFound
	}
	stored.TreatmentID, stored.ToothNumber, stored.ToothClassID = tt.TreatmentID, tt.ToothNumber, tt.ToothClassID
	tt.IsPrimary, tt.Ordinal = stored.IsPrimary, stored.Ordinal
	return nil
}

func (m *mockRepo) DeleteToothTreatment(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrLineItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) SetPrimaryToothTreatment(_ context.Context, patientID, id uuid.UUID) error {
	target, ok := m.items[id]
	if !ok || target.PatientID != patientID {
		return ErrLineItemNotFound
	}
	for _, tt := range m.items {
		if tt.PatientID == patientID {
			tt.IsPrimary = tt.ID == id
		}
	}
	return nil
}

func (m *mockRepo) AddNote(_ context.Context, n *Note) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *mockRepo) GetNote(_ context.Context, id uuid.UUID) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNoteNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) ListNotes(_ context.Context, patientID uuid.UUID) ([]*Note, error) {
	var out []*Note
	for _, n := range m.notes {
		if n.PatientID == patientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateNote(_ context.Context, n *Note) error {
	stored, ok := m.notes[n.ID]
	if !ok {
		return ErrNoteNotFound
	}
	stored.Body = n.Body
	return nil
}

func (m *mockRepo) DeleteNote(_ context.Context, id uuid.UUID) error {
	if _, ok := m.notes[id]; !ok {
		return ErrNoteNotFound
	}
	delete(m.notes, id)
	return nil
}

type fakeClasses map[uuid.UUID]*catalog.ToothClass

func (f fakeClasses) GetToothClass(_ context.Context, id uuid.UUID) (*catalog.ToothClass, error) {
	tc, ok := f[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return tc, nil
}

var (
	adultClassID     = uuid.New()
	pediatricClassID = uuid.New()
)

func testClasses() fakeClasses {
	return fakeClasses{
		adultClassID:     {ID: adultClassID, Name: "Molar", ChartMode: catalog.ChartAdult},
		pediatricClassID: {ID: pediatricClassID, Name: "Primary", ChartMode: catalog.ChartPediatric},
	}
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, testClasses()), repo
}

func seedPatient(t *testing.T, repo *mockRepo) *Patient {
	t.Helper()
	p := &Patient{TicketNumber: "T" + uuid.NewString()[:8], Name: "Jane Doe", Status: StatusPending}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

// -- Tests --

func TestCheckLineItem(t *testing.T) {
	classes := testClasses()
	treatment := uuid.New()
	tests := []struct {
		name  string
		tt    ToothTreatment
		field string
	}{
		{"valid adult", ToothTreatment{TreatmentID: treatment, ToothClassID: adultClassID, ToothNumber: "36"}, ""},
		{"pediatric empty number", ToothTreatment{TreatmentID: treatment, ToothClassID: pediatricClassID}, ""},
		{"adult empty number", ToothTreatment{TreatmentID: treatment, ToothClassID: adultClassID}, "item.tooth_number"},
		{"missing treatment", ToothTreatment{ToothClassID: adultClassID, ToothNumber: "11"}, "item.treatment_id"},
		{"missing class", ToothTreatment{TreatmentID: treatment, ToothNumber: "11"}, "item.tooth_class_id"},
		{"unknown class", ToothTreatment{TreatmentID: treatment, ToothClassID: uuid.New(), ToothNumber: "11"}, "item.tooth_class_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := tt.tt
			err := CheckLineItem(context.Background(), classes, "item", &item)
			if tt.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var fe *validation.FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("expected field error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestAddToothTreatment_FirstBecomesPrimary(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p := seedPatient(t, repo)

	first := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "11"}
	second := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "21"}
	if err := svc.AddToothTreatment(ctx, first); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if err := svc.AddToothTreatment(ctx, second); err != nil {
		t.Fatalf("add second: %v", err)
	}

	stored := repo.patients[p.ID]
	if stored.TreatmentID == nil || *stored.TreatmentID != first.TreatmentID {
		t.Error("expected patient to mirror the first line item")
	}
	if stored.ToothNumber == nil || *stored.ToothNumber != "11" {
		t.Errorf("expected mirrored tooth number 11, got %v", stored.ToothNumber)
	}
	if !repo.items[first.ID].IsPrimary || repo.items[second.ID].IsPrimary {
		t.Error("expected only the first line item to be primary")
	}
}

func TestRemoveToothTreatment_PromotesNext(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p := seedPatient(t, repo)

	first := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "11"}
	second := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: pediatricClassID}
	svc.AddToothTreatment(ctx, first)
	svc.AddToothTreatment(ctx, second)

	if err := svc.RemoveToothTreatment(ctx, p.ID, first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !repo.items[second.ID].IsPrimary {
		t.Error("expected the next line item to be promoted")
	}
	stored := repo.patients[p.ID]
	if stored.TreatmentID == nil || *stored.TreatmentID != second.TreatmentID {
		t.Error("expected patient to mirror the promoted line item")
	}
	if stored.ToothNumber != nil {
		t.Errorf("expected empty mirrored tooth number, got %v", *stored.ToothNumber)
	}

	if err := svc.RemoveToothTreatment(ctx, p.ID, second.ID); err != nil {
		t.Fatalf("remove last: %v", err)
	}
	stored = repo.patients[p.ID]
	if stored.TreatmentID != nil || stored.ToothClassID != nil {
		t.Error("expected mirror to be cleared when no line items remain")
	}
}

func TestSetPrimaryToothTreatment(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p := seedPatient(t, repo)

	first := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "11"}
	second := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "46"}
	svc.AddToothTreatment(ctx, first)
	svc.AddToothTreatment(ctx, second)

	if err := svc.SetPrimaryToothTreatment(ctx, p.ID, second.ID); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	if repo.items[first.ID].IsPrimary || !repo.items[second.ID].IsPrimary {
		t.Error("expected primary to move to the second line item")
	}
	if n := repo.patients[p.ID].ToothNumber; n == nil || *n != "46" {
		t.Errorf("expected mirrored tooth number 46, got %v", n)
	}
}

func TestSetPrimaryToothTreatment_OtherPatient(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	a := seedPatient(t, repo)
	b := seedPatient(t, repo)

	item := &ToothTreatment{PatientID: a.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "11"}
	svc.AddToothTreatment(ctx, item)

	err := svc.SetPrimaryToothTreatment(ctx, b.ID, item.ID)
	if !errors.Is(err, ErrLineItemNotFound) {
		t.Errorf("expected ErrLineItemNotFound, got %v", err)
	}
}

func TestUpdateToothTreatment_RemirrorsPrimary(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p := seedPatient(t, repo)

	item := &ToothTreatment{PatientID: p.ID, TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "11"}
	svc.AddToothTreatment(ctx, item)

	edit := &ToothTreatment{ID: item.ID, PatientID: p.ID, TreatmentID: item.TreatmentID, ToothClassID: adultClassID, ToothNumber: "12"}
	if err := svc.UpdateToothTreatment(ctx, edit); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := repo.patients[p.ID].ToothNumber; n == nil || *n != "12" {
		t.Errorf("expected mirrored tooth number 12, got %v", n)
	}
}

func TestAddToothTreatment_UnknownPatient(t *testing.T) {
	svc, _ := newTestService()
	err := svc.AddToothTreatment(context.Background(), &ToothTreatment{PatientID: uuid.New(), TreatmentID: uuid.New(), ToothClassID: adultClassID, ToothNumber: "11"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotes(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p := seedPatient(t, repo)

	n := &Note{PatientID: p.ID, Body: "  prefers mornings "}
	if err := svc.AddNote(ctx, n); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if n.Body != "prefers mornings" {
		t.Errorf("expected trimmed body, got %q", n.Body)
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasNotes || len(got.Notes) != 1 {
		t.Errorf("expected one note and has_notes, got %d notes has_notes=%v", len(got.Notes), got.HasNotes)
	}

	if err := svc.UpdateNote(ctx, &Note{ID: n.ID, PatientID: p.ID, Body: "prefers evenings"}); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if repo.notes[n.ID].Body != "prefers evenings" {
		t.Error("expected note body to be updated")
	}

	other := seedPatient(t, repo)
	if err := svc.DeleteNote(ctx, other.ID, n.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound deleting through another patient, got %v", err)
	}
	if err := svc.DeleteNote(ctx, p.ID, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
}

func TestAddNote_EmptyBody(t *testing.T) {
	svc, repo := newTestService()
	p := seedPatient(t, repo)
	if err := svc.AddNote(context.Background(), &Note{PatientID: p.ID, Body: "  "}); !errors.Is(err, ErrEmptyNote) {
		t.Errorf("expected ErrEmptyNote, got %v", err)
	}
}

func TestList_InvalidStatus(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.List(context.Background(), ListFilter{Status: "done"}, 10, 0); err == nil {
		t.Error("expected error for invalid status filter")
	}
}
