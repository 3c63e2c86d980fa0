package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	entries map[Kind]map[uuid.UUID]*Entry
	classes map[uuid.UUID]*ToothClass
	groups  map[uuid.UUID]*WorkingDaysGroup
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		entries: map[Kind]map[uuid.UUID]*Entry{KindTreatment: {}, KindClassYear: {}},
		classes: make(map[uuid.UUID]*ToothClass),
		groups:  make(map[uuid.UUID]*WorkingDaysGroup),
	}
}

func (m *mockRepo) CreateEntry(_ context.Context, kind Kind, e *Entry) error {
	for _, existing := range m.entries[kind] {
		if existing.Name == e.Name {
			return ErrDuplicate
		}
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = time.Now()
	m.entries[kind][e.ID] = e
	return nil
}

func (m *mockRepo) ListEntries(_ context.Context, kind Kind) ([]*Entry, error) {
	var out []*Entry
	for _, e := range m.entries[kind] {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockRepo) RenameEntry(_ context.Context, kind Kind, e *Entry) error {
	if _, ok := m.entries[kind][e.ID]; !ok {
		return ErrNotFound
	}
	m.entries[kind][e.ID] = e
	return nil
}

func (m *mockRepo) DeleteEntry(_ context.Context, kind Kind, id uuid.UUID) error {
	if _, ok := m.entries[kind][id]; !ok {
		return ErrNotFound
	}
	delete(m.entries[kind], id)
	return nil
}

func (m *mockRepo) CreateToothClass(_ context.Context, tc *ToothClass) error {
	tc.ID = uuid.New()
	m.classes[tc.ID] = tc
	return nil
}

func (m *mockRepo) GetToothClass(_ context.Context, id uuid.UUID) (*ToothClass, error) {
	tc, ok := m.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tc, nil
}

func (m *mockRepo) ListToothClasses(_ context.Context) ([]*ToothClass, error) {
	var out []*ToothClass
	for _, tc := range m.classes {
		out = append(out, tc)
	}
	return out, nil
}

func (m *mockRepo) UpdateToothClass(_ context.Context, tc *ToothClass) error {
	if _, ok := m.classes[tc.ID]; !ok {
		return ErrNotFound
	}
	m.classes[tc.ID] = tc
	return nil
}

func (m *mockRepo) DeleteToothClass(_ context.Context, id uuid.UUID) error {
	delete(m.classes, id)
	return nil
}

func (m *mockRepo) CreateWorkingDaysGroup(_ context.Context, g *WorkingDaysGroup) error {
	g.ID = uuid.New()
	m.groups[g.ID] = g
	return nil
}

func (m *mockRepo) ListWorkingDaysGroups(_ context.Context) ([]*WorkingDaysGroup, error) {
	var out []*WorkingDaysGroup
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}

func (m *mockRepo) UpdateWorkingDaysGroup(_ context.Context, g *WorkingDaysGroup) error {
	if _, ok := m.groups[g.ID]; !ok {
		return ErrNotFound
	}
	m.groups[g.ID] = g
	return nil
}

func (m *mockRepo) DeleteWorkingDaysGroup(_ context.Context, id uuid.UUID) error {
	delete(m.groups, id)
	return nil
}

func newTestService() *Service {
	return NewService(newMockRepo())
}

// -- Tests --

func TestCreateEntry(t *testing.T) {
	svc := newTestService()
	e := &Entry{Name: "  Root canal  "}
	if err := svc.CreateEntry(context.Background(), KindTreatment, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if e.Name != "Root canal" {
		t.Errorf("expected trimmed name, got %q", e.Name)
	}
	if e.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
}

func TestCreateEntry_EmptyName(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateEntry(context.Background(), KindClassYear, &Entry{Name: "   "}); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestCreateEntry_UnknownKind(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateEntry(context.Background(), Kind("patients"), &Entry{Name: "x"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCreateEntry_Duplicate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.CreateEntry(ctx, KindClassYear, &Entry{Name: "Year 4"})
	err := svc.CreateEntry(ctx, KindClassYear, &Entry{Name: "Year 4"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateToothClass_DefaultsToAdult(t *testing.T) {
	svc := newTestService()
	tc := &ToothClass{Name: "Molar"}
	if err := svc.CreateToothClass(context.Background(), tc); err != nil {
		t.Fatalf("CreateToothClass: %v", err)
	}
	if tc.ChartMode != ChartAdult {
		t.Errorf("expected adult chart mode, got %s", tc.ChartMode)
	}
}

func TestCreateToothClass_InvalidMode(t *testing.T) {
	svc := newTestService()
	err := svc.CreateToothClass(context.Background(), &ToothClass{Name: "Molar", ChartMode: "canine"})
	if err == nil {
		t.Error("expected error for invalid chart mode")
	}
}

func TestCreateWorkingDaysGroup_NormalizesDays(t *testing.T) {
	svc := newTestService()
	g := &WorkingDaysGroup{Name: "Group A", Days: []string{"Sunday", " tuesday", "sunday"}}
	if err := svc.CreateWorkingDaysGroup(context.Background(), g); err != nil {
		t.Fatalf("CreateWorkingDaysGroup: %v", err)
	}
	if len(g.Days) != 2 || g.Days[0] != "sunday" || g.Days[1] != "tuesday" {
		t.Errorf("unexpected days: %v", g.Days)
	}
}

func TestCreateWorkingDaysGroup_Invalid(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if err := svc.CreateWorkingDaysGroup(ctx, &WorkingDaysGroup{Name: "A"}); err == nil {
		t.Error("expected error for no days")
	}
	if err := svc.CreateWorkingDaysGroup(ctx, &WorkingDaysGroup{Name: "A", Days: []string{"funday"}}); err == nil {
		t.Error("expected error for unknown weekday")
	}
}

func TestUpdateToothClass_NotFound(t *testing.T) {
	svc := newTestService()
	err := svc.UpdateToothClass(context.Background(), &ToothClass{ID: uuid.New(), Name: "Incisor"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
