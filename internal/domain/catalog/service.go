package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if len(name) > 150 {
		return "", fmt.Errorf("name must be at most 150 characters")
	}
	return name, nil
}

// -- Name-only tables --

func (s *Service) CreateEntry(ctx context.Context, kind Kind, e *Entry) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	name, err := cleanName(e.Name)
	if err != nil {
		return err
	}
	e.Name = name
	return s.repo.CreateEntry(ctx, kind, e)
}

func (s *Service) ListEntries(ctx context.Context, kind Kind) ([]*Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown catalog kind %q", kind)
	}
	return s.repo.ListEntries(ctx, kind)
}

func (s *Service) RenameEntry(ctx context.Context, kind Kind, e *Entry) error {
	name, err := cleanName(e.Name)
	if err != nil {
		return err
	}
	e.Name = name
	return s.repo.RenameEntry(ctx, kind, e)
}

func (s *Service) DeleteEntry(ctx context.Context, kind Kind, id uuid.UUID) error {
	return s.repo.DeleteEntry(ctx, kind, id)
}

// -- Tooth classes --

func (s *Service) validateToothClass(tc *ToothClass) error {
	name, err := cleanName(tc.Name)
	if err != nil {
		return err
	}
	tc.Name = name
	if tc.ChartMode == "" {
		tc.ChartMode = ChartAdult
	}
	if !tc.ChartMode.Valid() {
		return fmt.Errorf("invalid chart mode: %s", tc.ChartMode)
	}
	return nil
}

func (s *Service) CreateToothClass(ctx context.Context, tc *ToothClass) error {
	if err := s.validateToothClass(tc); err != nil {
		return err
	}
	return s.repo.CreateToothClass(ctx, tc)
}

func (s *Service) GetToothClass(ctx context.Context, id uuid.UUID) (*ToothClass, error) {
	return s.repo.GetToothClass(ctx, id)
}

func (s *Service) ListToothClasses(ctx context.Context) ([]*ToothClass, error) {
	return s.repo.ListToothClasses(ctx)
}

func (s *Service) UpdateToothClass(ctx context.Context, tc *ToothClass) error {
	if err := s.validateToothClass(tc); err != nil {
		return err
	}
	return s.repo.UpdateToothClass(ctx, tc)
}

func (s *Service) DeleteToothClass(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteToothClass(ctx, id)
}

// -- Working-day groups --

func (s *Service) validateGroup(g *WorkingDaysGroup) error {
	name, err := cleanName(g.Name)
	if err != nil {
		return err
	}
	g.Name = name
	if len(g.Days) == 0 {
		return fmt.Errorf("at least one working day is required")
	}
	seen := make(map[string]bool, len(g.Days))
	days := make([]string, 0, len(g.Days))
	for _, d := range g.Days {
		d = strings.ToLower(strings.TrimSpace(d))
		if !weekdays[d] {
			return fmt.Errorf("invalid weekday: %s", d)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	g.Days = days
	return nil
}

func (s *Service) CreateWorkingDaysGroup(ctx context.Context, g *WorkingDaysGroup) error {
	if err := s.validateGroup(g); err != nil {
		return err
	}
	return s.repo.CreateWorkingDaysGroup(ctx, g)
}

func (s *Service) ListWorkingDaysGroups(ctx context.Context) ([]*WorkingDaysGroup, error) {
	return s.repo.ListWorkingDaysGroups(ctx)
}

func (s *Service) UpdateWorkingDaysGroup(ctx context.Context, g *WorkingDaysGroup) error {
	if err := s.validateGroup(g); err != nil {
		return err
	}
	return s.repo.UpdateWorkingDaysGroup(ctx, g)
}

func (s *Service) DeleteWorkingDaysGroup(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteWorkingDaysGroup(ctx, id)
}
