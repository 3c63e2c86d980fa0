package student

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dentalclinic/clinic/internal/platform/validation"
)

type Service struct {
	repo         Repository
	defaultLimit int
}

// NewService builds the student service. defaultLimit is the per-student
// patient limit applied when a student has no override.
func NewService(repo Repository, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 1
	}
	return &Service{repo: repo, defaultLimit: defaultLimit}
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// normalize trims input and applies the registration rules before validation.
func normalize(s *Student) {
	s.Name = strings.TrimSpace(s.Name)
	s.Mobile = strings.TrimSpace(s.Mobile)
	s.City = trimPtr(s.City)
	s.University = trimPtr(s.University)
	s.UniversityType = trimPtr(s.UniversityType)
	if s.RegistrationStatus == "" {
		s.RegistrationStatus = RegistrationPending
	}
	if s.RegistrationStatus != RegistrationRegistered {
		s.RegistrationEndDate = nil
	}
}

func (s *Service) ensureMobileFree(ctx context.Context, mobile string, self uuid.UUID) error {
	existing, err := s.repo.GetByMobile(ctx, mobile)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check mobile: %w", err)
	case existing.ID != self:
		return ErrDuplicateMobile
	}
	return nil
}

func (s *Service) Create(ctx context.Context, st *Student) error {
	normalize(st)
	if err := validation.Struct(st); err != nil {
		return err
	}
	if err := s.ensureMobileFree(ctx, st.Mobile, uuid.Nil); err != nil {
		return err
	}
	st.IsAvailable = true
	st.PatientsInProgress = 0
	st.PatientsCompleted = 0
	return s.repo.Create(ctx, st)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Student, error) {
	return s.repo.GetByID(ctx, id)
}

// Update saves profile and registration fields.
func (s *Service) Update(ctx context.Context, st *Student) error {
	if _, err := s.repo.GetByID(ctx, st.ID); err != nil {
		return err
	}
	normalize(st)
	if err := validation.Struct(st); err != nil {
		return err
	}
	if err := s.ensureMobileFree(ctx, st.Mobile, st.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, st)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Student, int, error) {
	if f.RegistrationStatus != "" && !RegistrationStatus(f.RegistrationStatus).Valid() {
		return nil, 0, fmt.Errorf("invalid registration_status: %s", f.RegistrationStatus)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Assignable lists students that may be offered in assignment dropdowns.
func (s *Service) Assignable(ctx context.Context) ([]*Student, error) {
	return s.repo.ListAssignable(ctx, s.defaultLimit)
}

// BulkResult reports the outcome of one row of a bulk create.
type BulkResult struct {
	Row   int        `json:"row"`
	ID    *uuid.UUID `json:"id,omitempty"`
	Error string     `json:"error,omitempty"`
}

// BulkCreate creates each student independently. A failed row does not stop
// the rows after it. Mobiles repeated within the batch are rejected after the
// first occurrence.
func (s *Service) BulkCreate(ctx context.Context, students []*Student) []BulkResult {
	results := make([]BulkResult, 0, len(students))
	for i, st := range students {
		res := BulkResult{Row: i + 1}
		if st == nil {
			res.Error = "empty row"
			results = append(results, res)
			continue
		}
		if err := s.Create(ctx, st); err != nil {
			res.Error = err.Error()
		} else {
			id := st.ID
			res.ID = &id
		}
		results = append(results, res)
	}
	return results
}
