package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service covers patient reads, tooth-treatment line items and notes.
// Status, dates and the assigned student change only through the
// assignment engine.
type Service struct {
	repo    Repository
	classes ToothClassLookup
}

func NewService(repo Repository, classes ToothClassLookup) *Service {
	return &Service{repo: repo, classes: classes}
}

// Get returns the patient with its line items and notes.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ToothTreatments, err = s.repo.ListToothTreatments(ctx, id); err != nil {
		return nil, fmt.Errorf("list tooth treatments: %w", err)
	}
	if p.Notes, err = s.repo.ListNotes(ctx, id); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	if f.Status != "" && !Status(f.Status).Valid() {
		return nil, 0, fmt.Errorf("invalid status: %s", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// -- Tooth treatments --

func (s *Service) ListToothTreatments(ctx context.Context, patientID uuid.UUID) ([]*ToothTreatment, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListToothTreatments(ctx, patientID)
}

func (s *Service) AddToothTreatment(ctx context.Context, tt *ToothTreatment) error {
	if _, err := s.repo.GetByID(ctx, tt.PatientID); err != nil {
		return err
	}
	if err := CheckLineItem(ctx, s.classes, "tooth_treatment", tt); err != nil {
		return err
	}
	tt.IsPrimary = false
	if err := s.repo.AddToothTreatment(ctx, tt); err != nil {
		return fmt.Errorf("add tooth treatment: %w", err)
	}
	return s.remirror(ctx, tt.PatientID)
}

func (s *Service) UpdateToothTreatment(ctx context.Context, tt *ToothTreatment) error {
	existing, err := s.lineItemOf(ctx, tt.PatientID, tt.ID)
	if err != nil {
		return err
	}
	if err := CheckLineItem(ctx, s.classes, "tooth_treatment", tt); err != nil {
		return err
	}
	if err := s.repo.UpdateToothTreatment(ctx, tt); err != nil {
		return fmt.Errorf("update tooth treatment: %w", err)
	}
	if existing.IsPrimary {
		return s.remirror(ctx, tt.PatientID)
	}
	return nil
}

// RemoveToothTreatment deletes a line item. Removing the primary promotes the
// next item by ordinal.
func (s *Service) RemoveToothTreatment(ctx context.Context, patientID, id uuid.UUID) error {
	existing, err := s.lineItemOf(ctx, patientID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteToothTreatment(ctx, id); err != nil {
		return fmt.Errorf("delete tooth treatment: %w", err)
	}
	if existing.IsPrimary {
		return s.remirror(ctx, patientID)
	}
	return nil
}

func (s *Service) SetPrimaryToothTreatment(ctx context.Context, patientID, id uuid.UUID) error {
	if _, err := s.lineItemOf(ctx, patientID, id); err != nil {
		return err
	}
	if err := s.repo.SetPrimaryToothTreatment(ctx, patientID, id); err != nil {
		return fmt.Errorf("set primary tooth treatment: %w", err)
	}
	return s.remirror(ctx, patientID)
}

func (s *Service) lineItemOf(ctx context.Context, patientID, id uuid.UUID) (*ToothTreatment, error) {
	tt, err := s.repo.GetToothTreatment(ctx, id)
	if err != nil {
		return nil, err
	}
	if tt.PatientID != patientID {
		return nil, ErrLineItemNotFound
	}
	return tt, nil
}

// remirror makes sure exactly one line item is primary when any exist and
// copies it onto the patient row, clearing the mirror when none remain.
func (s *Service) remirror(ctx context.Context, patientID uuid.UUID) error {
	items, err := s.repo.ListToothTreatments(ctx, patientID)
	if err != nil {
		return fmt.Errorf("list tooth treatments: %w", err)
	}
	var primary *ToothTreatment
	for _, tt := range items {
		if tt.IsPrimary {
			primary = tt
			break
		}
	}
	if primary == nil && len(items) > 0 {
		primary = items[0]
		if err := s.repo.SetPrimaryToothTreatment(ctx, patientID, primary.ID); err != nil {
			return fmt.Errorf("promote primary tooth treatment: %w", err)
		}
		primary.IsPrimary = true
	}

	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	p.Mirror(primary)
	if err := s.repo.UpdateMirror(ctx, p); err != nil {
		return fmt.Errorf("mirror primary tooth treatment: %w", err)
	}
	return nil
}

// -- Notes --

func (s *Service) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListNotes(ctx, patientID)
}

func (s *Service) AddNote(ctx context.Context, n *Note) error {
	n.Body = strings.TrimSpace(n.Body)
	if n.Body == "" {
		return ErrEmptyNote
	}
	if _, err := s.repo.GetByID(ctx, n.PatientID); err != nil {
		return err
	}
	return s.repo.AddNote(ctx, n)
}

func (s *Service) UpdateNote(ctx context.Context, n *Note) error {
	n.Body = strings.TrimSpace(n.Body)
	if n.Body == "" {
		return ErrEmptyNote
	}
	existing, err := s.repo.GetNote(ctx, n.ID)
	if err != nil {
		return err
	}
	if existing.PatientID != n.PatientID {
		return ErrNoteNotFound
	}
	return s.repo.UpdateNote(ctx, n)
}

func (s *Service) DeleteNote(ctx context.Context, patientID, id uuid.UUID) error {
	existing, err := s.repo.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if existing.PatientID != patientID {
		return ErrNoteNotFound
	}
	return s.repo.DeleteNote(ctx, id)
}
