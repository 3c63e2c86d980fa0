package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("patient not found")
	ErrDuplicateTicket  = errors.New("a patient with this ticket number already exists")
	ErrVersionConflict  = errors.New("patient was modified by another request")
	ErrLineItemNotFound = errors.New("tooth treatment not found")
	ErrNoteNotFound     = errors.New("note not found")
	ErrEmptyNote        = errors.New("note body is required")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByTicket(ctx context.Context, ticket string) (*Patient, error)
	// UpdateState writes status, dates and student. It succeeds only when
	// p.VersionID matches the stored version, then bumps p.VersionID.
	UpdateState(ctx context.Context, p *Patient) error
	// UpdateDetails writes the descriptive fields under the same version check.
	UpdateDetails(ctx context.Context, p *Patient) error
	UpdateMirror(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error)
	CountByStudent(ctx context.Context, studentID uuid.UUID) (StatusCounts, error)

	AddToothTreatment(ctx context.Context, tt *ToothTreatment) error
	GetToothTreatment(ctx context.Context, id uuid.UUID) (*ToothTreatment, error)
	ListToothTreatments(ctx context.Context, patientID uuid.UUID) ([]*ToothTreatment, error)
	UpdateToothTreatment(ctx context.Context, tt *ToothTreatment) error
	DeleteToothTreatment(ctx context.Context, id uuid.UUID) error
	SetPrimaryToothTreatment(ctx context.Context, patientID, id uuid.UUID) error

	AddNote(ctx context.Context, n *Note) error
	GetNote(ctx context.Context, id uuid.UUID) (*Note, error)
	ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error)
	UpdateNote(ctx context.Context, n *Note) error
	DeleteNote(ctx context.Context, id uuid.UUID) error
}
