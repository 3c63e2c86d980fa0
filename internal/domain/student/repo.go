package student

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("student not found")
	ErrDuplicateMobile = errors.New("a student with this mobile number already exists")
)

type Repository interface {
	Create(ctx context.Context, s *Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)
	GetByMobile(ctx context.Context, mobile string) (*Student, error)
	Update(ctx context.Context, s *Student) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Student, int, error)
	ListAssignable(ctx context.Context, defaultLimit int) ([]*Student, error)

	// Engine-owned writes.
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	SetCounters(ctx context.Context, id uuid.UUID, c Counters) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	ExpireRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}
