package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("catalog entry not found")
	ErrDuplicate = errors.New("catalog entry name already exists")
)

type Repository interface {
	CreateEntry(ctx context.Context, kind Kind, e *Entry) error
	ListEntries(ctx context.Context, kind Kind) ([]*Entry, error)
	RenameEntry(ctx context.Context, kind Kind, e *Entry) error
	DeleteEntry(ctx context.Context, kind Kind, id uuid.UUID) error

	CreateToothClass(ctx context.Context, tc *ToothClass) error
	GetToothClass(ctx context.Context, id uuid.UUID) (*ToothClass, error)
	ListToothClasses(ctx context.Context) ([]*ToothClass, error)
	UpdateToothClass(ctx context.Context, tc *ToothClass) error
	DeleteToothClass(ctx context.Context, id uuid.UUID) error

	CreateWorkingDaysGroup(ctx context.Context, g *WorkingDaysGroup) error
	ListWorkingDaysGroups(ctx context.Context) ([]*WorkingDaysGroup, error)
	UpdateWorkingDaysGroup(ctx context.Context, g *WorkingDaysGroup) error
	DeleteWorkingDaysGroup(ctx context.Context, id uuid.UUID) error
}
