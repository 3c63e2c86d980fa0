package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dentalclinic/clinic/internal/domain/catalog"
	"github.com/dentalclinic/clinic/internal/platform/validation"
)

// ToothClassLookup resolves a tooth class so its chart mode can be checked.
type ToothClassLookup interface {
	GetToothClass(ctx context.Context, id uuid.UUID) (*catalog.ToothClass, error)
}

// CheckLineItem validates one tooth-treatment line item. Treatment and tooth
// class are required. The tooth number is required and must be a permanent
// tooth unless the class is on the pediatric chart, where it may be empty.
func CheckLineItem(ctx context.Context, classes ToothClassLookup, field string, tt *ToothTreatment) error {
	tt.ToothNumber = strings.TrimSpace(tt.ToothNumber)
	if tt.TreatmentID == uuid.Nil {
		return &validation.FieldError{Field: field + ".treatment_id", Reason: "is required"}
	}
	if tt.ToothClassID == uuid.Nil {
		return &validation.FieldError{Field: field + ".tooth_class_id", Reason: "is required"}
	}
	class, err := classes.GetToothClass(ctx, tt.ToothClassID)
	if errors.Is(err, catalog.ErrNotFound) {
		return &validation.FieldError{Field: field + ".tooth_class_id", Reason: "does not exist"}
	}
	if err != nil {
		return fmt.Errorf("look up tooth class: %w", err)
	}
	if err := catalog.ValidateToothNumber(class.ChartMode, tt.ToothNumber); err != nil {
		return &validation.FieldError{Field: field + ".tooth_number", Reason: err.Error()}
	}
	return nil
}
