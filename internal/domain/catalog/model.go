package catalog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind names a plain name-only lookup table.
type Kind string

const (
	KindTreatment Kind = "treatments"
	KindClassYear Kind = "class_years"
)

var validKinds = map[Kind]bool{KindTreatment: true, KindClassYear: true}

func (k Kind) Valid() bool { return validKinds[k] }

// Entry is a row of a name-only lookup table (treatments, class years).
type Entry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ChartMode selects the dental chart a tooth class is recorded on.
type ChartMode string

const (
	ChartAdult     ChartMode = "adult"
	ChartPediatric ChartMode = "pediatric"
)

func (m ChartMode) Valid() bool { return m == ChartAdult || m == ChartPediatric }

type ToothClass struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ChartMode ChartMode `db:"chart_mode" json:"chart_mode"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsPediatric reports whether line items of this class may omit the tooth number.
func (tc *ToothClass) IsPediatric() bool { return tc.ChartMode == ChartPediatric }

type WorkingDaysGroup struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Days      []string  `db:"days" json:"days"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

var weekdays = map[string]bool{
	"saturday": true, "sunday": true, "monday": true, "tuesday": true,
	"wednesday": true, "thursday": true, "friday": true,
}

// ValidateToothNumber checks an ISO-3950 two-digit code against the chart
// mode. Adult charts use permanent teeth (quadrants 1-4, positions 1-8) and
// require a number. Pediatric charts use primary teeth (quadrants 5-8,
// positions 1-5) and accept an empty number.
func ValidateToothNumber(mode ChartMode, number string) error {
	if number == "" {
		if mode == ChartPediatric {
			return nil
		}
		return fmt.Errorf("tooth number is required")
	}
	if len(number) != 2 {
		return fmt.Errorf("tooth number %q must be two digits", number)
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return fmt.Errorf("tooth number %q must be numeric", number)
	}
	quadrant, position := n/10, n%10

	switch mode {
	case ChartPediatric:
		if quadrant < 5 || quadrant > 8 || position < 1 || position > 5 {
			return fmt.Errorf("tooth number %q is not a primary tooth", number)
		}
	default:
		if quadrant < 1 || quadrant > 4 || position < 1 || position > 8 {
			return fmt.Errorf("tooth number %q is not a permanent tooth", number)
		}
	}
	return nil
}
