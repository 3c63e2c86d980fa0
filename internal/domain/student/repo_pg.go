package student

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalclinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const studentCols = `id, name, mobile, city, university, university_type,
	working_days_group_id, class_year_id, registration_status, registration_end_date,
	is_available, patients_in_progress, patients_completed, patient_limit,
	created_at, updated_at`

func (r *repoPG) scanStudent(row pgx.Row) (*Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.Mobile, &s.City, &s.University, &s.UniversityType,
		&s.WorkingDaysGroupID, &s.ClassYearID, &s.RegistrationStatus, &s.RegistrationEndDate,
		&s.IsAvailable, &s.PatientsInProgress, &s.PatientsCompleted, &s.PatientLimit,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Decorate()
	return &s, nil
}

func mapErr(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if constraint, ok := db.UniqueViolation(err); ok && constraint == "students_mobile_key" {
		return ErrDuplicateMobile
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, s *Student) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO students (id, name, mobile, city, university, university_type,
			working_days_group_id, class_year_id, registration_status, registration_end_date,
			is_available, patient_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Mobile, s.City, s.University, s.UniversityType,
		s.WorkingDaysGroupID, s.ClassYearID, s.RegistrationStatus, s.RegistrationEndDate,
		s.IsAvailable, s.PatientLimit,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	s.Decorate()
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	s, err := r.scanStudent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+studentCols+` FROM students WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

func (r *repoPG) GetByMobile(ctx context.Context, mobile string) (*Student, error) {
	s, err := r.scanStudent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+studentCols+` FROM students WHERE mobile = $1`, mobile))
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

// Update writes profile and registration fields. Availability and counters
// are owned by the assignment engine and are left untouched.
func (r *repoPG) Update(ctx context.Context, s *Student) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE students SET name = $2, mobile = $3, city = $4, university = $5,
			university_type = $6, working_days_group_id = $7, class_year_id = $8,
			registration_status = $9, registration_end_date = $10, patient_limit = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING is_available, patients_in_progress, patients_completed, updated_at`,
		s.ID, s.Name, s.Mobile, s.City, s.University,
		s.UniversityType, s.WorkingDaysGroupID, s.ClassYearID,
		s.RegistrationStatus, s.RegistrationEndDate, s.PatientLimit,
	).Scan(&s.IsAvailable, &s.PatientsInProgress, &s.PatientsCompleted, &s.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	s.Decorate()
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Student, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.RegistrationStatus != "" {
		where += fmt.Sprintf(` AND registration_status = $%d`, idx)
		args = append(args, f.RegistrationStatus)
		idx++
	}
	if f.Available != nil {
		where += fmt.Sprintf(` AND is_available = $%d AND registration_status <> 'unregistered'`, idx)
		args = append(args, *f.Available)
		idx++
	}
	if f.ClassYearID != nil {
		where += fmt.Sprintf(` AND class_year_id = $%d`, idx)
		args = append(args, *f.ClassYearID)
		idx++
	}
	if f.WorkingDaysGroupID != nil {
		where += fmt.Sprintf(` AND working_days_group_id = $%d`, idx)
		args = append(args, *f.WorkingDaysGroupID)
		idx++
	}
	if f.City != "" {
		where += fmt.Sprintf(` AND city ILIKE $%d`, idx)
		args = append(args, f.City)
		idx++
	}
	if f.University != "" {
		where += fmt.Sprintf(` AND university ILIKE $%d`, idx)
		args = append(args, f.University)
		idx++
	}
	if f.Query != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR mobile LIKE $%d)`, idx, idx)
		args = append(args, "%"+f.Query+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + studentCols + ` FROM students` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Student
	for rows.Next() {
		s, err := r.scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListAssignable(ctx context.Context, defaultLimit int) ([]*Student, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+studentCols+` FROM students
		WHERE registration_status = 'registered' AND is_available
		  AND patients_in_progress < COALESCE(patient_limit, $1)
		ORDER BY name`, defaultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Student
	for rows.Next() {
		s, err := r.scanStudent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE students SET is_available = $2, updated_at = NOW() WHERE id = $1`, id, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetCounters(ctx context.Context, id uuid.UUID, c Counters) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE students SET patients_in_progress = $2, patients_completed = $3, updated_at = NOW()
		WHERE id = $1`, id, c.InProgress, c.Completed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM students ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// ExpireRegistrations flips every registered student whose end date has
// passed to unregistered in one statement and returns the affected ids.
func (r *repoPG) ExpireRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE students
		SET registration_status = 'unregistered', registration_end_date = NULL, updated_at = NOW()
		WHERE registration_status = 'registered' AND registration_end_date <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
