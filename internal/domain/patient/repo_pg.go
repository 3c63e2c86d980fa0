package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalclinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const ticketConstraint = "patients_ticket_number_key"

func mapErr(err error, notFound error) error {
	if db.IsNoRows(err) {
		return notFound
	}
	if constraint, ok := db.UniqueViolation(err); ok && constraint == ticketConstraint {
		return ErrDuplicateTicket
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// =========== Patients ===========

const patientCols = `p.id, p.ticket_number, p.name, p.mobile, p.age, p.class_year_id,
	p.treatment_id, p.tooth_number, p.tooth_class_id, p.status, p.start_date, p.end_date,
	p.student_id, s.name, p.version_id,
	EXISTS (SELECT 1 FROM patient_notes n WHERE n.patient_id = p.id),
	p.created_at, p.updated_at`

const patientFrom = ` FROM patients p LEFT JOIN students s ON s.id = p.student_id`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TicketNumber, &p.Name, &p.Mobile, &p.Age, &p.ClassYearID,
		&p.TreatmentID, &p.ToothNumber, &p.ToothClassID, &p.Status, &p.StartDate, &p.EndDate,
		&p.StudentID, &p.StudentName, &p.VersionID, &p.HasNotes,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.VersionID = 1
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, ticket_number, name, mobile, age, class_year_id,
			treatment_id, tooth_number, tooth_class_id, status, start_date, end_date,
			student_id, version_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		p.ID, p.TicketNumber, p.Name, p.Mobile, p.Age, p.ClassYearID,
		p.TreatmentID, p.ToothNumber, p.ToothClassID, p.Status, p.StartDate, p.EndDate,
		p.StudentID, p.VersionID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr(err, ErrNotFound)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+patientFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, ErrNotFound)
	}
	return p, nil
}

func (r *repoPG) GetByTicket(ctx context.Context, ticket string) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+patientFrom+` WHERE p.ticket_number = $1`, ticket))
	if err != nil {
		return nil, mapErr(err, ErrNotFound)
	}
	return p, nil
}

// versioned runs a conditional update and tells a missing row apart from a
// stale version.
func (r *repoPG) versioned(ctx context.Context, p *Patient, sql string, args ...interface{}) error {
	err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.VersionID, &p.UpdatedAt)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return mapErr(err, ErrNotFound)
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *repoPG) UpdateState(ctx context.Context, p *Patient) error {
	return r.versioned(ctx, p, `
		UPDATE patients SET status = $3, start_date = $4, end_date = $5, student_id = $6,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		p.ID, p.VersionID, p.Status, p.StartDate, p.EndDate, p.StudentID)
}

func (r *repoPG) UpdateDetails(ctx context.Context, p *Patient) error {
	return r.versioned(ctx, p, `
		UPDATE patients SET ticket_number = $3, name = $4, mobile = $5, age = $6, class_year_id = $7,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		p.ID, p.VersionID, p.TicketNumber, p.Name, p.Mobile, p.Age, p.ClassYearID)
}

func (r *repoPG) UpdateMirror(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET treatment_id = $2, tooth_number = $3, tooth_class_id = $4,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version_id, updated_at`,
		p.ID, p.TreatmentID, p.ToothNumber, p.ToothClassID,
	).Scan(&p.VersionID, &p.UpdatedAt)
	return mapErr(err, ErrNotFound)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Status != "" {
		where += fmt.Sprintf(` AND p.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.StudentID != nil {
		where += fmt.Sprintf(` AND p.student_id = $%d`, idx)
		args = append(args, *f.StudentID)
		idx++
	}
	if f.ClassYearID != nil {
		where += fmt.Sprintf(` AND p.class_year_id = $%d`, idx)
		args = append(args, *f.ClassYearID)
		idx++
	}
	if f.TreatmentID != nil {
		where += fmt.Sprintf(` AND p.treatment_id = $%d`, idx)
		args = append(args, *f.TreatmentID)
		idx++
	}
	if f.Query != "" {
		where += fmt.Sprintf(` AND (p.name ILIKE $%d OR p.ticket_number ILIKE $%d)`, idx, idx)
		args = append(args, "%"+f.Query+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientCols + patientFrom + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountByStudent(ctx context.Context, studentID uuid.UUID) (StatusCounts, error) {
	var c StatusCounts
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'in_progress'),
		       COUNT(*) FILTER (WHERE status = 'completed')
		FROM patients WHERE student_id = $1`, studentID).Scan(&c.InProgress, &c.Completed)
	return c, err
}

// =========== Tooth treatments ===========

const toothCols = `id, patient_id, treatment_id, tooth_number, tooth_class_id, is_primary, ordinal,
	created_at, updated_at`

func (r *repoPG) scanToothTreatment(row pgx.Row) (*ToothTreatment, error) {
	var tt ToothTreatment
	var number *string
	err := row.Scan(&tt.ID, &tt.PatientID, &tt.TreatmentID, &number, &tt.ToothClassID,
		&tt.IsPrimary, &tt.Ordinal, &tt.CreatedAt, &tt.UpdatedAt)
	if number != nil {
		tt.ToothNumber = *number
	}
	return &tt, err
}

// AddToothTreatment appends the line item after the patient's existing ones.
func (r *repoPG) AddToothTreatment(ctx context.Context, tt *ToothTreatment) error {
	tt.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tooth_treatments (id, patient_id, treatment_id, tooth_number, tooth_class_id,
			is_primary, ordinal)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(ordinal) + 1, 0) FROM tooth_treatments WHERE patient_id = $2))
		RETURNING ordinal, created_at, updated_at`,
		tt.ID, tt.PatientID, tt.TreatmentID, nullable(tt.ToothNumber), tt.ToothClassID, tt.IsPrimary,
	).Scan(&tt.Ordinal, &tt.CreatedAt, &tt.UpdatedAt)
	return err
}

func (r *repoPG) GetToothTreatment(ctx context.Context, id uuid.UUID) (*ToothTreatment, error) {
	tt, err := r.scanToothTreatment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+toothCols+` FROM tooth_treatments WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, ErrLineItemNotFound)
	}
	return tt, nil
}

func (r *repoPG) ListToothTreatments(ctx context.Context, patientID uuid.UUID) ([]*ToothTreatment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+toothCols+` FROM tooth_treatments WHERE patient_id = $1 ORDER BY ordinal`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ToothTreatment
	for rows.Next() {
		tt, err := r.scanToothTreatment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tt)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateToothTreatment(ctx context.Context, tt *ToothTreatment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE tooth_treatments SET treatment_id = $2, tooth_number = $3, tooth_class_id = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING is_primary, ordinal, updated_at`,
		tt.ID, tt.TreatmentID, nullable(tt.ToothNumber), tt.ToothClassID,
	).Scan(&tt.IsPrimary, &tt.Ordinal, &tt.UpdatedAt)
	return mapErr(err, ErrLineItemNotFound)
}

func (r *repoPG) DeleteToothTreatment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM tooth_treatments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineItemNotFound
	}
	return nil
}

// SetPrimaryToothTreatment moves the primary flag to id. Both statements run
// in one transaction so the one-primary index never sees two.
func (r *repoPG) SetPrimaryToothTreatment(ctx context.Context, patientID, id uuid.UUID) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE tooth_treatments SET is_primary = FALSE, updated_at = NOW()
			WHERE patient_id = $1 AND is_primary`, patientID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE tooth_treatments SET is_primary = TRUE, updated_at = NOW()
			WHERE id = $1 AND patient_id = $2`, id, patientID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrLineItemNotFound
		}
		return nil
	})
}

// =========== Notes ===========

const noteCols = `id, patient_id, body, author, created_at, updated_at`

func (r *repoPG) scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.PatientID, &n.Body, &n.Author, &n.CreatedAt, &n.UpdatedAt)
	return &n, err
}

func (r *repoPG) AddNote(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_notes (id, patient_id, body, author) VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		n.ID, n.PatientID, n.Body, n.Author,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) GetNote(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, err := r.scanNote(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM patient_notes WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, ErrNoteNotFound)
	}
	return n, nil
}

func (r *repoPG) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+noteCols+` FROM patient_notes WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		n, err := r.scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateNote(ctx context.Context, n *Note) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_notes SET body = $2, updated_at = NOW() WHERE id = $1
		RETURNING patient_id, author, created_at, updated_at`,
		n.ID, n.Body,
	).Scan(&n.PatientID, &n.Author, &n.CreatedAt, &n.UpdatedAt)
	return mapErr(err, ErrNoteNotFound)
}

func (r *repoPG) DeleteNote(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}
