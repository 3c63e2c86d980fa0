package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalclinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func mapErr(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if _, ok := db.UniqueViolation(err); ok {
		return ErrDuplicate
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Name-only tables ===========

func (r *repoPG) CreateEntry(ctx context.Context, kind Kind, e *Entry) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, name) VALUES ($1, $2) RETURNING created_at, updated_at`, kind),
		e.ID, e.Name).Scan(&e.CreatedAt, &e.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) ListEntries(ctx context.Context, kind Kind) ([]*Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown catalog kind %q", kind)
	}
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s ORDER BY name`, kind))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.Name, &e.CreatedAt, &e.UpdatedAt)
		return &e, err
	})
}

func (r *repoPG) RenameEntry(ctx context.Context, kind Kind, e *Entry) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	return affected(r.conn(ctx).Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET name = $2, updated_at = NOW() WHERE id = $1`, kind), e.ID, e.Name))
}

func (r *repoPG) DeleteEntry(ctx context.Context, kind Kind, id uuid.UUID) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	return affected(r.conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind), id))
}

// =========== Tooth classes ===========

const toothClassCols = `id, name, chart_mode, created_at, updated_at`

func scanToothClass(row pgx.Row) (*ToothClass, error) {
	var tc ToothClass
	err := row.Scan(&tc.ID, &tc.Name, &tc.ChartMode, &tc.CreatedAt, &tc.UpdatedAt)
	return &tc, err
}

func (r *repoPG) CreateToothClass(ctx context.Context, tc *ToothClass) error {
	tc.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tooth_classes (id, name, chart_mode) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		tc.ID, tc.Name, tc.ChartMode).Scan(&tc.CreatedAt, &tc.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetToothClass(ctx context.Context, id uuid.UUID) (*ToothClass, error) {
	tc, err := scanToothClass(r.conn(ctx).QueryRow(ctx,
		`SELECT `+toothClassCols+` FROM tooth_classes WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return tc, nil
}

func (r *repoPG) ListToothClasses(ctx context.Context) ([]*ToothClass, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+toothClassCols+` FROM tooth_classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ToothClass
	for rows.Next() {
		tc, err := scanToothClass(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tc)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateToothClass(ctx context.Context, tc *ToothClass) error {
	return affected(r.conn(ctx).Exec(ctx, `
		UPDATE tooth_classes SET name = $2, chart_mode = $3, updated_at = NOW() WHERE id = $1`,
		tc.ID, tc.Name, tc.ChartMode))
}

func (r *repoPG) DeleteToothClass(ctx context.Context, id uuid.UUID) error {
	return affected(r.conn(ctx).Exec(ctx, `DELETE FROM tooth_classes WHERE id = $1`, id))
}

// =========== Working-day groups ===========

func (r *repoPG) CreateWorkingDaysGroup(ctx context.Context, g *WorkingDaysGroup) error {
	g.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO working_days_groups (id, name, days) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Days).Scan(&g.CreatedAt, &g.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) ListWorkingDaysGroups(ctx context.Context) ([]*WorkingDaysGroup, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, days, created_at, updated_at FROM working_days_groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*WorkingDaysGroup, error) {
		var g WorkingDaysGroup
		err := row.Scan(&g.ID, &g.Name, &g.Days, &g.CreatedAt, &g.UpdatedAt)
		return &g, err
	})
}

func (r *repoPG) UpdateWorkingDaysGroup(ctx context.Context, g *WorkingDaysGroup) error {
	return affected(r.conn(ctx).Exec(ctx, `
		UPDATE working_days_groups SET name = $2, days = $3, updated_at = NOW() WHERE id = $1`,
		g.ID, g.Name, g.Days))
}

func (r *repoPG) DeleteWorkingDaysGroup(ctx context.Context, id uuid.UUID) error {
	return affected(r.conn(ctx).Exec(ctx, `DELETE FROM working_days_groups WHERE id = $1`, id))
}
