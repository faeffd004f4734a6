package donor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifelink/lifelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type donorRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) DonorRepository {
	return &donorRepoPG{pool: pool}
}

func (r *donorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const donorCols = `id, external_id, name, blood_type, organs, age, location,
	medical_history, is_active, is_verified, priority, created_at, updated_at`

func (r *donorRepoPG) scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.ExternalID, &d.Name, &d.BloodType, &d.Organs,
		&d.Age, &d.Location, &d.MedicalHistory, &d.IsActive, &d.IsVerified,
		&d.Priority, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *donorRepoPG) Create(ctx context.Context, d *Donor) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO donors (id, external_id, name, blood_type, organs, age, location,
			medical_history, is_active, is_verified, priority, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		d.ID, d.ExternalID, d.Name, d.BloodType, d.Organs, d.Age, d.Location,
		d.MedicalHistory, d.IsActive, d.IsVerified, d.Priority, d.CreatedAt, d.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *donorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return r.scanDonor(r.conn(ctx).QueryRow(ctx, `SELECT `+donorCols+` FROM donors WHERE id = $1`, id))
}

func (r *donorRepoPG) GetByExternalID(ctx context.Context, externalID string) (*Donor, error) {
	return r.scanDonor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+donorCols+` FROM donors WHERE external_id = $1`, externalID))
}

func (r *donorRepoPG) Update(ctx context.Context, d *Donor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE donors SET name=$2, blood_type=$3, organs=$4, age=$5, location=$6,
			medical_history=$7, is_active=$8, is_verified=$9, priority=$10, updated_at=$11
		WHERE id = $1`,
		d.ID, d.Name, d.BloodType, d.Organs, d.Age, d.Location,
		d.MedicalHistory, d.IsActive, d.IsVerified, d.Priority, d.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *donorRepoPG) ListEligible(ctx context.Context) ([]*Donor, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+donorCols+` FROM donors WHERE is_active AND is_verified`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := r.scanDonor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *donorRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Donor, int, error) {
	query := `SELECT ` + donorCols + ` FROM donors WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM donors WHERE 1=1`
	var args []interface{}
	idx := 1

	if params.BloodType != "" {
		query += fmt.Sprintf(` AND blood_type = $%d`, idx)
		countQuery += fmt.Sprintf(` AND blood_type = $%d`, idx)
		args = append(args, params.BloodType)
		idx++
	}
	if params.Organ != "" {
		query += fmt.Sprintf(` AND $%d = ANY(organs)`, idx)
		countQuery += fmt.Sprintf(` AND $%d = ANY(organs)`, idx)
		args = append(args, params.Organ)
		idx++
	}
	if params.Location != "" {
		query += fmt.Sprintf(` AND location ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND location ILIKE $%d`, idx)
		args = append(args, "%"+strings.TrimSpace(params.Location)+"%")
		idx++
	}
	if params.Active != nil {
		query += fmt.Sprintf(` AND is_active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *params.Active)
		idx++
	}
	if params.Verified != nil {
		query += fmt.Sprintf(` AND is_verified = $%d`, idx)
		countQuery += fmt.Sprintf(` AND is_verified = $%d`, idx)
		args = append(args, *params.Verified)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY priority DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := r.scanDonor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}
