package recipient

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

type recipientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) RecipientRepository {
	return &recipientRepoPG{pool: pool}
}

func (r *recipientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recipientCols = `id, external_id, name, blood_type, organ, age, location,
	medical_history, urgency, waiting_since, is_active, priority, created_at, updated_at`

func (r *recipientRepoPG) scanRecipient(row pgx.Row) (*Recipient, error) {
	var rec Recipient
	err := row.Scan(&rec.ID, &rec.ExternalID, &rec.Name, &rec.BloodType, &rec.Organ,
		&rec.Age, &rec.Location, &rec.MedicalHistory, &rec.Urgency, &rec.WaitingSince,
		&rec.IsActive, &rec.Priority, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rec, err
}

func (r *recipientRepoPG) Create(ctx context.Context, rec *Recipient) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO recipients (id, external_id, name, blood_type, organ, age, location,
			medical_history, urgency, waiting_since, is_active, priority, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.ExternalID, rec.Name, rec.BloodType, rec.Organ, rec.Age, rec.Location,
		rec.MedicalHistory, rec.Urgency, rec.WaitingSince, rec.IsActive, rec.Priority,
		rec.CreatedAt, rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *recipientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	return r.scanRecipient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recipientCols+` FROM recipients WHERE id = $1`, id))
}

func (r *recipientRepoPG) GetByExternalID(ctx context.Context, externalID string) (*Recipient, error) {
	return r.scanRecipient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recipientCols+` FROM recipients WHERE external_id = $1`, externalID))
}

func (r *recipientRepoPG) Update(ctx context.Context, rec *Recipient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE recipients SET name=$2, blood_type=$3, organ=$4, age=$5, location=$6,
			medical_history=$7, urgency=$8, waiting_since=$9, is_active=$10, priority=$11,
			updated_at=$12
		WHERE id = $1`,
		rec.ID, rec.Name, rec.BloodType, rec.Organ, rec.Age, rec.Location,
		rec.MedicalHistory, rec.Urgency, rec.WaitingSince, rec.IsActive, rec.Priority,
		rec.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recipientRepoPG) ListActive(ctx context.Context) ([]*Recipient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recipientCols+` FROM recipients WHERE is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Recipient
	for rows.Next() {
		rec, err := r.scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recipientRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Recipient, int, error) {
	query := `SELECT ` + recipientCols + ` FROM recipients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM recipients WHERE 1=1`
	var args []interface{}
	idx := 1

	if params.BloodType != "" {
		query += fmt.Sprintf(` AND blood_type = $%d`, idx)
		countQuery += fmt.Sprintf(` AND blood_type = $%d`, idx)
		args = append(args, params.BloodType)
		idx++
	}
	if params.Organ != "" {
		query += fmt.Sprintf(` AND organ = $%d`, idx)
		countQuery += fmt.Sprintf(` AND organ = $%d`, idx)
		args = append(args, params.Organ)
		idx++
	}
	if params.Location != "" {
		query += fmt.Sprintf(` AND location ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND location ILIKE $%d`, idx)
		args = append(args, "%"+strings.TrimSpace(params.Location)+"%")
		idx++
	}
	if params.MinUrgency > 0 {
		query += fmt.Sprintf(` AND urgency >= $%d`, idx)
		countQuery += fmt.Sprintf(` AND urgency >= $%d`, idx)
		args = append(args, params.MinUrgency)
		idx++
	}
	if params.Active != nil {
		query += fmt.Sprintf(` AND is_active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *params.Active)
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
	var items []*Recipient
	for rows.Next() {
		rec, err := r.scanRecipient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, nil
}
