package match

import (
	"context"
	"errors"
	"fmt"

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

type matchRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) MatchRepository {
	return &matchRepoPG{pool: pool}
}

func (r *matchRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const matchCols = `id, donor_id, recipient_id, organ, blood_type, urgency,
	match_score, compat_blood, compat_organ, compat_location, compat_age,
	priority, status, created_at, last_updated`

func (r *matchRepoPG) scanMatch(row pgx.Row) (*Match, error) {
	var m Match
	err := row.Scan(&m.ID, &m.DonorID, &m.RecipientID, &m.Organ, &m.BloodType,
		&m.Urgency, &m.MatchScore,
		&m.Compatibility.BloodType, &m.Compatibility.Organ,
		&m.Compatibility.Location, &m.Compatibility.Age,
		&m.Priority, &m.Status, &m.CreatedAt, &m.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *matchRepoPG) Insert(ctx context.Context, m *Match) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	// The unique constraint on (donor_id, recipient_id) makes the dedup
	// check atomic under concurrent registrations.
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO matches (id, donor_id, recipient_id, organ, blood_type, urgency,
			match_score, compat_blood, compat_organ, compat_location, compat_age,
			priority, status, created_at, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (donor_id, recipient_id) DO NOTHING`,
		m.ID, m.DonorID, m.RecipientID, m.Organ, m.BloodType, m.Urgency,
		m.MatchScore, m.Compatibility.BloodType, m.Compatibility.Organ,
		m.Compatibility.Location, m.Compatibility.Age,
		m.Priority, m.Status, m.CreatedAt, m.LastUpdated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyMatched
	}
	return nil
}

func (r *matchRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Match, error) {
	return r.scanMatch(r.conn(ctx).QueryRow(ctx, `SELECT `+matchCols+` FROM matches WHERE id = $1`, id))
}

func (r *matchRepoPG) GetByPair(ctx context.Context, donorID, recipientID uuid.UUID) (*Match, error) {
	return r.scanMatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+matchCols+` FROM matches WHERE donor_id = $1 AND recipient_id = $2`,
		donorID, recipientID))
}

func (r *matchRepoPG) Update(ctx context.Context, m *Match) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE matches SET status=$2, last_updated=$3 WHERE id = $1`,
		m.ID, m.Status, m.LastUpdated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *matchRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Match, int, error) {
	query := `SELECT ` + matchCols + ` FROM matches WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM matches WHERE 1=1`
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
	if params.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, params.Status)
		idx++
	}
	if params.MinUrgency > 0 {
		query += fmt.Sprintf(` AND urgency >= $%d`, idx)
		countQuery += fmt.Sprintf(` AND urgency >= $%d`, idx)
		args = append(args, params.MinUrgency)
		idx++
	}
	if params.ParticipantID != uuid.Nil {
		query += fmt.Sprintf(` AND (donor_id = $%d OR recipient_id = $%d)`, idx, idx)
		countQuery += fmt.Sprintf(` AND (donor_id = $%d OR recipient_id = $%d)`, idx, idx)
		args = append(args, params.ParticipantID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY priority DESC, match_score DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Match
	for rows.Next() {
		m, err := r.scanMatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

func (r *matchRepoPG) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM matches GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *matchRepoPG) Clear(ctx context.Context) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM matches`)
	return err
}
