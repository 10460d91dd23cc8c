package status

import (
	"context"

	"github.com/example/courtbook/internal/db"
	"github.com/example/courtbook/internal/domain/reservation"
)

// PostgresRepo keeps an append-only history of terminal run outcomes.
type PostgresRepo struct {
	db *db.DB
}

var _ RecordRepo = (*PostgresRepo)(nil)

func NewPostgresRepo(d *db.DB) *PostgresRepo { return &PostgresRepo{db: d} }

func (r *PostgresRepo) Save(ctx context.Context, rec reservation.RunRecord) error {
	var reason *string
	if rec.Status.Reason != "" {
		reason = &rec.Status.Reason
	}
	return db.WrapNotFound(r.db.Exec(ctx, `
INSERT INTO run_records(config_id, run_type, state, reason, recorded_at)
VALUES ($1,$2,$3,$4,$5)`,
		rec.ConfigID, string(rec.RunType), string(rec.Status.State), reason, rec.UpdatedAt))
}

// Last returns the most recent record for a config, db.ErrNotFound when the
// config has no history yet.
func (r *PostgresRepo) Last(ctx context.Context, configID string) (reservation.RunRecord, error) {
	row := r.db.QueryRow(ctx, `
SELECT config_id, run_type, state, reason, recorded_at
FROM run_records
WHERE config_id=$1
ORDER BY recorded_at DESC
LIMIT 1`, configID)

	rec, err := scanRecord(row)
	if err != nil {
		return reservation.RunRecord{}, db.WrapNotFound(err)
	}
	return rec, nil
}

// History returns the most recent records for a config, newest first.
func (r *PostgresRepo) History(ctx context.Context, configID string, limit int) ([]reservation.RunRecord, error) {
	rows, err := r.db.Query(ctx, `
SELECT config_id, run_type, state, reason, recorded_at
FROM run_records
WHERE config_id=$1
ORDER BY recorded_at DESC
LIMIT $2`, configID, limit)
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	defer rows.Close()

	var out []reservation.RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, db.WrapNotFound(err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row db.Row) (reservation.RunRecord, error) {
	var rec reservation.RunRecord
	var runType, state string
	var reason *string
	if err := row.Scan(&rec.ConfigID, &runType, &state, &reason, &rec.UpdatedAt); err != nil {
		return reservation.RunRecord{}, err
	}
	rec.RunType = reservation.RunType(runType)
	rec.Status.State = reservation.RunState(state)
	if reason != nil {
		rec.Status.Reason = *reason
	}
	return rec, nil
}
