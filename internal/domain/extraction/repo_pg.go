package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type extractionRepoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &extractionRepoPG{db: pool}
}

const extractionCols = `id, document_hash, patient_ref, engine_id, engine_version,
	value_count, overall_confidence, requires_attention, extracted_at,
	result, created_by, created_at`

func (r *extractionRepoPG) scan(row pgx.Row) (*Extraction, error) {
	var e Extraction
	var result []byte
	err := row.Scan(&e.ID, &e.DocumentHash, &e.PatientRef, &e.EngineID, &e.EngineVersion,
		&e.ValueCount, &e.OverallConfidence, &e.RequiresAttention, &e.ExtractedAt,
		&result, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(result, &e.Result); err != nil {
		return nil, fmt.Errorf("decode result of extraction %s: %w", e.ID, err)
	}
	return &e, nil
}

func (r *extractionRepoPG) Create(ctx context.Context, e *Extraction) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	result, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO lab_extraction (id, document_hash, patient_ref, engine_id, engine_version,
			value_count, overall_confidence, requires_attention, extracted_at, result, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		e.ID, e.DocumentHash, e.PatientRef, e.EngineID, e.EngineVersion,
		e.ValueCount, e.OverallConfidence, e.RequiresAttention, e.ExtractedAt, result, e.CreatedBy,
	).Scan(&e.CreatedAt)
}

func (r *extractionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+extractionCols+` FROM lab_extraction WHERE id = $1`, id))
}

func (r *extractionRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Extraction, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientRef != "" {
		where += fmt.Sprintf(` AND patient_ref = $%d`, idx)
		args = append(args, f.PatientRef)
		idx++
	}
	if f.EngineID != "" {
		where += fmt.Sprintf(` AND engine_id = $%d`, idx)
		args = append(args, f.EngineID)
		idx++
	}
	if f.RequiresAttention != nil {
		where += fmt.Sprintf(` AND requires_attention = $%d`, idx)
		args = append(args, *f.RequiresAttention)
		idx++
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM lab_extraction`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + extractionCols + ` FROM lab_extraction` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *extractionRepoPG) ListByDocument(ctx context.Context, documentHash string) ([]*Extraction, error) {
	return r.query(ctx, `SELECT `+extractionCols+` FROM lab_extraction WHERE document_hash = $1 ORDER BY created_at DESC`, documentHash)
}

func (r *extractionRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Extraction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Extraction{}
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
