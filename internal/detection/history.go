package detection

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepository handles detection_history PostgreSQL operations.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Insert persists one completed detection. Rows are never updated.
func (r *HistoryRepository) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO detection_history
		   (id, user_id, source, file_name, result, confidence, text_preview,
		    text_length, word_count, processing_time_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.UserID, rec.Source, rec.FileName, rec.Result, rec.Confidence,
		rec.TextPreview, rec.TextLength, rec.WordCount, rec.ProcessingTimeMS)
	if err != nil {
		return fmt.Errorf("inserting detection record: %w", err)
	}
	return nil
}

// ListParams filters and paginates a history listing.
type ListParams struct {
	Source   Source
	Result   Result
	Page     int
	PageSize int
}

// ListByUser returns the user's detections, newest first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]Record, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	where := "user_id = $1"
	args := []any{userID}
	argIdx := 2

	if params.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.Result != "" {
		where += fmt.Sprintf(" AND result = $%d", argIdx)
		args = append(args, params.Result)
		argIdx++
	}

	var totalCount int64
	countQuery := "SELECT COUNT(*) FROM detection_history WHERE " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting detection records: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(
		`SELECT id, user_id, source, file_name, result, confidence, text_preview,
		        text_length, word_count, processing_time_ms, created_at
		 FROM detection_history WHERE %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying detection records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Source, &rec.FileName, &rec.Result,
			&rec.Confidence, &rec.TextPreview, &rec.TextLength, &rec.WordCount,
			&rec.ProcessingTimeMS, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning detection record: %w", err)
		}
		// API listings show the short preview.
		rec.TextPreview = truncate(rec.TextPreview, responsePreviewLength)
		records = append(records, rec)
	}

	return records, totalCount, nil
}

// StatsByUser aggregates the user's full history.
func (r *HistoryRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE result = 'ai_generated'),
		        COUNT(*) FILTER (WHERE result = 'human_written'),
		        COUNT(*) FILTER (WHERE result = 'uncertain'),
		        COALESCE(AVG(confidence), 0)
		 FROM detection_history WHERE user_id = $1`, userID,
	).Scan(&s.TotalDetections, &s.AIGenerated, &s.HumanWritten, &s.Uncertain, &s.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("aggregating detection stats: %w", err)
	}
	return &s, nil
}

// DeleteByUser bulk-deletes the user's history and returns the row count.
func (r *HistoryRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM detection_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting detection records: %w", err)
	}
	return tag.RowsAffected(), nil
}
