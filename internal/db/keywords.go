package db

import (
	"context"
	"fmt"
	"time"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// InsertKeywords inserts all records in one transaction: either every row is
// written or none is. IDs and creation times are filled in on recs.
func (d *DB) InsertKeywords(ctx context.Context, recs []models.KeywordRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	if err := prepareRecords(recs, time.Now()); err != nil {
		return 0, err
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := insertKeywordSQL(dialectPostgres)
	for i := range recs {
		if _, err := tx.Exec(ctx, query, keywordArgs(&recs[i])...); err != nil {
			return 0, fmt.Errorf("failed to insert keyword %q: %w", recs[i].Keyword, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit keywords: %w", err)
	}
	return len(recs), nil
}

// ListKeywords returns one page of keyword rows and the total match count.
func (d *DB) ListKeywords(ctx context.Context, q KeywordQuery) (*models.KeywordPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	listSQL, countSQL, args := listKeywordSQL(dialectPostgres, q)

	page := &models.KeywordPage{Page: q.Page, PageSize: q.PageSize, Keywords: []models.KeywordRecord{}}
	if err := d.Pool.QueryRow(ctx, countSQL, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count keywords: %w", err)
	}

	rows, err := d.Pool.Query(ctx, listSQL, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.KeywordRecord
		if err := scanKeyword(rows, &rec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		page.Keywords = append(page.Keywords, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	return page, nil
}

// CountByIntent returns the number of rows per intent; rows without an intent
// are counted under "".
func (d *DB) CountByIntent(ctx context.Context) (map[string]int64, error) {
	rows, err := d.Pool.Query(ctx, countByIntentSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to count keywords by intent: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var intent string
		var n int64
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, err
		}
		counts[intent] = n
	}
	return counts, rows.Err()
}
