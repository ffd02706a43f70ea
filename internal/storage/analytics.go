package storage

import (
	"context"
	"fmt"
)

// RecordVerification increments the day bucket for one verification
// attempt. The upsert makes the read-modify-write atomic, so concurrent
// requests never lose an increment and total == successful + failed holds.
func (s *SQLiteStorage) RecordVerification(ctx context.Context, date string, success bool) error {
	successInc := 0
	failedInc := 0
	if success {
		successInc = 1
	} else {
		failedInc = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_analytics (date, total, successful, failed)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			total = total + 1,
			successful = successful + excluded.successful,
			failed = failed + excluded.failed`,
		date, successInc, failedInc)
	if err != nil {
		return fmt.Errorf("failed to record verification: %w", err)
	}

	return nil
}

// ListAnalytics returns day buckets in [from, to], newest first.
// Empty bounds are open. Returns empty slice if nothing matches.
func (s *SQLiteStorage) ListAnalytics(ctx context.Context, from, to string) ([]*AnalyticsBucket, error) {
	query := "SELECT date, total, successful, failed FROM verification_analytics WHERE 1=1"
	var args []any

	if from != "" {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND date <= ?"
		args = append(args, to)
	}

	query += " ORDER BY date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var buckets []*AnalyticsBucket
	for rows.Next() {
		var b AnalyticsBucket
		if err := rows.Scan(&b.Date, &b.Total, &b.Successful, &b.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}
		buckets = append(buckets, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analytics: %w", err)
	}

	if buckets == nil {
		buckets = make([]*AnalyticsBucket, 0)
	}

	return buckets, nil
}
