package storage

import (
	"context"
	"fmt"
)

// AppendAuditEntry writes one audit record. The table is append-only;
// there is no update or delete path.
func (s *SQLiteStorage) AppendAuditEntry(ctx context.Context, entry *AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, kind, action, subject_id, subject_name, service, performed_by, timestamp, ip_address, user_agent, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Kind, entry.Action, entry.SubjectID, entry.SubjectName,
		entry.Service, entry.PerformedBy, entry.Timestamp, entry.IPAddress,
		entry.UserAgent, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns audit records matching the filter, newest first.
// Returns empty slice if nothing matches.
func (s *SQLiteStorage) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	query := `SELECT id, kind, action, subject_id, subject_name, service, performed_by, timestamp, ip_address, user_agent, details
		 FROM audit_log WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if !filter.From.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.To)
	}

	query += " ORDER BY timestamp DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(&e.ID, &e.Kind, &e.Action, &e.SubjectID, &e.SubjectName,
			&e.Service, &e.PerformedBy, &e.Timestamp, &e.IPAddress, &e.UserAgent, &e.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	if entries == nil {
		entries = make([]*AuditEntry, 0)
	}

	return entries, nil
}
