package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stockroom/internal/core"
)

const auditColumns = `id, workflow, record_id, action, old_values, new_values,
	actor_id, batch_id, ip_address, user_agent, created_at`

func insertAudit(ctx context.Context, db DBTX, e *core.AuditEntry) error {
	id, ok := toPgUUID(e.ID)
	if !ok {
		return fmt.Errorf("insert audit: invalid id %q", e.ID)
	}
	recordID, ok := toPgUUID(e.RecordID)
	if !ok {
		return fmt.Errorf("insert audit: invalid record id %q", e.RecordID)
	}
	batchID, _ := toPgUUID(e.BatchID)

	oldValues, err := marshalSnapshot(e.OldValues)
	if err != nil {
		return fmt.Errorf("insert audit: old values: %w", err)
	}
	newValues, err := marshalSnapshot(e.NewValues)
	if err != nil {
		return fmt.Errorf("insert audit: new values: %w", err)
	}

	var ip *netip.Addr
	if addr, err := netip.ParseAddr(e.IPAddress); err == nil {
		ip = &addr
	}

	_, err = db.Exec(ctx, `INSERT INTO audit_log (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, e.Workflow, recordID, string(e.Action), oldValues, newValues,
		e.ActorID, batchID, ip, toPgText(e.UserAgent), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// QueryAudit returns matching entries newest first.
func (s *Store) QueryAudit(ctx context.Context, filter core.AuditFilter) ([]core.AuditEntry, error) {
	filter = filter.Normalize()

	wb := newWhereBuilder()
	wb.Add("workflow", filter.Workflow)
	wb.Add("action", string(filter.Action))
	wb.Add("actor_id", filter.ActorID)
	wb.AddTimeRange("created_at", filter.From, filter.To)
	where, args := wb.Build()

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM audit_log%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		auditColumns, where, len(args)-1, len(args))

	return s.queryAudit(ctx, query, args...)
}

// RecordHistory returns every entry for one record, newest first.
func (s *Store) RecordHistory(ctx context.Context, workflow, recordID string) ([]core.AuditEntry, error) {
	id, ok := toPgUUID(recordID)
	if !ok {
		return []core.AuditEntry{}, nil
	}
	return s.queryAudit(ctx, `SELECT `+auditColumns+` FROM audit_log
		WHERE workflow = $1 AND record_id = $2
		ORDER BY created_at DESC, id DESC`, workflow, id)
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]core.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []core.AuditEntry{}
	for rows.Next() {
		entry, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// scanAuditRow scans a single row from audit_log into an AuditEntry.
func scanAuditRow(rows pgx.Rows) (*core.AuditEntry, error) {
	var (
		id        pgtype.UUID
		workflow  string
		recordID  pgtype.UUID
		action    string
		oldValues []byte
		newValues []byte
		actorID   string
		batchID   pgtype.UUID
		ipAddress *netip.Addr
		userAgent pgtype.Text
		createdAt pgtype.Timestamptz
	)

	err := rows.Scan(
		&id, &workflow, &recordID, &action, &oldValues, &newValues,
		&actorID, &batchID, &ipAddress, &userAgent, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	entry := &core.AuditEntry{
		ID:        pgUUIDToString(id),
		ActorID:   actorID,
		Workflow:  workflow,
		RecordID:  pgUUIDToString(recordID),
		Action:    core.AuditAction(action),
		BatchID:   pgUUIDToString(batchID),
		Timestamp: createdAt.Time.UTC(),
	}
	if ipAddress != nil {
		entry.IPAddress = ipAddress.String()
	}
	if userAgent.Valid {
		entry.UserAgent = userAgent.String
	}
	if oldValues != nil {
		if err := json.Unmarshal(oldValues, &entry.OldValues); err != nil {
			return nil, fmt.Errorf("decode old values: %w", err)
		}
	}
	if newValues != nil {
		if err := json.Unmarshal(newValues, &entry.NewValues); err != nil {
			return nil, fmt.Errorf("decode new values: %w", err)
		}
	}
	return entry, nil
}

// marshalSnapshot encodes a snapshot for a jsonb column; nil stays NULL.
func marshalSnapshot(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
