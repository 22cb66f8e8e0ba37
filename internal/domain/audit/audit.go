package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Migiro-Johans/HRS/internal/domain/payroll"
)

type Event struct {
	ID         string          `json:"id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Filter struct {
	Action     string
	EntityType string
	Actor      string
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, actor, action, entityType, entityID string, details any) error {
	var detailsJSON []byte
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (actor, action, entity_type, entity_id, details)
    VALUES ($1,$2,$3,$4,$5)
  `, actor, action, entityType, entityID, detailsJSON)
	return err
}

// PayrollTransition records a payroll status change. Delivery is
// fire-and-forget: a failed write is logged, never propagated, so an
// audit outage cannot block a payroll run.
func (s *Service) PayrollTransition(ctx context.Context, event payroll.TransitionEvent) {
	details := map[string]any{
		"from": event.From,
		"to":   event.To,
		"at":   event.At.UTC().Format(time.RFC3339),
	}
	if err := s.Record(ctx, event.Actor, "payroll.status_changed", "payroll_period", event.PeriodID, details); err != nil {
		slog.Warn("audit payroll transition failed", "period", event.PeriodID, "err", err)
	}
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := s.buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	query, args := s.buildBaseQuery("SELECT id, actor, action, entity_type, entity_id, details, created_at", filter)
	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitPos, offsetPos)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.Actor, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.Details, &evt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *Service) buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE TRUE"
	var args []any
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.Actor != "" {
		query += fmt.Sprintf(" AND actor = $%d", len(args)+1)
		args = append(args, filter.Actor)
	}
	return query, args
}
