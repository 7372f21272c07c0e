package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"visitflow/dispatch-service/internal/models"
	"visitflow/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func ticketPayload(ticket models.Ticket) map[string]interface{} {
	return map[string]interface{}{
		"ticket_id":         ticket.TicketID,
		"display_code":      ticket.DisplayCode,
		"status":            ticket.Status,
		"is_priority":       ticket.IsPriority,
		"customer_name":     ticket.CustomerName,
		"reception_desk_id": ticket.ReceptionDeskID,
		"created_at":        ticket.CreatedAt,
		"called_at":         ticket.CalledAt,
		"received_at":       ticket.ReceivedAt,
		"released_at":       ticket.ReleasedAt,
		"completed_at":      ticket.CompletedAt,
	}
}

func stepPayload(step models.ServiceStep) map[string]interface{} {
	return map[string]interface{}{
		"step_id":        step.StepID,
		"ticket_id":      step.TicketID,
		"service_id":     step.ServiceID,
		"order_sequence": step.OrderSequence,
		"status":         step.Status,
		"room_id":        step.RoomID,
		"updated_at":     step.UpdatedAt,
	}
}

// emit writes the outbox row and the hash-chained ticket event in the same
// transaction as the mutation they describe.
func emit(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertTicketEvent(ctx, tx, ticketID, eventType, payloadJSON)
}

func insertTicketEvent(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticketID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_seq, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq DESC
		LIMIT 1
		FOR UPDATE
	`, ticketID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := time.Now().UTC()
	hash := store.ComputeTicketEventHash(prev, ticketID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticketID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

func insertStatusLog(ctx context.Context, tx pgx.Tx, ticketID, status, stationID, actor, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO status_logs (log_id, ticket_id, status, station_id, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), ticketID, status, nullIfEmpty(stationID), nullIfEmpty(actor), nullIfEmpty(note), time.Now().UTC())
	return err
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, ticketID, stepID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO action_requests (request_id, action, ticket_id, step_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, nullIfEmpty(ticketID), nullIfEmpty(stepID))
	return err
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (string, string, bool, error) {
	var ticketID sql.NullString
	var stepID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_id, step_id
		FROM action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&ticketID, &stepID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	return ticketID.String, stepID.String, true, nil
}

// replayTicket resolves a duplicate request id for a ticket action to the
// ticket it already acted on.
func replayTicket(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Ticket, bool, error) {
	ticketID, _, found, err := findActionRequest(ctx, tx, action, requestID)
	if err != nil || !found {
		return models.Ticket{}, false, err
	}
	ticket, err := getTicketByID(ctx, tx, ticketID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	ticket.RequestID = requestID
	return ticket, true, nil
}

func replayStep(ctx context.Context, tx pgx.Tx, action, requestID string) (models.ServiceStep, bool, error) {
	_, stepID, found, err := findActionRequest(ctx, tx, action, requestID)
	if err != nil || !found {
		return models.ServiceStep{}, false, err
	}
	step, err := getStepByID(ctx, tx, stepID)
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	return step, true, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
