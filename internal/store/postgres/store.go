package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"visitflow/dispatch-service/internal/models"
	"visitflow/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const displayCodePad = 3

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const ticketColumns = `ticket_id, display_code, status, is_priority, customer_name, reception_desk_id, created_at, called_at, received_at, released_at, completed_at`

const stepColumns = `step_id, ticket_id, service_id, order_sequence, status, room_id, created_at, updated_at`

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var customerNull, deskNull sql.NullString
	var calledNull, receivedNull, releasedNull, completedNull sql.NullTime
	if err := row.Scan(&ticket.TicketID, &ticket.DisplayCode, &ticket.Status, &ticket.IsPriority, &customerNull, &deskNull, &ticket.CreatedAt, &calledNull, &receivedNull, &releasedNull, &completedNull); err != nil {
		return models.Ticket{}, err
	}
	ticket.CustomerName = nullStringPtr(customerNull)
	ticket.ReceptionDeskID = nullStringPtr(deskNull)
	ticket.CalledAt = nullTimePtr(calledNull)
	ticket.ReceivedAt = nullTimePtr(receivedNull)
	ticket.ReleasedAt = nullTimePtr(releasedNull)
	ticket.CompletedAt = nullTimePtr(completedNull)
	return ticket, nil
}

func scanStep(row pgx.Row) (models.ServiceStep, error) {
	var step models.ServiceStep
	var roomNull sql.NullString
	if err := row.Scan(&step.StepID, &step.TicketID, &step.ServiceID, &step.OrderSequence, &step.Status, &roomNull, &step.CreatedAt, &step.UpdatedAt); err != nil {
		return models.ServiceStep{}, err
	}
	step.RoomID = nullStringPtr(roomNull)
	return step, nil
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findTicketByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	if len(input.ServiceIDs) == 0 {
		err = store.ErrServiceNotFound
		return models.Ticket{}, false, err
	}
	prefix, err := lookupServiceCode(ctx, tx, input.ServiceIDs[0])
	if err != nil {
		return models.Ticket{}, false, err
	}
	for _, serviceID := range input.ServiceIDs[1:] {
		if _, err = lookupServiceCode(ctx, tx, serviceID); err != nil {
			return models.Ticket{}, false, err
		}
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	seq, err := nextDisplayNumber(ctx, tx, prefix, createdAt)
	if err != nil {
		return models.Ticket{}, false, err
	}
	displayCode := fmt.Sprintf("%s-%0*d", prefix, displayCodePad, seq)

	ticketID := uuid.NewString()
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (ticket_id, request_id, display_code, status, is_priority, customer_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+ticketColumns+`
	`, ticketID, input.RequestID, displayCode, models.TicketWaitingReception, input.IsPriority, nullIfEmpty(input.CustomerName), createdAt)
	ticket, err := scanTicket(row)
	if err != nil {
		return models.Ticket{}, false, err
	}
	ticket.RequestID = input.RequestID

	for i, serviceID := range input.ServiceIDs {
		if _, err = tx.Exec(ctx, `
			INSERT INTO service_steps (step_id, ticket_id, service_id, order_sequence, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, uuid.NewString(), ticketID, serviceID, i+1, models.StepPending, createdAt); err != nil {
			return models.Ticket{}, false, err
		}
	}

	if err = insertStatusLog(ctx, tx, ticketID, string(ticket.Status), "", input.Actor, "ticket created"); err != nil {
		return models.Ticket{}, false, err
	}
	if err = emit(ctx, tx, ticketID, "ticket.created", ticketPayload(ticket)); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, []models.ServiceStep, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, nil, store.ErrTicketNotFound
		}
		return models.Ticket{}, nil, err
	}

	steps, err := listTicketSteps(ctx, s.pool, ticketID)
	if err != nil {
		return models.Ticket{}, nil, err
	}
	return ticket, steps, nil
}

func (s *Store) IdentifyTicket(ctx context.Context, input store.IdentifyTicketInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := replayTicket(ctx, tx, "identify", input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET customer_name = $2
		WHERE ticket_id = $1 AND status NOT IN ('done', 'canceled', 'no_show')
		RETURNING `+ticketColumns+`
	`, input.TicketID, input.CustomerName)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ticketConflict(ctx, tx, "identify", input.TicketID, "", "an active status")
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, "identify", input.RequestID, input.TicketID, ""); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertStatusLog(ctx, tx, input.TicketID, string(ticket.Status), "", input.Actor, "customer linked"); err != nil {
		return models.Ticket{}, false, err
	}
	if err = emit(ctx, tx, input.TicketID, "ticket.identified", ticketPayload(ticket)); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ListReceptionQueue(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'waiting_reception' AND created_at::date = CURRENT_DATE
		ORDER BY is_priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListEligibleQueue recomputes the room's queue from current step state on
// every call: pending steps servable by the room, owned by an identified
// ticket in waiting_professional, with every lower-sequence sibling
// completed, restricted to today's working set.
func (s *Store) ListEligibleQueue(ctx context.Context, roomID string) ([]models.QueueEntry, error) {
	if err := ensureRoomExists(ctx, s.pool, roomID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT s.step_id, s.ticket_id, t.display_code, t.customer_name, s.service_id, s.order_sequence, t.is_priority, s.created_at
		FROM service_steps s
		JOIN tickets t ON t.ticket_id = s.ticket_id
		WHERE s.status = 'pending'
			AND s.service_id IN (SELECT service_id FROM room_services WHERE room_id = $1)
			AND t.status = 'waiting_professional'
			AND COALESCE(t.customer_name, '') <> ''
			AND s.created_at::date = CURRENT_DATE
			AND NOT EXISTS (
				SELECT 1 FROM service_steps p
				WHERE p.ticket_id = s.ticket_id
					AND p.order_sequence < s.order_sequence
					AND p.status <> 'completed'
			)
		ORDER BY t.is_priority DESC, s.created_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		if err := rows.Scan(&entry.StepID, &entry.TicketID, &entry.DisplayCode, &entry.CustomerName, &entry.ServiceID, &entry.OrderSequence, &entry.IsPriority, &entry.StepCreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ActiveDeskTicket(ctx context.Context, deskID string) (models.Ticket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE reception_desk_id = $1 AND status IN ('called_reception', 'in_reception')
		ORDER BY called_at DESC
		LIMIT 1
	`, deskID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ActiveRoomStep(ctx context.Context, roomID string) (models.ServiceStep, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+stepColumns+`
		FROM service_steps
		WHERE room_id = $1 AND status IN ('called', 'in_progress')
		ORDER BY updated_at DESC
		LIMIT 1
	`, roomID)
	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ServiceStep{}, false, nil
		}
		return models.ServiceStep{}, false, err
	}
	return step, true, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.room_id, r.name, COALESCE(array_agg(rs.service_id) FILTER (WHERE rs.service_id IS NOT NULL), '{}')
		FROM rooms r
		LEFT JOIN room_services rs ON rs.room_id = r.room_id
		GROUP BY r.room_id, r.name
		ORDER BY r.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.RoomID, &room.Name, &room.ServiceIDs); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Store) ListDesks(ctx context.Context) ([]models.Desk, error) {
	rows, err := s.pool.Query(ctx, `SELECT desk_id, name FROM desks ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var desks []models.Desk
	for rows.Next() {
		var desk models.Desk
		if err := rows.Scan(&desk.DeskID, &desk.Name); err != nil {
			return nil, err
		}
		desks = append(desks, desk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return desks, nil
}

func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := s.pool.Query(ctx, `SELECT service_id, name, code FROM services ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ServiceID, &svc.Name, &svc.Code); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
	`
	args := []interface{}{}
	if !after.IsZero() {
		query += " WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.TicketEvent
	for rows.Next() {
		var event store.TicketEvent
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func lookupServiceCode(ctx context.Context, tx pgx.Tx, serviceID string) (string, error) {
	var code string
	row := tx.QueryRow(ctx, `SELECT code FROM services WHERE service_id = $1`, serviceID)
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrServiceNotFound
		}
		return "", err
	}
	return code, nil
}

// nextDisplayNumber allocates the next sequential number for a display-code
// prefix; the sequence resets daily so codes are unique per day per prefix.
func nextDisplayNumber(ctx context.Context, tx pgx.Tx, prefix string, at time.Time) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO display_sequences (code, day, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (code, day)
		DO UPDATE SET next_number = display_sequences.next_number + 1
		RETURNING next_number
	`, prefix, at.UTC().Truncate(24*time.Hour))
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func ensureRoomExists(ctx context.Context, q querier, roomID string) error {
	var id string
	row := q.QueryRow(ctx, `SELECT room_id FROM rooms WHERE room_id = $1`, roomID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrRoomNotFound
		}
		return err
	}
	return nil
}

func ensureDeskExists(ctx context.Context, tx pgx.Tx, deskID string) error {
	var id string
	row := tx.QueryRow(ctx, `SELECT desk_id FROM desks WHERE desk_id = $1`, deskID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrDeskNotFound
		}
		return err
	}
	return nil
}

func findTicketByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Ticket, bool, error) {
	row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE request_id = $1`, requestID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = requestID
	return ticket, true, nil
}

func getTicketByID(ctx context.Context, q querier, ticketID string) (models.Ticket, error) {
	row := q.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func getStepByID(ctx context.Context, q querier, stepID string) (models.ServiceStep, error) {
	row := q.QueryRow(ctx, `SELECT `+stepColumns+` FROM service_steps WHERE step_id = $1`, stepID)
	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ServiceStep{}, store.ErrStepNotFound
		}
		return models.ServiceStep{}, err
	}
	return step, nil
}

func listTicketSteps(ctx context.Context, q querier, ticketID string) ([]models.ServiceStep, error) {
	rows, err := q.Query(ctx, `
		SELECT `+stepColumns+`
		FROM service_steps
		WHERE ticket_id = $1
		ORDER BY order_sequence ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []models.ServiceStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}
