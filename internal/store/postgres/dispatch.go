package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visitflow/dispatch-service/internal/models"
	"visitflow/dispatch-service/internal/store"

	"github.com/jackc/pgx/v5"
)

// CallDesk assigns a waiting ticket to a reception desk. The busy pre-check
// rejects a desk that already holds a different ticket; the conditional
// write then re-validates the ticket status, so a race that slips past the
// pre-check surfaces as zero affected rows, never as a second occupant.
func (s *Store) CallDesk(ctx context.Context, input store.CallDeskInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := replayTicket(ctx, tx, "call_desk", input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	if err = ensureDeskExists(ctx, tx, input.DeskID); err != nil {
		return models.Ticket{}, false, err
	}

	occupantID, occupantCode, busy, err := deskOccupant(ctx, tx, input.DeskID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if busy {
		if occupantID != input.TicketID {
			err = &store.StationBusyError{StationID: input.DeskID, OccupantID: occupantID, OccupantCode: occupantCode}
			return models.Ticket{}, false, err
		}
		// Re-calling the desk's own occupant is a re-announce, not a conflict.
		var ticket models.Ticket
		ticket, err = getTicketByID(ctx, tx, input.TicketID)
		if err != nil {
			return models.Ticket{}, false, err
		}
		ticket.RequestID = input.RequestID
		if err = insertActionRequest(ctx, tx, "call_desk", input.RequestID, input.TicketID, ""); err != nil {
			return models.Ticket{}, false, err
		}
		if err = emit(ctx, tx, input.TicketID, "ticket.recalled", ticketPayload(ticket)); err != nil {
			return models.Ticket{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return ticket, true, nil
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET status = 'called_reception',
			reception_desk_id = $2,
			called_at = $3
		WHERE ticket_id = $1 AND status = 'waiting_reception'
		RETURNING `+ticketColumns+`
	`, input.TicketID, input.DeskID, calledAt)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = callConflict(ctx, tx, "call_desk", input.TicketID)
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, "call_desk", input.RequestID, input.TicketID, ""); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertStatusLog(ctx, tx, input.TicketID, string(ticket.Status), input.DeskID, input.Actor, "called to desk"); err != nil {
		return models.Ticket{}, false, err
	}
	if err = emit(ctx, tx, input.TicketID, "ticket.called", ticketPayload(ticket)); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) UncallDesk(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.ticketAction(ctx, input, ticketActionSpec{
		action:    "uncall_desk",
		expected:  models.TicketCalledReception,
		eventType: "ticket.uncalled",
		note:      "returned to reception queue",
		updateSQL: `
			UPDATE tickets
			SET status = 'waiting_reception',
				reception_desk_id = NULL,
				called_at = NULL
			WHERE ticket_id = $1 AND status = 'called_reception'
			RETURNING ` + ticketColumns,
		args: []interface{}{input.TicketID},
	})
}

func (s *Store) StartReception(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.ticketAction(ctx, input, ticketActionSpec{
		action:    "start_reception",
		expected:  models.TicketCalledReception,
		eventType: "ticket.reception_started",
		note:      "reception started",
		wantDesk:  input.DeskID,
		updateSQL: `
			UPDATE tickets
			SET status = 'in_reception',
				received_at = $3
			WHERE ticket_id = $1 AND status = 'called_reception' AND reception_desk_id = $2
			RETURNING ` + ticketColumns,
		args: []interface{}{input.TicketID, input.DeskID, occurredAt(input.OccurredAt)},
	})
}

func (s *Store) FinishReception(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.ticketAction(ctx, input, ticketActionSpec{
		action:    "finish_reception",
		expected:  models.TicketInReception,
		eventType: "ticket.released",
		note:      "released to service pipeline",
		wantDesk:  input.DeskID,
		updateSQL: `
			UPDATE tickets
			SET status = 'waiting_professional',
				released_at = $3
			WHERE ticket_id = $1 AND status = 'in_reception' AND reception_desk_id = $2
			RETURNING ` + ticketColumns,
		args: []interface{}{input.TicketID, input.DeskID, occurredAt(input.OccurredAt)},
	})
}

func (s *Store) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.ticketAction(ctx, input, ticketActionSpec{
		action:    "cancel",
		expected:  models.TicketWaitingReception,
		eventType: "ticket.canceled",
		note:      input.Note,
		updateSQL: `
			UPDATE tickets
			SET status = 'canceled',
				completed_at = $2
			WHERE ticket_id = $1 AND status = 'waiting_reception'
			RETURNING ` + ticketColumns,
		args: []interface{}{input.TicketID, occurredAt(input.OccurredAt)},
	})
}

func (s *Store) NoShowTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.ticketAction(ctx, input, ticketActionSpec{
		action:    "no_show",
		expected:  models.TicketWaitingReception,
		eventType: "ticket.no_show",
		note:      input.Note,
		updateSQL: `
			UPDATE tickets
			SET status = 'no_show',
				completed_at = $2
			WHERE ticket_id = $1 AND status = 'waiting_reception'
			RETURNING ` + ticketColumns,
		args: []interface{}{input.TicketID, occurredAt(input.OccurredAt)},
	})
}

type ticketActionSpec struct {
	action    string
	expected  models.TicketStatus
	eventType string
	note      string
	wantDesk  string
	updateSQL string
	args      []interface{}
}

func (s *Store) ticketAction(ctx context.Context, input store.TicketActionInput, op ticketActionSpec) (models.Ticket, bool, error) {
	if !store.ValidTicketTransition(op.action, op.expected) {
		return models.Ticket{}, false, fmt.Errorf("unknown ticket action %q", op.action)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := replayTicket(ctx, tx, op.action, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	row := tx.QueryRow(ctx, op.updateSQL, op.args...)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ticketConflict(ctx, tx, op.action, input.TicketID, op.wantDesk, string(op.expected))
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, op.action, input.RequestID, input.TicketID, ""); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertStatusLog(ctx, tx, input.TicketID, string(ticket.Status), op.wantDesk, input.Actor, op.note); err != nil {
		return models.Ticket{}, false, err
	}
	if err = emit(ctx, tx, input.TicketID, op.eventType, ticketPayload(ticket)); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

// CallRoom assigns a pending service step to a room. Besides the room busy
// pre-check, the conditional write enforces the ticket-level gates: the
// owning ticket must be identified and waiting_professional, and no sibling
// step may already be called or in progress.
func (s *Store) CallRoom(ctx context.Context, input store.CallRoomInput) (models.ServiceStep, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := replayStep(ctx, tx, "call_room", input.RequestID)
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.ServiceStep{}, false, err
		}
		return existing, false, nil
	}

	if err = ensureRoomExists(ctx, tx, input.RoomID); err != nil {
		return models.ServiceStep{}, false, err
	}

	step, err := getStepByID(ctx, tx, input.StepID)
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	var servable bool
	servable, err = roomServes(ctx, tx, input.RoomID, step.ServiceID)
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	if !servable {
		err = store.ErrNotServable
		return models.ServiceStep{}, false, err
	}

	occupantID, occupantCode, busy, err := roomOccupant(ctx, tx, input.RoomID)
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	if busy {
		if occupantID != input.StepID {
			err = &store.StationBusyError{StationID: input.RoomID, OccupantID: occupantID, OccupantCode: occupantCode}
			return models.ServiceStep{}, false, err
		}
		step.RoomID = &input.RoomID
		if err = insertActionRequest(ctx, tx, "call_room", input.RequestID, step.TicketID, step.StepID); err != nil {
			return models.ServiceStep{}, false, err
		}
		if err = emit(ctx, tx, step.TicketID, "step.recalled", stepPayload(step)); err != nil {
			return models.ServiceStep{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.ServiceStep{}, false, err
		}
		return step, true, nil
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE service_steps
		SET status = 'called',
			room_id = $2,
			updated_at = $3
		WHERE step_id = $1 AND status = 'pending'
			AND EXISTS (
				SELECT 1 FROM tickets t
				WHERE t.ticket_id = service_steps.ticket_id
					AND t.status = 'waiting_professional'
					AND COALESCE(t.customer_name, '') <> ''
			)
			AND NOT EXISTS (
				SELECT 1 FROM service_steps o
				WHERE o.ticket_id = service_steps.ticket_id
					AND o.step_id <> service_steps.step_id
					AND o.status IN ('called', 'in_progress')
			)
			AND NOT EXISTS (
				SELECT 1 FROM service_steps p
				WHERE p.ticket_id = service_steps.ticket_id
					AND p.order_sequence < service_steps.order_sequence
					AND p.status <> 'completed'
			)
		RETURNING `+stepColumns+`
	`, input.StepID, input.RoomID, calledAt)
	updated, err := scanStep(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = callRoomConflict(ctx, tx, input.StepID)
			return models.ServiceStep{}, false, err
		}
		return models.ServiceStep{}, false, err
	}

	if err = insertActionRequest(ctx, tx, "call_room", input.RequestID, updated.TicketID, updated.StepID); err != nil {
		return models.ServiceStep{}, false, err
	}
	if err = insertStatusLog(ctx, tx, updated.TicketID, "step_called", input.RoomID, input.Actor, "step called to room"); err != nil {
		return models.ServiceStep{}, false, err
	}
	if err = emit(ctx, tx, updated.TicketID, "step.called", stepPayload(updated)); err != nil {
		return models.ServiceStep{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ServiceStep{}, false, err
	}
	return updated, true, nil
}

func (s *Store) UncallRoom(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error) {
	return s.stepAction(ctx, input, stepActionSpec{
		action:    "uncall_room",
		expected:  models.StepCalled,
		eventType: "step.uncalled",
		note:      "step returned to queue",
		updateSQL: `
			UPDATE service_steps
			SET status = 'pending',
				room_id = NULL,
				updated_at = $2
			WHERE step_id = $1 AND status = 'called'
			RETURNING ` + stepColumns,
		args: []interface{}{input.StepID, occurredAt(input.OccurredAt)},
	})
}

func (s *Store) StartService(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error) {
	return s.stepAction(ctx, input, stepActionSpec{
		action:    "start_service",
		expected:  models.StepCalled,
		eventType: "step.started",
		note:      "service started",
		wantRoom:  input.RoomID,
		updateSQL: `
			UPDATE service_steps
			SET status = 'in_progress',
				updated_at = $3
			WHERE step_id = $1 AND status = 'called' AND room_id = $2
			RETURNING ` + stepColumns,
		args: []interface{}{input.StepID, input.RoomID, occurredAt(input.OccurredAt)},
	})
}

// FinishService completes an in-progress step; when the ticket has no step
// left in any status other than completed, the ticket advances to done in
// the same transaction.
func (s *Store) FinishService(ctx context.Context, input store.StepActionInput) (store.FinishServiceResult, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.FinishServiceResult{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := replayStep(ctx, tx, "finish_service", input.RequestID)
	if err != nil {
		return store.FinishServiceResult{}, false, err
	}
	if found {
		var ticket models.Ticket
		ticket, err = getTicketByID(ctx, tx, existing.TicketID)
		if err != nil {
			return store.FinishServiceResult{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return store.FinishServiceResult{}, false, err
		}
		return store.FinishServiceResult{Step: existing, TicketDone: ticket.Status == models.TicketDone}, false, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE service_steps
		SET status = 'completed',
			updated_at = $3
		WHERE step_id = $1 AND status = 'in_progress' AND room_id = $2
		RETURNING `+stepColumns+`
	`, input.StepID, input.RoomID, occurredAt(input.OccurredAt))
	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = stepConflict(ctx, tx, "finish_service", input.StepID, input.RoomID, string(models.StepInProgress))
			return store.FinishServiceResult{}, false, err
		}
		return store.FinishServiceResult{}, false, err
	}

	var remaining int
	row = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM service_steps
		WHERE ticket_id = $1 AND status <> 'completed'
	`, step.TicketID)
	if err = row.Scan(&remaining); err != nil {
		return store.FinishServiceResult{}, false, err
	}

	ticketDone := false
	if remaining == 0 {
		doneRow := tx.QueryRow(ctx, `
			UPDATE tickets
			SET status = 'done',
				completed_at = $2
			WHERE ticket_id = $1 AND status = 'waiting_professional'
			RETURNING `+ticketColumns+`
		`, step.TicketID, occurredAt(input.OccurredAt))
		var ticket models.Ticket
		ticket, err = scanTicket(doneRow)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return store.FinishServiceResult{}, false, err
			}
			err = nil
		} else {
			ticketDone = true
			if err = insertStatusLog(ctx, tx, step.TicketID, string(ticket.Status), input.RoomID, input.Actor, "pipeline completed"); err != nil {
				return store.FinishServiceResult{}, false, err
			}
			if err = emit(ctx, tx, step.TicketID, "ticket.done", ticketPayload(ticket)); err != nil {
				return store.FinishServiceResult{}, false, err
			}
		}
	}

	if err = insertActionRequest(ctx, tx, "finish_service", input.RequestID, step.TicketID, step.StepID); err != nil {
		return store.FinishServiceResult{}, false, err
	}
	if err = insertStatusLog(ctx, tx, step.TicketID, "step_completed", input.RoomID, input.Actor, "service finished"); err != nil {
		return store.FinishServiceResult{}, false, err
	}
	if err = emit(ctx, tx, step.TicketID, "step.completed", stepPayload(step)); err != nil {
		return store.FinishServiceResult{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.FinishServiceResult{}, false, err
	}
	return store.FinishServiceResult{Step: step, TicketDone: ticketDone}, true, nil
}

type stepActionSpec struct {
	action    string
	expected  models.StepStatus
	eventType string
	note      string
	wantRoom  string
	updateSQL string
	args      []interface{}
}

func (s *Store) stepAction(ctx context.Context, input store.StepActionInput, op stepActionSpec) (models.ServiceStep, bool, error) {
	if !store.ValidStepTransition(op.action, op.expected) {
		return models.ServiceStep{}, false, fmt.Errorf("unknown step action %q", op.action)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := replayStep(ctx, tx, op.action, input.RequestID)
	if err != nil {
		return models.ServiceStep{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.ServiceStep{}, false, err
		}
		return existing, false, nil
	}

	row := tx.QueryRow(ctx, op.updateSQL, op.args...)
	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = stepConflict(ctx, tx, op.action, input.StepID, op.wantRoom, string(op.expected))
			return models.ServiceStep{}, false, err
		}
		return models.ServiceStep{}, false, err
	}

	if err = insertActionRequest(ctx, tx, op.action, input.RequestID, step.TicketID, step.StepID); err != nil {
		return models.ServiceStep{}, false, err
	}
	if err = insertStatusLog(ctx, tx, step.TicketID, "step_"+string(step.Status), op.wantRoom, input.Actor, op.note); err != nil {
		return models.ServiceStep{}, false, err
	}
	if err = emit(ctx, tx, step.TicketID, op.eventType, stepPayload(step)); err != nil {
		return models.ServiceStep{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ServiceStep{}, false, err
	}
	return step, true, nil
}

// AutoUncall returns stale called entities to their queues: reception calls
// older than grace revert to waiting_reception and room calls revert to
// pending. In-progress entities are never touched.
func (s *Store) AutoUncall(ctx context.Context, grace time.Duration, batchSize int) (int, error) {
	if grace <= 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cutoff := time.Now().UTC().Add(-grace)
	processed := 0

	rows, err := tx.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'called_reception' AND called_at <= $1
		ORDER BY called_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	var stale []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		ticket, err = scanTicket(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		stale = append(stale, ticket)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for _, ticket := range stale {
		if _, err = tx.Exec(ctx, `
			UPDATE tickets
			SET status = 'waiting_reception',
				reception_desk_id = NULL,
				called_at = NULL
			WHERE ticket_id = $1
		`, ticket.TicketID); err != nil {
			return 0, err
		}
		ticket.Status = models.TicketWaitingReception
		ticket.ReceptionDeskID = nil
		ticket.CalledAt = nil
		if err = insertStatusLog(ctx, tx, ticket.TicketID, string(ticket.Status), "", "", "auto uncall"); err != nil {
			return 0, err
		}
		if err = emit(ctx, tx, ticket.TicketID, "ticket.uncalled", ticketPayload(ticket)); err != nil {
			return 0, err
		}
		processed++
	}

	stepRows, err := tx.Query(ctx, `
		SELECT `+stepColumns+`
		FROM service_steps
		WHERE status = 'called' AND updated_at <= $1
		ORDER BY updated_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	var staleSteps []models.ServiceStep
	for stepRows.Next() {
		var step models.ServiceStep
		step, err = scanStep(stepRows)
		if err != nil {
			stepRows.Close()
			return 0, err
		}
		staleSteps = append(staleSteps, step)
	}
	stepRows.Close()
	if err = stepRows.Err(); err != nil {
		return 0, err
	}

	for _, step := range staleSteps {
		if _, err = tx.Exec(ctx, `
			UPDATE service_steps
			SET status = 'pending',
				room_id = NULL,
				updated_at = $2
			WHERE step_id = $1
		`, step.StepID, time.Now().UTC()); err != nil {
			return 0, err
		}
		step.Status = models.StepPending
		step.RoomID = nil
		if err = insertStatusLog(ctx, tx, step.TicketID, "step_pending", "", "", "auto uncall"); err != nil {
			return 0, err
		}
		if err = emit(ctx, tx, step.TicketID, "step.uncalled", stepPayload(step)); err != nil {
			return 0, err
		}
		processed++
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return processed, nil
}

func deskOccupant(ctx context.Context, tx pgx.Tx, deskID string) (string, string, bool, error) {
	var ticketID, displayCode string
	row := tx.QueryRow(ctx, `
		SELECT ticket_id, display_code
		FROM tickets
		WHERE reception_desk_id = $1 AND status IN ('called_reception', 'in_reception')
		LIMIT 1
	`, deskID)
	if err := row.Scan(&ticketID, &displayCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	return ticketID, displayCode, true, nil
}

func roomOccupant(ctx context.Context, tx pgx.Tx, roomID string) (string, string, bool, error) {
	var stepID, displayCode string
	row := tx.QueryRow(ctx, `
		SELECT s.step_id, t.display_code
		FROM service_steps s
		JOIN tickets t ON t.ticket_id = s.ticket_id
		WHERE s.room_id = $1 AND s.status IN ('called', 'in_progress')
		LIMIT 1
	`, roomID)
	if err := row.Scan(&stepID, &displayCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	return stepID, displayCode, true, nil
}

func roomServes(ctx context.Context, tx pgx.Tx, roomID, serviceID string) (bool, error) {
	var count int
	row := tx.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM room_services
		WHERE room_id = $1 AND service_id = $2
	`, roomID, serviceID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func ticketConflict(ctx context.Context, tx pgx.Tx, action, ticketID, wantDesk, expected string) error {
	ticket, err := getTicketByID(ctx, tx, ticketID)
	if err != nil {
		return err
	}
	if wantDesk != "" && ticket.ReceptionDeskID != nil && *ticket.ReceptionDeskID != wantDesk {
		return store.ErrStationMismatch
	}
	return &store.InvalidTransitionError{Entity: "ticket", Action: action, Expected: expected, Actual: string(ticket.Status)}
}

// callConflict resolves a zero-row desk call: the ticket either vanished,
// was taken by a racing call, or sits in a state the call cannot start from.
func callConflict(ctx context.Context, tx pgx.Tx, action, ticketID string) error {
	ticket, err := getTicketByID(ctx, tx, ticketID)
	if err != nil {
		return err
	}
	switch ticket.Status {
	case models.TicketCalledReception, models.TicketInReception:
		return store.ErrAlreadyInProgress
	default:
		return &store.InvalidTransitionError{Entity: "ticket", Action: action, Expected: string(models.TicketWaitingReception), Actual: string(ticket.Status)}
	}
}

func stepConflict(ctx context.Context, tx pgx.Tx, action, stepID, wantRoom, expected string) error {
	step, err := getStepByID(ctx, tx, stepID)
	if err != nil {
		return err
	}
	if wantRoom != "" && step.RoomID != nil && *step.RoomID != wantRoom {
		return store.ErrStationMismatch
	}
	return &store.InvalidTransitionError{Entity: "step", Action: action, Expected: expected, Actual: string(step.Status)}
}

// callRoomConflict resolves a zero-row room call, distinguishing a lost race
// from a gating failure on the owning ticket.
func callRoomConflict(ctx context.Context, tx pgx.Tx, stepID string) error {
	step, err := getStepByID(ctx, tx, stepID)
	if err != nil {
		return err
	}
	switch step.Status {
	case models.StepCalled, models.StepInProgress:
		return store.ErrAlreadyInProgress
	case models.StepCompleted:
		return &store.InvalidTransitionError{Entity: "step", Action: "call_room", Expected: string(models.StepPending), Actual: string(step.Status)}
	}

	ticket, err := getTicketByID(ctx, tx, step.TicketID)
	if err != nil {
		return err
	}
	if ticket.Status != models.TicketWaitingProfessional {
		return &store.InvalidTransitionError{Entity: "ticket", Action: "call_room", Expected: string(models.TicketWaitingProfessional), Actual: string(ticket.Status)}
	}
	if !ticket.Identified() {
		return store.ErrUnidentified
	}

	var active, blocked int
	row := tx.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('called', 'in_progress')),
			COUNT(*) FILTER (WHERE order_sequence < $2 AND status <> 'completed')
		FROM service_steps
		WHERE ticket_id = $1 AND step_id <> $3
	`, step.TicketID, step.OrderSequence, step.StepID)
	if err := row.Scan(&active, &blocked); err != nil {
		return err
	}
	if active > 0 {
		// A sibling step holds the ticket's one active slot.
		return store.ErrAlreadyInProgress
	}
	if blocked > 0 {
		return store.ErrNotEligible
	}
	return store.ErrAlreadyInProgress
}

func occurredAt(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}
