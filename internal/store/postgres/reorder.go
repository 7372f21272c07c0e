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

// FindCandidates lists today's identified waiting tickets whose next step
// the target room cannot serve, but which hold another pending step the
// room could take instead. The promoted step per candidate is what
// BulkReorder would swap into first position.
func (s *Store) FindCandidates(ctx context.Context, roomID string) ([]models.Candidate, error) {
	if err := ensureRoomExists(ctx, s.pool, roomID); err != nil {
		return nil, err
	}

	servable, err := s.roomCapability(ctx, roomID)
	if err != nil {
		return nil, err
	}
	anyRoom, err := s.servableAnywhere(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT t.ticket_id, t.display_code, t.customer_name, t.is_priority
		FROM tickets t
		WHERE t.status = 'waiting_professional'
			AND COALESCE(t.customer_name, '') <> ''
			AND t.created_at >= date_trunc('day', now())
		ORDER BY t.is_priority DESC, t.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []models.Candidate
	var ticketIDs []string
	for rows.Next() {
		var cand models.Candidate
		var name *string
		if err := rows.Scan(&cand.TicketID, &cand.DisplayCode, &name, &cand.IsPriority); err != nil {
			return nil, err
		}
		if name != nil {
			cand.CustomerName = *name
		}
		ticketIDs = append(ticketIDs, cand.TicketID)
		candidates = append(candidates, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ticketIDs) == 0 {
		return []models.Candidate{}, nil
	}

	stepRows, err := s.pool.Query(ctx, `
		SELECT `+stepColumns+`
		FROM service_steps
		WHERE ticket_id = ANY($1)
		ORDER BY ticket_id, order_sequence ASC
	`, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()

	steps := map[string][]models.ServiceStep{}
	for stepRows.Next() {
		step, err := scanStep(stepRows)
		if err != nil {
			return nil, err
		}
		steps[step.TicketID] = append(steps[step.TicketID], step)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}

	result := []models.Candidate{}
	for _, cand := range candidates {
		ticketSteps := steps[cand.TicketID]
		first, target, ok := store.PromotionTarget(ticketSteps, servable)
		if !ok {
			continue
		}
		// Skip tickets whose first eligible step no room at all can
		// serve; a reorder would not make them dispatchable.
		if !anyRoom[first.ServiceID] {
			continue
		}
		cand.PendingSteps = store.PendingSteps(ticketSteps)
		cand.PromoteStepID = target.StepID
		result = append(result, cand)
	}
	return result, nil
}

// BulkReorder promotes, per ticket, the room-servable pending step into the
// first eligible position by swapping order_sequence values. Each ticket is
// its own transaction; a failure never aborts the rest of the batch.
func (s *Store) BulkReorder(ctx context.Context, input store.ReorderInput) ([]store.ReorderOutcome, error) {
	if err := ensureRoomExists(ctx, s.pool, input.RoomID); err != nil {
		return nil, err
	}
	servable, err := s.roomCapability(ctx, input.RoomID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]store.ReorderOutcome, 0, len(input.TicketIDs))
	for _, ticketID := range input.TicketIDs {
		outcome := s.reorderOne(ctx, ticketID, input.RoomID, input.Actor, servable)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *Store) reorderOne(ctx context.Context, ticketID, roomID, actor string, servable map[string]bool) store.ReorderOutcome {
	outcome := store.ReorderOutcome{TicketID: ticketID}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ticket, err := getTicketByID(ctx, tx, ticketID)
	if err != nil {
		outcome.Outcome = store.OutcomeFailed
		if errors.Is(err, store.ErrTicketNotFound) {
			outcome.Reason = "ticket not found"
		} else {
			outcome.Reason = err.Error()
		}
		return outcome
	}
	if ticket.Status != models.TicketWaitingProfessional {
		err = fmt.Errorf("ticket is %s", ticket.Status)
		outcome.Outcome = store.OutcomeSkipped
		outcome.Reason = err.Error()
		return outcome
	}

	rows, err := tx.Query(ctx, `
		SELECT `+stepColumns+`
		FROM service_steps
		WHERE ticket_id = $1
		ORDER BY order_sequence ASC
		FOR UPDATE
	`, ticketID)
	if err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}
	var steps []models.ServiceStep
	for rows.Next() {
		var step models.ServiceStep
		step, err = scanStep(rows)
		if err != nil {
			rows.Close()
			outcome.Outcome = store.OutcomeFailed
			outcome.Reason = err.Error()
			return outcome
		}
		steps = append(steps, step)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	first, ok := store.FirstEligible(steps)
	if !ok {
		err = errors.New("no eligible step")
		outcome.Outcome = store.OutcomeSkipped
		outcome.Reason = "no pending step eligible for dispatch"
		return outcome
	}
	if servable[first.ServiceID] {
		// Already dispatchable by this room; nothing to move and no
		// event to record.
		if err = tx.Commit(ctx); err != nil {
			outcome.Outcome = store.OutcomeFailed
			outcome.Reason = err.Error()
			return outcome
		}
		outcome.Outcome = store.OutcomeMoved
		outcome.PromotedStepID = first.StepID
		return outcome
	}
	_, target, ok := store.PromotionTarget(steps, servable)
	if !ok {
		err = errors.New("no servable step")
		outcome.Outcome = store.OutcomeSkipped
		outcome.Reason = "no pending step this room can serve"
		return outcome
	}

	// Single-statement swap; the deferred UNIQUE(ticket_id, order_sequence)
	// constraint is checked at commit, after both rows have moved.
	tag, err := tx.Exec(ctx, `
		UPDATE service_steps
		SET order_sequence = CASE step_id
				WHEN $1 THEN $2
				WHEN $3 THEN $4
			END,
			updated_at = $5
		WHERE step_id IN ($1, $3)
	`, first.StepID, target.OrderSequence, target.StepID, first.OrderSequence, time.Now().UTC())
	if err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}
	if tag.RowsAffected() != 2 {
		err = fmt.Errorf("swap touched %d rows", tag.RowsAffected())
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if err = insertStatusLog(ctx, tx, ticketID, "steps_reordered", roomID, actor, "step promoted for room"); err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}
	if err = emit(ctx, tx, ticketID, "ticket.reordered", map[string]interface{}{
		"ticket_id":        ticketID,
		"room_id":          roomID,
		"promoted_step_id": target.StepID,
		"demoted_step_id":  first.StepID,
	}); err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if err = tx.Commit(ctx); err != nil {
		outcome.Outcome = store.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}
	outcome.Outcome = store.OutcomeMoved
	outcome.PromotedStepID = target.StepID
	return outcome
}

func (s *Store) roomCapability(ctx context.Context, roomID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT service_id FROM room_services WHERE room_id = $1
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servable := map[string]bool{}
	for rows.Next() {
		var serviceID string
		if err := rows.Scan(&serviceID); err != nil {
			return nil, err
		}
		servable[serviceID] = true
	}
	return servable, rows.Err()
}

func (s *Store) servableAnywhere(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT service_id FROM room_services
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servable := map[string]bool{}
	for rows.Next() {
		var serviceID string
		if err := rows.Scan(&serviceID); err != nil {
			return nil, err
		}
		servable[serviceID] = true
	}
	return servable, rows.Err()
}
