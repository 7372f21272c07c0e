package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"visitflow/dispatch-service/internal/models"
)

type TicketEvent struct {
	TicketID  string          `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	TicketID        string     `json:"ticket_id"`
	DisplayCode     string     `json:"display_code"`
	Status          string     `json:"status"`
	CustomerName    *string    `json:"customer_name"`
	ReceptionDeskID *string    `json:"reception_desk_id"`
	CreatedAt       *time.Time `json:"created_at"`
	CalledAt        *time.Time `json:"called_at"`
	ReceivedAt      *time.Time `json:"received_at"`
	ReleasedAt      *time.Time `json:"released_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

func ComputeTicketEventHash(prevHash, ticketID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateTicket folds an event chain back into a ticket view, latest field
// value wins. Used by audit tooling to verify the journal matches the row.
func RehydrateTicket(events []TicketEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.TicketID != "" {
			ticket.TicketID = payload.TicketID
		}
		if payload.DisplayCode != "" {
			ticket.DisplayCode = payload.DisplayCode
		}
		if payload.Status != "" {
			ticket.Status = models.TicketStatus(payload.Status)
		}
		if payload.CustomerName != nil {
			ticket.CustomerName = payload.CustomerName
		}
		if payload.ReceptionDeskID != nil {
			ticket.ReceptionDeskID = payload.ReceptionDeskID
		}
		if payload.CreatedAt != nil {
			ticket.CreatedAt = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			ticket.CalledAt = payload.CalledAt
		}
		if payload.ReceivedAt != nil {
			ticket.ReceivedAt = payload.ReceivedAt
		}
		if payload.ReleasedAt != nil {
			ticket.ReleasedAt = payload.ReleasedAt
		}
		if payload.CompletedAt != nil {
			ticket.CompletedAt = payload.CompletedAt
		}
	}
	return ticket, nil
}
