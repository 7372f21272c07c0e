package models

import "time"

// TicketStatus is the closed set of ticket lifecycle states. Tickets move
// forward along the reception pipeline one state at a time; canceled and
// no_show are early exits from waiting_reception.
type TicketStatus string

const (
	TicketWaitingReception    TicketStatus = "waiting_reception"
	TicketCalledReception     TicketStatus = "called_reception"
	TicketInReception         TicketStatus = "in_reception"
	TicketWaitingProfessional TicketStatus = "waiting_professional"
	TicketDone                TicketStatus = "done"
	TicketCanceled            TicketStatus = "canceled"
	TicketNoShow              TicketStatus = "no_show"
)

type Ticket struct {
	TicketID        string       `json:"ticket_id"`
	DisplayCode     string       `json:"display_code"`
	Status          TicketStatus `json:"status"`
	IsPriority      bool         `json:"is_priority"`
	CustomerName    *string      `json:"customer_name,omitempty"`
	ReceptionDeskID *string      `json:"reception_desk_id,omitempty"`
	RequestID       string       `json:"request_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	CalledAt        *time.Time   `json:"called_at,omitempty"`
	ReceivedAt      *time.Time   `json:"received_at,omitempty"`
	ReleasedAt      *time.Time   `json:"released_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

// Identified reports whether a customer has been linked to the ticket.
// Unidentified tickets never enter a room queue.
func (t Ticket) Identified() bool {
	return t.CustomerName != nil && *t.CustomerName != ""
}
