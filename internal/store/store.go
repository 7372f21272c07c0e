package store

import (
	"context"
	"encoding/json"
	"time"

	"visitflow/dispatch-service/internal/models"
)

type CreateTicketInput struct {
	RequestID    string
	CustomerName string
	IsPriority   bool
	ServiceIDs   []string
	Actor        string
	CreatedAt    time.Time
}

type IdentifyTicketInput struct {
	RequestID    string
	TicketID     string
	CustomerName string
	Actor        string
}

type CallDeskInput struct {
	RequestID string
	TicketID  string
	DeskID    string
	Actor     string
	CalledAt  time.Time
}

type TicketActionInput struct {
	RequestID  string
	TicketID   string
	DeskID     string
	Actor      string
	Note       string
	OccurredAt time.Time
}

type CallRoomInput struct {
	RequestID string
	StepID    string
	RoomID    string
	Actor     string
	CalledAt  time.Time
}

type StepActionInput struct {
	RequestID  string
	StepID     string
	RoomID     string
	Actor      string
	OccurredAt time.Time
}

type ReorderInput struct {
	RequestID string
	TicketIDs []string
	RoomID    string
	Actor     string
}

type FinishServiceResult struct {
	Step       models.ServiceStep `json:"step"`
	TicketDone bool               `json:"ticket_done"`
}

const (
	OutcomeMoved   = "moved"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

type ReorderOutcome struct {
	TicketID       string `json:"ticket_id"`
	Outcome        string `json:"outcome"`
	Reason         string `json:"reason,omitempty"`
	PromotedStepID string `json:"promoted_step_id,omitempty"`
}

// DispatchStore is the transactional pipeline store. Mutating calls return a
// second bool reporting whether the write was applied; false means the
// request id was a replay and the recorded result was returned instead.
type DispatchStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, []models.ServiceStep, error)
	IdentifyTicket(ctx context.Context, input IdentifyTicketInput) (models.Ticket, bool, error)

	ListReceptionQueue(ctx context.Context) ([]models.Ticket, error)
	CallDesk(ctx context.Context, input CallDeskInput) (models.Ticket, bool, error)
	UncallDesk(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	StartReception(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	FinishReception(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	CancelTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	NoShowTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)

	ListEligibleQueue(ctx context.Context, roomID string) ([]models.QueueEntry, error)
	CallRoom(ctx context.Context, input CallRoomInput) (models.ServiceStep, bool, error)
	UncallRoom(ctx context.Context, input StepActionInput) (models.ServiceStep, bool, error)
	StartService(ctx context.Context, input StepActionInput) (models.ServiceStep, bool, error)
	FinishService(ctx context.Context, input StepActionInput) (FinishServiceResult, bool, error)

	FindCandidates(ctx context.Context, roomID string) ([]models.Candidate, error)
	BulkReorder(ctx context.Context, input ReorderInput) ([]ReorderOutcome, error)

	ActiveDeskTicket(ctx context.Context, deskID string) (models.Ticket, bool, error)
	ActiveRoomStep(ctx context.Context, roomID string) (models.ServiceStep, bool, error)

	ListRooms(ctx context.Context) ([]models.Room, error)
	ListDesks(ctx context.Context) ([]models.Desk, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error)
	ListTicketEvents(ctx context.Context, ticketID string) ([]TicketEvent, error)
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
