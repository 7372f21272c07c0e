package models

import "time"

// StepStatus is the closed set of service step states. The only backward
// edge is called -> pending (uncall).
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepCalled     StepStatus = "called"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

type ServiceStep struct {
	StepID        string     `json:"step_id"`
	TicketID      string     `json:"ticket_id"`
	ServiceID     string     `json:"service_id"`
	OrderSequence int        `json:"order_sequence"`
	Status        StepStatus `json:"status"`
	RoomID        *string    `json:"room_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QueueEntry is one row of a room's eligible queue: a pending step that is
// next in its ticket's pipeline and servable by the room.
type QueueEntry struct {
	StepID        string    `json:"step_id"`
	TicketID      string    `json:"ticket_id"`
	DisplayCode   string    `json:"display_code"`
	CustomerName  string    `json:"customer_name"`
	ServiceID     string    `json:"service_id"`
	OrderSequence int       `json:"order_sequence"`
	IsPriority    bool      `json:"is_priority"`
	StepCreatedAt time.Time `json:"step_created_at"`
}

// Candidate is a ticket that could be pulled into a target room's queue by
// promoting one of its later pending steps ahead of the current
// first-eligible one.
type Candidate struct {
	TicketID      string        `json:"ticket_id"`
	DisplayCode   string        `json:"display_code"`
	CustomerName  string        `json:"customer_name"`
	IsPriority    bool          `json:"is_priority"`
	PendingSteps  []ServiceStep `json:"pending_steps"`
	PromoteStepID string        `json:"promote_step_id"`
}
