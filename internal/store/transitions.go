package store

import "visitflow/dispatch-service/internal/models"

var ticketTransitions = map[string][]models.TicketStatus{
	"call_desk":        {models.TicketWaitingReception},
	"uncall_desk":      {models.TicketCalledReception},
	"start_reception":  {models.TicketCalledReception},
	"finish_reception": {models.TicketInReception},
	"cancel":           {models.TicketWaitingReception},
	"no_show":          {models.TicketWaitingReception},
	"finish_pipeline":  {models.TicketWaitingProfessional},
}

var stepTransitions = map[string][]models.StepStatus{
	"call_room":      {models.StepPending},
	"uncall_room":    {models.StepCalled},
	"start_service":  {models.StepCalled},
	"finish_service": {models.StepInProgress},
}

func ValidTicketTransition(action string, from models.TicketStatus) bool {
	allowed, ok := ticketTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

func ValidStepTransition(action string, from models.StepStatus) bool {
	allowed, ok := stepTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
