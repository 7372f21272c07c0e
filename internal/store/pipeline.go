package store

import (
	"sort"

	"visitflow/dispatch-service/internal/models"
)

// FirstEligible returns the step that is next in the ticket's pipeline: the
// lowest order_sequence pending step with no incomplete predecessor. A
// called or in-progress step blocks everything behind it, and sequences are
// not assumed contiguous (steps may have been removed).
func FirstEligible(steps []models.ServiceStep) (models.ServiceStep, bool) {
	ordered := sortedBySequence(steps)
	for _, step := range ordered {
		switch step.Status {
		case models.StepCompleted:
			continue
		case models.StepPending:
			return step, true
		default:
			return models.ServiceStep{}, false
		}
	}
	return models.ServiceStep{}, false
}

// PromotionTarget picks the step to promote for a target room: the lowest
// order_sequence pending step whose service the room serves, excluding the
// current first-eligible step. ok is false when the ticket has no eligible
// step, when its first-eligible step is already servable by the room (no
// promotion needed), or when no other pending step fits the room.
func PromotionTarget(steps []models.ServiceStep, servable map[string]bool) (first, target models.ServiceStep, ok bool) {
	first, ok = FirstEligible(steps)
	if !ok {
		return models.ServiceStep{}, models.ServiceStep{}, false
	}
	if servable[first.ServiceID] {
		return first, models.ServiceStep{}, false
	}
	for _, step := range sortedBySequence(steps) {
		if step.Status != models.StepPending || step.StepID == first.StepID {
			continue
		}
		if servable[step.ServiceID] {
			return first, step, true
		}
	}
	return first, models.ServiceStep{}, false
}

// PendingSteps returns the ticket's pending steps in pipeline order, for
// operator display alongside a candidate.
func PendingSteps(steps []models.ServiceStep) []models.ServiceStep {
	var pending []models.ServiceStep
	for _, step := range sortedBySequence(steps) {
		if step.Status == models.StepPending {
			pending = append(pending, step)
		}
	}
	return pending
}

func sortedBySequence(steps []models.ServiceStep) []models.ServiceStep {
	ordered := make([]models.ServiceStep, len(steps))
	copy(ordered, steps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].OrderSequence < ordered[j].OrderSequence
	})
	return ordered
}
