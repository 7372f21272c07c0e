package store

import (
	"testing"

	"visitflow/dispatch-service/internal/models"
)

func step(id string, seq int, status models.StepStatus, serviceID string) models.ServiceStep {
	return models.ServiceStep{
		StepID:        id,
		TicketID:      "ticket-1",
		ServiceID:     serviceID,
		OrderSequence: seq,
		Status:        status,
	}
}

func TestFirstEligible(t *testing.T) {
	cases := []struct {
		name   string
		steps  []models.ServiceStep
		wantID string
		wantOK bool
	}{
		{
			name: "first pending step wins",
			steps: []models.ServiceStep{
				step("a", 1, models.StepPending, "svc-1"),
				step("b", 2, models.StepPending, "svc-2"),
			},
			wantID: "a",
			wantOK: true,
		},
		{
			name: "completed steps are skipped",
			steps: []models.ServiceStep{
				step("a", 1, models.StepCompleted, "svc-1"),
				step("b", 2, models.StepPending, "svc-2"),
			},
			wantID: "b",
			wantOK: true,
		},
		{
			name: "active step blocks the pipeline",
			steps: []models.ServiceStep{
				step("a", 1, models.StepInProgress, "svc-1"),
				step("b", 2, models.StepPending, "svc-2"),
			},
			wantOK: false,
		},
		{
			name: "called step blocks the pipeline",
			steps: []models.ServiceStep{
				step("a", 1, models.StepCalled, "svc-1"),
				step("b", 2, models.StepPending, "svc-2"),
			},
			wantOK: false,
		},
		{
			name: "non-contiguous sequences still order correctly",
			steps: []models.ServiceStep{
				step("b", 7, models.StepPending, "svc-2"),
				step("a", 3, models.StepCompleted, "svc-1"),
			},
			wantID: "b",
			wantOK: true,
		},
		{
			name: "all completed",
			steps: []models.ServiceStep{
				step("a", 1, models.StepCompleted, "svc-1"),
				step("b", 2, models.StepCompleted, "svc-2"),
			},
			wantOK: false,
		},
		{
			name:   "no steps",
			wantOK: false,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstEligible(tt.steps)
			if ok != tt.wantOK {
				t.Fatalf("FirstEligible ok=%v, want %v", ok, tt.wantOK)
			}
			if ok && got.StepID != tt.wantID {
				t.Fatalf("FirstEligible=%s, want %s", got.StepID, tt.wantID)
			}
		})
	}
}

func TestPromotionTarget(t *testing.T) {
	servable := map[string]bool{"svc-2": true}

	steps := []models.ServiceStep{
		step("a", 1, models.StepPending, "svc-1"),
		step("b", 2, models.StepPending, "svc-2"),
	}
	first, target, ok := PromotionTarget(steps, servable)
	if !ok {
		t.Fatalf("expected promotion target")
	}
	if first.StepID != "a" || target.StepID != "b" {
		t.Fatalf("got first=%s target=%s, want first=a target=b", first.StepID, target.StepID)
	}
}

func TestPromotionTargetFirstAlreadyServable(t *testing.T) {
	servable := map[string]bool{"svc-1": true}

	steps := []models.ServiceStep{
		step("a", 1, models.StepPending, "svc-1"),
		step("b", 2, models.StepPending, "svc-2"),
	}
	if _, _, ok := PromotionTarget(steps, servable); ok {
		t.Fatalf("expected no promotion when first step is already servable")
	}
}

func TestPromotionTargetNoServableStep(t *testing.T) {
	servable := map[string]bool{"svc-9": true}

	steps := []models.ServiceStep{
		step("a", 1, models.StepPending, "svc-1"),
		step("b", 2, models.StepPending, "svc-2"),
	}
	if _, _, ok := PromotionTarget(steps, servable); ok {
		t.Fatalf("expected no promotion when room cannot serve any step")
	}
}

func TestPromotionTargetBlockedPipeline(t *testing.T) {
	servable := map[string]bool{"svc-2": true}

	steps := []models.ServiceStep{
		step("a", 1, models.StepInProgress, "svc-1"),
		step("b", 2, models.StepPending, "svc-2"),
	}
	if _, _, ok := PromotionTarget(steps, servable); ok {
		t.Fatalf("expected no promotion while a step is active")
	}
}

func TestPromotionTargetPicksEarliestServable(t *testing.T) {
	servable := map[string]bool{"svc-2": true, "svc-3": true}

	steps := []models.ServiceStep{
		step("a", 1, models.StepPending, "svc-1"),
		step("b", 2, models.StepPending, "svc-2"),
		step("c", 3, models.StepPending, "svc-3"),
	}
	_, target, ok := PromotionTarget(steps, servable)
	if !ok {
		t.Fatalf("expected promotion target")
	}
	if target.StepID != "b" {
		t.Fatalf("got target=%s, want b", target.StepID)
	}
}

func TestPendingSteps(t *testing.T) {
	steps := []models.ServiceStep{
		step("b", 2, models.StepPending, "svc-2"),
		step("a", 1, models.StepCompleted, "svc-1"),
		step("c", 3, models.StepPending, "svc-3"),
	}
	pending := PendingSteps(steps)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending steps, got %d", len(pending))
	}
	if pending[0].StepID != "b" || pending[1].StepID != "c" {
		t.Fatalf("unexpected order: %s, %s", pending[0].StepID, pending[1].StepID)
	}
}
