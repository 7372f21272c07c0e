package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visitflow/dispatch-service/internal/models"
	"visitflow/dispatch-service/internal/store"
)

type fakeStore struct {
	createFn         func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error)
	getTicketFn      func(ctx context.Context, ticketID string) (models.Ticket, []models.ServiceStep, error)
	identifyFn       func(ctx context.Context, input store.IdentifyTicketInput) (models.Ticket, bool, error)
	receptionQueueFn func(ctx context.Context) ([]models.Ticket, error)
	callDeskFn       func(ctx context.Context, input store.CallDeskInput) (models.Ticket, bool, error)
	uncallDeskFn     func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	startRecFn       func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	finishRecFn      func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	cancelFn         func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	noShowFn         func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	eligibleQueueFn  func(ctx context.Context, roomID string) ([]models.QueueEntry, error)
	callRoomFn       func(ctx context.Context, input store.CallRoomInput) (models.ServiceStep, bool, error)
	uncallRoomFn     func(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error)
	startServiceFn   func(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error)
	finishServiceFn  func(ctx context.Context, input store.StepActionInput) (store.FinishServiceResult, bool, error)
	candidatesFn     func(ctx context.Context, roomID string) ([]models.Candidate, error)
	reorderFn        func(ctx context.Context, input store.ReorderInput) ([]store.ReorderOutcome, error)
	activeDeskFn     func(ctx context.Context, deskID string) (models.Ticket, bool, error)
	activeRoomFn     func(ctx context.Context, roomID string) (models.ServiceStep, bool, error)
	roomsFn          func(ctx context.Context) ([]models.Room, error)
	desksFn          func(ctx context.Context) ([]models.Desk, error)
	servicesFn       func(ctx context.Context) ([]models.Service, error)
	outboxFn         func(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error)
	eventsFn         func(ctx context.Context, ticketID string) ([]store.TicketEvent, error)
}

func (f fakeStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	if f.createFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeStore) GetTicket(ctx context.Context, ticketID string) (models.Ticket, []models.ServiceStep, error) {
	if f.getTicketFn == nil {
		return models.Ticket{}, nil, nil
	}
	return f.getTicketFn(ctx, ticketID)
}

func (f fakeStore) IdentifyTicket(ctx context.Context, input store.IdentifyTicketInput) (models.Ticket, bool, error) {
	if f.identifyFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.identifyFn(ctx, input)
}

func (f fakeStore) ListReceptionQueue(ctx context.Context) ([]models.Ticket, error) {
	if f.receptionQueueFn == nil {
		return nil, nil
	}
	return f.receptionQueueFn(ctx)
}

func (f fakeStore) CallDesk(ctx context.Context, input store.CallDeskInput) (models.Ticket, bool, error) {
	if f.callDeskFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.callDeskFn(ctx, input)
}

func (f fakeStore) UncallDesk(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.uncallDeskFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.uncallDeskFn(ctx, input)
}

func (f fakeStore) StartReception(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.startRecFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.startRecFn(ctx, input)
}

func (f fakeStore) FinishReception(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.finishRecFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.finishRecFn(ctx, input)
}

func (f fakeStore) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.cancelFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.cancelFn(ctx, input)
}

func (f fakeStore) NoShowTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.noShowFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.noShowFn(ctx, input)
}

func (f fakeStore) ListEligibleQueue(ctx context.Context, roomID string) ([]models.QueueEntry, error) {
	if f.eligibleQueueFn == nil {
		return nil, nil
	}
	return f.eligibleQueueFn(ctx, roomID)
}

func (f fakeStore) CallRoom(ctx context.Context, input store.CallRoomInput) (models.ServiceStep, bool, error) {
	if f.callRoomFn == nil {
		return models.ServiceStep{}, false, nil
	}
	return f.callRoomFn(ctx, input)
}

func (f fakeStore) UncallRoom(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error) {
	if f.uncallRoomFn == nil {
		return models.ServiceStep{}, false, nil
	}
	return f.uncallRoomFn(ctx, input)
}

func (f fakeStore) StartService(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error) {
	if f.startServiceFn == nil {
		return models.ServiceStep{}, false, nil
	}
	return f.startServiceFn(ctx, input)
}

func (f fakeStore) FinishService(ctx context.Context, input store.StepActionInput) (store.FinishServiceResult, bool, error) {
	if f.finishServiceFn == nil {
		return store.FinishServiceResult{}, false, nil
	}
	return f.finishServiceFn(ctx, input)
}

func (f fakeStore) FindCandidates(ctx context.Context, roomID string) ([]models.Candidate, error) {
	if f.candidatesFn == nil {
		return nil, nil
	}
	return f.candidatesFn(ctx, roomID)
}

func (f fakeStore) BulkReorder(ctx context.Context, input store.ReorderInput) ([]store.ReorderOutcome, error) {
	if f.reorderFn == nil {
		return nil, nil
	}
	return f.reorderFn(ctx, input)
}

func (f fakeStore) ActiveDeskTicket(ctx context.Context, deskID string) (models.Ticket, bool, error) {
	if f.activeDeskFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.activeDeskFn(ctx, deskID)
}

func (f fakeStore) ActiveRoomStep(ctx context.Context, roomID string) (models.ServiceStep, bool, error) {
	if f.activeRoomFn == nil {
		return models.ServiceStep{}, false, nil
	}
	return f.activeRoomFn(ctx, roomID)
}

func (f fakeStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	if f.roomsFn == nil {
		return nil, nil
	}
	return f.roomsFn(ctx)
}

func (f fakeStore) ListDesks(ctx context.Context) ([]models.Desk, error) {
	if f.desksFn == nil {
		return nil, nil
	}
	return f.desksFn(ctx)
}

func (f fakeStore) ListServices(ctx context.Context) ([]models.Service, error) {
	if f.servicesFn == nil {
		return nil, nil
	}
	return f.servicesFn(ctx)
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if f.outboxFn == nil {
		return nil, nil
	}
	return f.outboxFn(ctx, after, limit)
}

func (f fakeStore) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	if f.eventsFn == nil {
		return nil, nil
	}
	return f.eventsFn(ctx, ticketID)
}

const (
	testRequestID = "11111111-1111-1111-1111-111111111111"
	testTicketID  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	testStepID    = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	testDeskID    = "cccccccc-cccc-cccc-cccc-cccccccccccc"
	testRoomID    = "dddddddd-dddd-dddd-dddd-dddddddddddd"
	testServiceID = "eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee"
)

func TestCreateTicketSuccess(t *testing.T) {
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:    testTicketID,
				DisplayCode: "LAB-001",
				Status:      models.TicketWaitingReception,
				CreatedAt:   time.Now().UTC(),
				RequestID:   input.RequestID,
			}, true, nil
		},
	}

	h := NewHandler(st)

	payload := map[string]interface{}{
		"request_id":  testRequestID,
		"service_ids": []string{testServiceID},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var ticket models.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ticket.TicketID == "" || ticket.DisplayCode == "" || ticket.Status != models.TicketWaitingReception {
		t.Fatalf("unexpected ticket response: %+v", ticket)
	}
}

func TestCreateTicketMissingServices(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]interface{}{
		"request_id": testRequestID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCreateTicketServiceNotFound(t *testing.T) {
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrServiceNotFound
		},
	}
	h := NewHandler(st)

	payload := map[string]interface{}{
		"request_id":  testRequestID,
		"service_ids": []string{testServiceID},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestCallDeskStationBusy(t *testing.T) {
	st := fakeStore{
		callDeskFn: func(ctx context.Context, input store.CallDeskInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, &store.StationBusyError{
				StationID:    input.DeskID,
				OccupantID:   "other",
				OccupantCode: "LAB-007",
			}
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id": testRequestID,
		"desk_id":    testDeskID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/call-desk", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "station_busy" {
		t.Fatalf("expected station_busy, got %s", errResp.Error.Code)
	}
}

func TestStartReceptionMissingDesk(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{
		"request_id": testRequestID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/start-reception", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCancelTicketInvalidTransition(t *testing.T) {
	st := fakeStore{
		cancelFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, &store.InvalidTransitionError{
				Entity:   "ticket",
				Action:   "cancel",
				Expected: string(models.TicketWaitingReception),
				Actual:   string(models.TicketInReception),
			}
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id": testRequestID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/cancel", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", errResp.Error.Code)
	}
}

func TestIdentifyMissingName(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{
		"request_id": testRequestID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/identify", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestFinishServiceReportsTicketDone(t *testing.T) {
	st := fakeStore{
		finishServiceFn: func(ctx context.Context, input store.StepActionInput) (store.FinishServiceResult, bool, error) {
			return store.FinishServiceResult{
				Step: models.ServiceStep{
					StepID:   input.StepID,
					TicketID: testTicketID,
					Status:   models.StepCompleted,
				},
				TicketDone: true,
			}, true, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id": testRequestID,
		"room_id":    testRoomID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/steps/"+testStepID+"/actions/finish", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var result store.FinishServiceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.TicketDone {
		t.Fatalf("expected ticket_done true")
	}
}

func TestStepActionMissingRoom(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]string{
		"request_id": testRequestID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/steps/"+testStepID+"/actions/start", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCallStepNotEligible(t *testing.T) {
	st := fakeStore{
		callRoomFn: func(ctx context.Context, input store.CallRoomInput) (models.ServiceStep, bool, error) {
			return models.ServiceStep{}, false, store.ErrNotEligible
		},
	}
	h := NewHandler(st)

	payload := map[string]string{
		"request_id": testRequestID,
		"room_id":    testRoomID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/steps/"+testStepID+"/actions/call", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "not_eligible" {
		t.Fatalf("expected not_eligible, got %s", errResp.Error.Code)
	}
}

func TestRoomQueueSuccess(t *testing.T) {
	st := fakeStore{
		eligibleQueueFn: func(ctx context.Context, roomID string) ([]models.QueueEntry, error) {
			return []models.QueueEntry{{StepID: testStepID, TicketID: testTicketID}}, nil
		},
	}
	h := NewHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+testRoomID+"/queue", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestReorderOutcomes(t *testing.T) {
	st := fakeStore{
		reorderFn: func(ctx context.Context, input store.ReorderInput) ([]store.ReorderOutcome, error) {
			outcomes := make([]store.ReorderOutcome, 0, len(input.TicketIDs))
			for _, id := range input.TicketIDs {
				outcomes = append(outcomes, store.ReorderOutcome{TicketID: id, Outcome: store.OutcomeMoved})
			}
			return outcomes, nil
		},
	}
	h := NewHandler(st)

	payload := map[string]interface{}{
		"request_id": testRequestID,
		"ticket_ids": []string{testTicketID},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+testRoomID+"/reorder", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var outcomes []store.ReorderOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcomes); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Outcome != store.OutcomeMoved {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}

func TestReorderEmptyTickets(t *testing.T) {
	h := NewHandler(fakeStore{})

	payload := map[string]interface{}{
		"request_id": testRequestID,
		"ticket_ids": []string{},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+testRoomID+"/reorder", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestActiveDeskNoContent(t *testing.T) {
	h := NewHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/desks/"+testDeskID+"/active", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
}

func TestTicketNotFoundMapped(t *testing.T) {
	st := fakeStore{
		getTicketFn: func(ctx context.Context, ticketID string) (models.Ticket, []models.ServiceStep, error) {
			return models.Ticket{}, nil, store.ErrTicketNotFound
		},
	}
	h := NewHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/"+testTicketID, nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestEventsBadAfterParam(t *testing.T) {
	h := NewHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/events?after=yesterday", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUnknownActionNotFound(t *testing.T) {
	h := NewHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/promote", bytes.NewReader([]byte(`{}`)))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
