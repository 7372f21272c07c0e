package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"visitflow/dispatch-service/internal/models"
	"visitflow/dispatch-service/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store store.DispatchStore
}

type createTicketRequest struct {
	RequestID    string   `json:"request_id"`
	CustomerName string   `json:"customer_name"`
	IsPriority   bool     `json:"is_priority"`
	ServiceIDs   []string `json:"service_ids"`
	Actor        string   `json:"actor"`
}

type identifyRequest struct {
	RequestID    string `json:"request_id"`
	CustomerName string `json:"customer_name"`
	Actor        string `json:"actor"`
}

type ticketActionRequest struct {
	RequestID string `json:"request_id"`
	DeskID    string `json:"desk_id"`
	Actor     string `json:"actor"`
	Note      string `json:"note"`
}

type stepActionRequest struct {
	RequestID string `json:"request_id"`
	RoomID    string `json:"room_id"`
	Actor     string `json:"actor"`
}

type reorderRequest struct {
	RequestID string   `json:"request_id"`
	TicketIDs []string `json:"ticket_ids"`
	Actor     string   `json:"actor"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store store.DispatchStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/", h.handleTicketSubtree)
	mux.HandleFunc("/api/steps/", h.handleStepActions)
	mux.HandleFunc("/api/reception/queue", h.handleReceptionQueue)
	mux.HandleFunc("/api/rooms", h.handleRooms)
	mux.HandleFunc("/api/rooms/", h.handleRoomSubtree)
	mux.HandleFunc("/api/desks", h.handleDesks)
	mux.HandleFunc("/api/desks/", h.handleDeskSubtree)
	mux.HandleFunc("/api/services", h.handleServices)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Actor = strings.TrimSpace(req.Actor)
	for i := range req.ServiceIDs {
		req.ServiceIDs[i] = strings.TrimSpace(req.ServiceIDs[i])
	}

	if req.RequestID == "" || len(req.ServiceIDs) == 0 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and service_ids are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	for _, serviceID := range req.ServiceIDs {
		if !isValidUUID(serviceID) {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "service_ids must be UUIDs")
			return
		}
	}

	ticket, _, err := h.store.CreateTicket(r.Context(), store.CreateTicketInput{
		RequestID:    req.RequestID,
		CustomerName: req.CustomerName,
		IsPriority:   req.IsPriority,
		ServiceIDs:   req.ServiceIDs,
		Actor:        req.Actor,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events":
		h.handleTicketEvents(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions":
		h.handleTicketAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	ticket, steps, err := h.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket": ticket,
		"steps":  steps,
	})
}

func (h *Handler) handleTicketEvents(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	events, err := h.store.ListTicketEvents(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	switch action {
	case "identify":
		h.handleIdentify(w, r, ticketID)
	case "call-desk":
		h.handleCallDesk(w, r, ticketID)
	case "uncall-desk":
		h.ticketAction(w, r, ticketID, false, h.store.UncallDesk)
	case "start-reception":
		h.ticketAction(w, r, ticketID, true, h.store.StartReception)
	case "finish-reception":
		h.ticketAction(w, r, ticketID, true, h.store.FinishReception)
	case "cancel":
		h.ticketAction(w, r, ticketID, false, h.store.CancelTicket)
	case "no-show":
		h.ticketAction(w, r, ticketID, false, h.store.NoShowTicket)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request, ticketID string) {
	var req identifyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Actor = strings.TrimSpace(req.Actor)
	if req.RequestID == "" || req.CustomerName == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and customer_name are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}

	ticket, _, err := h.store.IdentifyTicket(r.Context(), store.IdentifyTicketInput{
		RequestID:    req.RequestID,
		TicketID:     ticketID,
		CustomerName: req.CustomerName,
		Actor:        req.Actor,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleCallDesk(w http.ResponseWriter, r *http.Request, ticketID string) {
	var req ticketActionRequest
	if !decodeTicketAction(w, r, &req, true) {
		return
	}

	ticket, _, err := h.store.CallDesk(r.Context(), store.CallDeskInput{
		RequestID: req.RequestID,
		TicketID:  ticketID,
		DeskID:    req.DeskID,
		Actor:     req.Actor,
		CalledAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type ticketActionFunc func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)

func (h *Handler) ticketAction(w http.ResponseWriter, r *http.Request, ticketID string, requireDesk bool, fn ticketActionFunc) {
	var req ticketActionRequest
	if !decodeTicketAction(w, r, &req, requireDesk) {
		return
	}

	ticket, _, err := fn(r.Context(), store.TicketActionInput{
		RequestID:  req.RequestID,
		TicketID:   ticketID,
		DeskID:     req.DeskID,
		Actor:      req.Actor,
		Note:       req.Note,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleStepActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/steps/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	stepID := parts[0]
	action := parts[2]
	if !isValidUUID(stepID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "step_id must be a UUID")
		return
	}

	var req stepActionRequest
	if !decodeStepAction(w, r, &req) {
		return
	}

	switch action {
	case "call":
		step, _, err := h.store.CallRoom(r.Context(), store.CallRoomInput{
			RequestID: req.RequestID,
			StepID:    stepID,
			RoomID:    req.RoomID,
			Actor:     req.Actor,
			CalledAt:  time.Now().UTC(),
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, step)
	case "uncall":
		h.stepAction(w, r, req, stepID, h.store.UncallRoom)
	case "start":
		h.stepAction(w, r, req, stepID, h.store.StartService)
	case "finish":
		result, _, err := h.store.FinishService(r.Context(), store.StepActionInput{
			RequestID:  req.RequestID,
			StepID:     stepID,
			RoomID:     req.RoomID,
			Actor:      req.Actor,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type stepActionFunc func(ctx context.Context, input store.StepActionInput) (models.ServiceStep, bool, error)

func (h *Handler) stepAction(w http.ResponseWriter, r *http.Request, req stepActionRequest, stepID string, fn stepActionFunc) {
	step, _, err := fn(r.Context(), store.StepActionInput{
		RequestID:  req.RequestID,
		StepID:     stepID,
		RoomID:     req.RoomID,
		Actor:      req.Actor,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (h *Handler) handleReceptionQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tickets, err := h.store.ListReceptionQueue(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) handleRoomSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	roomID := parts[0]
	if !isValidUUID(roomID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "room_id must be a UUID")
		return
	}

	switch parts[1] {
	case "queue":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		entries, err := h.store.ListEligibleQueue(r.Context(), roomID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case "candidates":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		candidates, err := h.store.FindCandidates(r.Context(), roomID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, candidates)
	case "active":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		step, found, err := h.store.ActiveRoomStep(r.Context(), roomID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		if !found {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, step)
	case "reorder":
		h.handleReorder(w, r, roomID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req reorderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Actor = strings.TrimSpace(req.Actor)
	for i := range req.TicketIDs {
		req.TicketIDs[i] = strings.TrimSpace(req.TicketIDs[i])
	}
	if len(req.TicketIDs) == 0 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "ticket_ids is required")
		return
	}
	for _, ticketID := range req.TicketIDs {
		if !isValidUUID(ticketID) {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "ticket_ids must be UUIDs")
			return
		}
	}

	outcomes, err := h.store.BulkReorder(r.Context(), store.ReorderInput{
		RequestID: req.RequestID,
		TicketIDs: req.TicketIDs,
		RoomID:    roomID,
		Actor:     req.Actor,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *Handler) handleDesks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	desks, err := h.store.ListDesks(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, desks)
}

func (h *Handler) handleDeskSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/desks/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "active" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	deskID := parts[0]
	if !isValidUUID(deskID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "desk_id must be a UUID")
		return
	}

	ticket, found, err := h.store.ActiveDeskTicket(r.Context(), deskID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	services, err := h.store.ListServices(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func decodeTicketAction(w http.ResponseWriter, r *http.Request, req *ticketActionRequest, requireDesk bool) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.DeskID = strings.TrimSpace(req.DeskID)
	req.Actor = strings.TrimSpace(req.Actor)
	req.Note = strings.TrimSpace(req.Note)

	if req.RequestID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id is required")
		return false
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return false
	}
	if requireDesk {
		if req.DeskID == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "desk_id is required")
			return false
		}
		if !isValidUUID(req.DeskID) {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "desk_id must be a UUID")
			return false
		}
	} else if req.DeskID != "" && !isValidUUID(req.DeskID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "desk_id must be a UUID when provided")
		return false
	}
	return true
}

func decodeStepAction(w http.ResponseWriter, r *http.Request, req *stepActionRequest) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.RoomID = strings.TrimSpace(req.RoomID)
	req.Actor = strings.TrimSpace(req.Actor)

	if req.RequestID == "" || req.RoomID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and room_id are required")
		return false
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.RoomID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and room_id must be UUIDs")
		return false
	}
	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	var busy *store.StationBusyError
	if errors.As(err, &busy) {
		return http.StatusConflict, "station_busy", busy.Error()
	}
	var invalid *store.InvalidTransitionError
	if errors.As(err, &invalid) {
		return http.StatusConflict, "invalid_transition", invalid.Error()
	}

	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrStepNotFound):
		return http.StatusNotFound, "step_not_found", "step not found"
	case errors.Is(err, store.ErrDeskNotFound):
		return http.StatusNotFound, "desk_not_found", "desk not found"
	case errors.Is(err, store.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found", "room not found"
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found", "service not found"
	case errors.Is(err, store.ErrAlreadyInProgress):
		return http.StatusConflict, "already_in_progress", "entity already taken by a concurrent call"
	case errors.Is(err, store.ErrStationMismatch):
		return http.StatusConflict, "station_mismatch", "entity assigned to a different station"
	case errors.Is(err, store.ErrNotServable):
		return http.StatusConflict, "not_servable", "room cannot serve this step's service"
	case errors.Is(err, store.ErrUnidentified):
		return http.StatusConflict, "unidentified", "ticket has no customer identity yet"
	case errors.Is(err, store.ErrNotEligible):
		return http.StatusConflict, "not_eligible", "an earlier step in the pipeline is incomplete"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
