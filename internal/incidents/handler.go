package incidents

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/pkg/httputil"
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers routes usable without a session. Floor
// terminals report breakdowns and render the live board unauthenticated.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/incidents", h.List)
	r.Post("/incidents", h.Report)
}

// RegisterTechRoutes registers routes requiring a technician session.
func (h *Handler) RegisterTechRoutes(r chi.Router) {
	r.Post("/incidents/{id}/assign", h.Assign)
	r.Post("/incidents/{id}/start", h.Start)
	r.Post("/incidents/{id}/status", h.SetStatus)
	r.Post("/incidents/{id}/resolve", h.Resolve)
}

// RegisterHistoryRoutes registers the shared history listing. Scoping to
// the actor happens in the service.
func (h *Handler) RegisterHistoryRoutes(r chi.Router) {
	r.Get("/history", h.History)
}

// RegisterAdminRoutes registers admin-only incident routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/admin/history", h.PurgeHistory)
}

// ReportRequest represents the request body for reporting a breakdown.
type ReportRequest struct {
	LineName       string   `json:"lineName" validate:"required,min=1,max=255"`
	MachineNumber  string   `json:"machineNumber" validate:"required,min=1,max=64"`
	OperatorNumber string   `json:"operatorNumber" validate:"required,min=1,max=64"`
	Observations   []string `json:"observations" validate:"omitempty,dive,max=255"`
	Team           string   `json:"team"`
}

// StatusRequest represents the request body for a waiting status change.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=WAITING_PARTS LONG_REPAIR"`
	Note   string `json:"note" validate:"max=1000"`
}

// ResolveRequest represents the request body for resolving an incident.
type ResolveRequest struct {
	Note      string `json:"note" validate:"max=1000"`
	PartsUsed string `json:"partsUsed" validate:"max=1000"`
}

// List handles GET /incidents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, list)
}

// Report handles POST /incidents.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Report(r.Context(), ReportInput{
		LineName:       req.LineName,
		MachineNumber:  req.MachineNumber,
		OperatorNumber: req.OperatorNumber,
		Observations:   req.Observations,
		Team:           req.Team,
	})
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// Assign handles POST /incidents/{id}/assign.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}

	incident, err := h.service.Assign(r.Context(), id, actor)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// Start handles POST /incidents/{id}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}

	incident, err := h.service.Start(r.Context(), id, actor)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// SetStatus handles POST /incidents/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.SetStatus(r.Context(), id, actor, domain.IncidentStatus(req.Status), req.Note)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// Resolve handles POST /incidents/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}

	var req ResolveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httputil.ValidationError(w, err)
			return
		}
	}

	incident, err := h.service.Resolve(r.Context(), id, actor, req.Note, req.PartsUsed)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// History handles GET /history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.GetActor(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.service.History(r.Context(), actor, filter)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}

	role := domain.ActorTechnician
	if actor.IsAdmin {
		role = domain.ActorAdmin
	}
	httputil.Success(w, http.StatusOK, map[string]any{
		"role":    role,
		"history": items,
	})
}

// PurgeHistory handles DELETE /admin/history.
func (h *Handler) PurgeHistory(w http.ResponseWriter, r *http.Request) {
	scope := PurgeScope(r.URL.Query().Get("scope"))
	switch scope {
	case "":
		scope = PurgeResolved
	case PurgeResolved, PurgeAll:
	default:
		httputil.Error(w, http.StatusBadRequest, "invalid scope")
		return
	}

	if err := h.service.PurgeHistory(r.Context(), scope); err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]any{"scope": scope})
}

func (h *Handler) idAndActor(w http.ResponseWriter, r *http.Request) (int64, domain.Actor, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid incident id")
		return 0, domain.Actor{}, false
	}

	actor, ok := httputil.GetActor(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return 0, domain.Actor{}, false
	}

	return id, actor, true
}

func (h *Handler) handleServiceError(r *http.Request, w http.ResponseWriter, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrNotFound, Status: http.StatusNotFound},
		{Error: ErrDuplicateOpen, Status: http.StatusConflict},
		{Error: ErrTeamMismatch, Status: http.StatusForbidden},
		{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	})
}

func parseHistoryFilter(r *http.Request) (HistoryFilter, error) {
	q := r.URL.Query()
	filter := HistoryFilter{
		Line:             q.Get("line"),
		Machine:          q.Get("machine"),
		TechnicianNumber: q.Get("tech"),
	}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, err
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, err
		}
		// Inclusive day bound.
		end := t.Add(24*time.Hour - time.Millisecond)
		filter.To = &end
	}
	return filter, nil
}
