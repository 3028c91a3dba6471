package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/pkg/httputil"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers the unauthenticated reference-data
// reads used by floor terminals and the login screen.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/config", h.Snapshot)
	r.Get("/technicians", h.Technicians)
}

// RegisterAdminRoutes registers the admin CRUD surface.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/config", h.AdminConfig)

	r.Post("/admin/lines", h.CreateLine)
	r.Patch("/admin/lines/{id}", h.UpdateLine)
	r.Delete("/admin/lines/{id}", h.DeleteLine)

	r.Post("/admin/machines", h.CreateMachines)
	r.Patch("/admin/machines/{id}", h.UpdateMachine)
	r.Delete("/admin/machines/{id}", h.DeleteMachine)

	r.Post("/admin/observations", h.CreateObservation)
	r.Patch("/admin/observations/{id}", h.UpdateObservation)
	r.Delete("/admin/observations/{id}", h.DeleteObservation)

	r.Post("/admin/technicians", h.CreateTechnician)
	r.Patch("/admin/technicians/{id}", h.UpdateTechnician)
	r.Delete("/admin/technicians/{id}", h.DeleteTechnician)
}

// Snapshot handles GET /config.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, snap)
}

// Technicians handles GET /technicians. An optional team query narrows
// the listing to one discipline.
func (h *Handler) Technicians(w http.ResponseWriter, r *http.Request) {
	var team domain.Team
	if raw := r.URL.Query().Get("team"); raw != "" {
		team = domain.NormalizeTeam(raw)
	}

	views, err := h.service.Technicians(r.Context(), team, false)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, views)
}

// AdminConfig handles GET /admin/config.
func (h *Handler) AdminConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.AdminConfig(r.Context())
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, cfg)
}

// LineRequest represents the request body for creating a line.
type LineRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// CreateLine handles POST /admin/lines.
func (h *Handler) CreateLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequest
	if !h.decode(w, r, &req) {
		return
	}

	line, err := h.service.CreateLine(r.Context(), req.Name)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, line)
}

// LineUpdateRequest represents the request body for editing a line.
type LineUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=255"`
	Active *bool   `json:"active"`
}

// UpdateLine handles PATCH /admin/lines/{id}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req LineUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	line, err := h.service.UpdateLine(r.Context(), chi.URLParam(r, "id"), LineUpdate{
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, line)
}

// DeleteLine handles DELETE /admin/lines/{id}.
func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLine(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]bool{"deleted": true})
}

// MachineRow is one machine in a batch create request.
type MachineRow struct {
	Number string `json:"number" validate:"required,min=1,max=64"`
	Name   string `json:"name" validate:"max=255"`
}

// MachinesRequest represents the request body for creating machines.
// A single machine is a batch of one.
type MachinesRequest struct {
	LineID   string       `json:"lineId" validate:"required"`
	Machines []MachineRow `json:"machines" validate:"required,min=1,dive"`
}

// CreateMachines handles POST /admin/machines.
func (h *Handler) CreateMachines(w http.ResponseWriter, r *http.Request) {
	var req MachinesRequest
	if !h.decode(w, r, &req) {
		return
	}

	inputs := make([]MachineInput, 0, len(req.Machines))
	for _, row := range req.Machines {
		inputs = append(inputs, MachineInput{Number: row.Number, Name: row.Name})
	}

	created, err := h.service.CreateMachines(r.Context(), req.LineID, inputs)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, created)
}

// MachineUpdateRequest represents the request body for editing a machine.
type MachineUpdateRequest struct {
	Number *string `json:"number" validate:"omitempty,min=1,max=64"`
	Name   *string `json:"name" validate:"omitempty,max=255"`
	Active *bool   `json:"active"`
}

// UpdateMachine handles PATCH /admin/machines/{id}.
func (h *Handler) UpdateMachine(w http.ResponseWriter, r *http.Request) {
	var req MachineUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	machine, err := h.service.UpdateMachine(r.Context(), chi.URLParam(r, "id"), MachineUpdate{
		Number: req.Number,
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, machine)
}

// DeleteMachine handles DELETE /admin/machines/{id}.
func (h *Handler) DeleteMachine(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMachine(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ObservationRequest represents the request body for creating a tag.
type ObservationRequest struct {
	Text string `json:"text" validate:"required,min=1,max=255"`
}

// CreateObservation handles POST /admin/observations.
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	var req ObservationRequest
	if !h.decode(w, r, &req) {
		return
	}

	obs, err := h.service.CreateObservation(r.Context(), req.Text)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, obs)
}

// ObservationUpdateRequest represents the request body for editing a tag.
type ObservationUpdateRequest struct {
	Text   *string `json:"text" validate:"omitempty,min=1,max=255"`
	Active *bool   `json:"active"`
}

// UpdateObservation handles PATCH /admin/observations/{id}.
func (h *Handler) UpdateObservation(w http.ResponseWriter, r *http.Request) {
	var req ObservationUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	obs, err := h.service.UpdateObservation(r.Context(), chi.URLParam(r, "id"), ObservationUpdate{
		Text:   req.Text,
		Active: req.Active,
	})
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, obs)
}

// DeleteObservation handles DELETE /admin/observations/{id}.
func (h *Handler) DeleteObservation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteObservation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]bool{"deleted": true})
}

// TechnicianRequest represents the request body for creating a technician.
type TechnicianRequest struct {
	Number string `json:"number" validate:"required,min=1,max=16"`
	Name   string `json:"name" validate:"required,min=1,max=255"`
	Team   string `json:"team" validate:"required"`
	PIN    string `json:"pin" validate:"omitempty,len=4,numeric"`
}

// CreateTechnician handles POST /admin/technicians.
func (h *Handler) CreateTechnician(w http.ResponseWriter, r *http.Request) {
	var req TechnicianRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.CreateTechnician(r.Context(), TechnicianInput{
		Number: req.Number,
		Name:   req.Name,
		Team:   req.Team,
		PIN:    req.PIN,
	})
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, view)
}

// TechnicianUpdateRequest represents the request body for editing a
// technician. A non-empty pin rotates the credential.
type TechnicianUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=255"`
	Team   *string `json:"team"`
	Active *bool   `json:"active"`
	PIN    string  `json:"pin" validate:"omitempty,len=4,numeric"`
}

// UpdateTechnician handles PATCH /admin/technicians/{id}.
func (h *Handler) UpdateTechnician(w http.ResponseWriter, r *http.Request) {
	var req TechnicianUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.UpdateTechnician(r.Context(), chi.URLParam(r, "id"), TechnicianUpdate{
		Name:   req.Name,
		Team:   req.Team,
		Active: req.Active,
		PIN:    req.PIN,
	})
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, view)
}

// DeleteTechnician handles DELETE /admin/technicians/{id}.
func (h *Handler) DeleteTechnician(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTechnician(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) handleServiceError(r *http.Request, w http.ResponseWriter, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrNotFound, Status: http.StatusNotFound},
		{Error: ErrDuplicate, Status: http.StatusConflict},
		{Error: ErrEmptyBatch, Status: http.StatusBadRequest},
	})
}
