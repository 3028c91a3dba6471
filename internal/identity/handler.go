package identity

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/pkg/httputil"
)

// Handler handles HTTP requests for login, logout and session lookup.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers the login endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/tech/login", h.TechLogin)
	r.Post("/tech/logout", h.TechLogout)
	r.Post("/admin/login", h.AdminLogin)
	r.Post("/admin/logout", h.AdminLogout)
}

// RegisterTechRoutes registers endpoints requiring a technician session.
func (h *Handler) RegisterTechRoutes(r chi.Router) {
	r.Get("/tech/me", h.TechMe)
}

// TechLoginRequest represents the technician login request body.
type TechLoginRequest struct {
	Number string `json:"number" validate:"required,min=1,max=16"`
	PIN    string `json:"pin" validate:"required,len=4,numeric"`
	Team   string `json:"team" validate:"required"`
}

// TechLogin handles POST /tech/login.
func (h *Handler) TechLogin(w http.ResponseWriter, r *http.Request) {
	var req TechLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sess, err := h.service.LoginTech(r.Context(), req.Number, req.PIN, req.Team)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, sess)
}

// TechLogout handles POST /tech/logout. Always succeeds; revoking an
// unknown token is not an error.
func (h *Handler) TechLogout(w http.ResponseWriter, r *http.Request) {
	h.service.LogoutTech(r.Header.Get(httputil.TechTokenHeader))
	httputil.Success(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// TechMe handles GET /tech/me, returning the session's identity.
func (h *Handler) TechMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.GetActor(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	httputil.Success(w, http.StatusOK, map[string]any{
		"number": actor.Number,
		"name":   actor.Name,
		"team":   actor.Team,
	})
}

// AdminLoginRequest represents the admin login request body.
type AdminLoginRequest struct {
	PIN string `json:"pin" validate:"required,min=4,max=64"`
}

// AdminLogin handles POST /admin/login.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	token, err := h.service.LoginAdmin(r.Context(), req.PIN)
	if err != nil {
		h.handleServiceError(r, w, err)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]any{
		"token": token,
		"role":  domain.ActorAdmin,
	})
}

// AdminLogout handles POST /admin/logout.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.service.LogoutAdmin(r.Header.Get(httputil.AdminTokenHeader))
	httputil.Success(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (h *Handler) handleServiceError(r *http.Request, w http.ResponseWriter, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
		{Error: ErrWrongTeam, Status: http.StatusForbidden},
		{Error: ErrRateLimited, Status: http.StatusTooManyRequests},
		{Error: ErrInvalidSession, Status: http.StatusUnauthorized},
	})
}
