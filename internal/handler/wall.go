package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/service"
)

// WallHandler manages wall creation, lookup and theming.
type WallHandler struct {
	service *service.WallService
	cookies auth.Cookies
	logger  *slog.Logger
}

func NewWallHandler(svc *service.WallService, cookies auth.Cookies, logger *slog.Logger) *WallHandler {
	return &WallHandler{service: svc, cookies: cookies, logger: logger}
}

type createWallRequest struct {
	Slug string `json:"slug"`
}

type updateThemeRequest struct {
	Theme        string             `json:"theme"`
	CustomColors service.ColorPatch `json:"customColors"`
}

// HandleCreate creates a wall owned by the caller.
//
// HTTP: POST /api/walls (behind the auth gate)
// REQUEST BODY: {"slug": "my-wall"}
func (h *WallHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req createWallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	wall, err := h.service.Create(r.Context(), user, req.Slug)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusCreated, wall)
}

// HandleGet returns a wall by slug. Public: anonymous visitors load this
// to render a wall's theme before submitting feedback.
//
// HTTP: GET /api/walls/{slug}
func (h *WallHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	wall, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}
	writeJSON(w, http.StatusOK, wall)
}

// HandleUpdateTheme changes a wall's theme and custom colors.
//
// HTTP: PUT /api/walls/{slug}/theme (behind the auth gate and a 5/min
// rate limit — theme churn is the one settings write cheap enough to spam)
//
// PATCH SEMANTICS on customColors: a missing field keeps the current
// value, an empty string clears it back to the theme default, anything
// else must be a #hex color.
func (h *WallHandler) HandleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req updateThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	wall, err := h.service.UpdateTheme(r.Context(), user, chi.URLParam(r, "slug"), req.Theme, req.CustomColors)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, wall)
}
