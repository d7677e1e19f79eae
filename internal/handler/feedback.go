package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/service"
)

// FeedbackHandler covers both sides of the feedback lifecycle: the public
// surface (submit, react, public feed) and the owner dashboard (list,
// answer, archive).
type FeedbackHandler struct {
	service *service.FeedbackService
	cookies auth.Cookies
	logger  *slog.Logger
}

func NewFeedbackHandler(svc *service.FeedbackService, cookies auth.Cookies, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{service: svc, cookies: cookies, logger: logger}
}

type submitFeedbackRequest struct {
	Question string `json:"question"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

// HandleSubmit accepts an anonymous feedback submission.
//
// HTTP: POST /api/walls/{slug}/feedback (public, no auth)
//
// The submitter's IP is captured for the owner's blocked-IP check but is
// NEVER stored with the feedback — anonymity is the product.
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	fb, err := h.service.Submit(r.Context(), chi.URLParam(r, "slug"), req.Question, clientIP(r))
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusCreated, fb)
}

// HandlePublicFeed returns the visitor-facing feed for a wall: answered,
// unarchived items only, newest activity first, capped at 50.
//
// HTTP: GET /api/walls/{slug}/feedback (public, no auth)
func (h *FeedbackHandler) HandlePublicFeed(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.PublicForWall(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleList returns one page of the owner dashboard.
//
// HTTP: GET /api/walls/id/{wallId}/feedback?sort=active&page=1&limit=10
// (behind the auth gate)
//
// Unparseable page/limit values fall back to the defaults rather than
// erroring — the service clamps them anyway.
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.service.ListForOwner(r.Context(), user, chi.URLParam(r, "wallId"), q.Get("sort"), page, limit)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleAnswer records or replaces the owner's answer on a feedback item.
//
// HTTP: PUT /api/feedback/{id}/answer (behind the auth gate)
func (h *FeedbackHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	fb, err := h.service.Answer(r.Context(), user, chi.URLParam(r, "id"), req.Answer)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, fb)
}

// HandleArchive sets or clears the archive flag.
//
// HTTP: PUT /api/feedback/{id}/archive (behind the auth gate)
// REQUEST BODY: {"archived": true}
func (h *FeedbackHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	fb, err := h.service.Archive(r.Context(), user, chi.URLParam(r, "id"), req.Archived)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, fb)
}

// HandleReact increments a reaction counter on a feedback item.
//
// HTTP: POST /api/feedback/{id}/reactions (public, no auth)
// RESPONSE: the item's full reaction map, e.g. {"🔥": 3, "❤️": 1}
func (h *FeedbackHandler) HandleReact(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	reactions, err := h.service.React(r.Context(), chi.URLParam(r, "id"), req.Emoji)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reactions": reactions})
}

// clientIP extracts the caller's IP. The router runs chi's RealIP
// middleware first, so RemoteAddr already reflects X-Forwarded-For when a
// trusted proxy set it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
