package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/service"
)

// SettingsHandler exposes the authenticated settings surface: profile,
// picture upload, notifications, password, moderation lists and the
// two-step account deletion flow. Every route except the deletion confirm
// sits behind the auth gate.
type SettingsHandler struct {
	service     *service.SettingsService
	cookies     auth.Cookies
	frontendURL string
	logger      *slog.Logger
}

func NewSettingsHandler(svc *service.SettingsService, cookies auth.Cookies, frontendURL string, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{service: svc, cookies: cookies, frontendURL: frontendURL, logger: logger}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type blockUserRequest struct {
	UserID string `json:"userId"`
}

type blockIPRequest struct {
	IP string `json:"ip"`
}

type confirmDeletionRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// HandleUpdateProfile applies a partial profile update.
//
// HTTP: PUT /api/settings/profile
// REQUEST BODY: any subset of {"name", "bio", "socialLinks", "profileVisibility"}
func (h *SettingsHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var patch service.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user, patch)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HandleUpdatePicture stores a new profile image.
//
// HTTP: POST /api/settings/picture (multipart/form-data, field "picture")
//
// The multipart form is capped slightly above the image limit so an
// oversized upload fails with a clear validation error rather than a
// connection reset mid-stream.
func (h *SettingsHandler) HandleUpdatePicture(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	if err := r.ParseMultipartForm(service.MaxUploadBytes + 1<<20); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid multipart form",
			Field:   "picture",
		})
		return
	}

	file, _, err := r.FormFile("picture")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "picture file is required",
			Field:   "picture",
		})
		return
	}
	defer file.Close()

	updated, err := h.service.UpdateProfilePicture(r.Context(), user, file)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HandleUpdateNotifications replaces the notification preferences.
//
// HTTP: PUT /api/settings/notifications
// REQUEST BODY: {"newFeedback": true}
func (h *SettingsHandler) HandleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var prefs model.NotificationPrefs
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	updated, err := h.service.UpdateNotifications(r.Context(), user, prefs)
	if err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HandleChangePassword rotates the account password. The new password is
// held to the stricter change-time policy (12+ chars, all four classes).
//
// HTTP: PUT /api/settings/password
func (h *SettingsHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.service.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// ===== MODERATION =====

// HandleBlockUser / HandleUnblockUser manage the account block list.
//
// HTTP: POST /api/settings/blocked-users, DELETE /api/settings/blocked-users
func (h *SettingsHandler) HandleBlockUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(user *model.User, req blockUserRequest) error {
		return h.service.BlockUser(r.Context(), user, req.UserID)
	})
}

func (h *SettingsHandler) HandleUnblockUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(user *model.User, req blockUserRequest) error {
		return h.service.UnblockUser(r.Context(), user, req.UserID)
	})
}

// HandleBlockIP / HandleUnblockIP manage the blocked-IP list enforced at
// feedback submission.
//
// HTTP: POST /api/settings/blocked-ips, DELETE /api/settings/blocked-ips
func (h *SettingsHandler) HandleBlockIP(w http.ResponseWriter, r *http.Request) {
	h.moderateIP(w, r, func(user *model.User, req blockIPRequest) error {
		return h.service.BlockIP(r.Context(), user, req.IP)
	})
}

func (h *SettingsHandler) HandleUnblockIP(w http.ResponseWriter, r *http.Request) {
	h.moderateIP(w, r, func(user *model.User, req blockIPRequest) error {
		return h.service.UnblockIP(r.Context(), user, req.IP)
	})
}

func (h *SettingsHandler) moderate(w http.ResponseWriter, r *http.Request, apply func(*model.User, blockUserRequest) error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req blockUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := apply(user, req); err != nil {
		writeError(w, h.cookies, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (h *SettingsHandler) moderateIP(w http.ResponseWriter, r *http.Request, apply func(*model.User, blockIPRequest) error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	var req blockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := apply(user, req); err != nil {
		writeError(w, h.cookies, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// ===== ACCOUNT DELETION =====

// HandleRequestDeletion starts the two-step deletion flow by emailing the
// caller a confirmation token.
//
// HTTP: POST /api/settings/delete-account (behind the auth gate)
func (h *SettingsHandler) HandleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not logged in"})
		return
	}

	confirmURL := h.frontendURL + "/delete-account/confirm"
	if err := h.service.RequestAccountDeletion(r.Context(), user, confirmURL); err != nil {
		writeError(w, h.cookies, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "confirmation email sent; the link expires in 24 hours",
	})
}

// HandleConfirmDeletion completes the deletion. Deliberately NOT behind
// the auth gate: the user clicks the emailed link from any browser, and
// the token itself is the credential.
//
// HTTP: POST /api/settings/delete-account/confirm
// REQUEST BODY: {"userId": "...", "token": "..."}
func (h *SettingsHandler) HandleConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	var req confirmDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.service.ConfirmAccountDeletion(r.Context(), req.UserID, req.Token); err != nil {
		writeError(w, h.cookies, err)
		return
	}

	// The account is gone; any session cookie with it.
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
