package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/mail"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
	"github.com/sakif/spillr/internal/storage"
)

const (
	MaxBioLength       = 500
	MaxUploadBytes     = 5 << 20 // 5 MiB
	DeletionTokenTTL   = 24 * time.Hour
	deletionTokenBytes = 32

	mailTimeout = 15 * time.Second
)

// ProfilePatch carries the optional profile fields of an update request.
// Nil pointers mean "leave unchanged".
type ProfilePatch struct {
	Name        *string            `json:"name"`
	Bio         *string            `json:"bio"`
	SocialLinks *model.SocialLinks `json:"socialLinks"`
	Visibility  *string            `json:"profileVisibility"`
}

// SettingsService handles everything under the authenticated settings
// surface: profile, picture uploads, notifications, password changes,
// moderation lists, and the two-step account deletion flow.
type SettingsService struct {
	users     repository.UserRepository
	uploads   storage.UploadStore
	mailer    mail.Mailer
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewSettingsService(
	users repository.UserRepository,
	uploads storage.UploadStore,
	mailer mail.Mailer,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		users:     users,
		uploads:   uploads,
		mailer:    mailer,
		passwords: passwords,
		logger:    logger,
	}
}

// ===== PROFILE =====

// UpdateProfile applies a partial profile update. Note the username is NOT
// updatable — it is fixed at registration and wall slugs that embedded it
// stay as they were.
func (s *SettingsService) UpdateProfile(ctx context.Context, user *model.User, patch ProfilePatch) (*model.User, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "name cannot be empty")
		}
		user.Name = name
	}
	if patch.Bio != nil {
		bio := strings.TrimSpace(*patch.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return nil, apperror.ValidationFailed("bio",
				fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
		}
		user.Bio = bio
	}
	if patch.SocialLinks != nil {
		links := *patch.SocialLinks
		for field, link := range map[string]string{
			"twitter":   links.Twitter,
			"linkedin":  links.LinkedIn,
			"website":   links.Website,
			"instagram": links.Instagram,
		} {
			if err := validateLink(field, link); err != nil {
				return nil, err
			}
		}
		user.SocialLinks = links
	}
	if patch.Visibility != nil {
		switch *patch.Visibility {
		case model.VisibilityPublic, model.VisibilityPrivate, model.VisibilityFriends:
			user.ProfileVisibility = *patch.Visibility
		default:
			return nil, apperror.ValidationFailed("profileVisibility",
				"visibility must be one of: public, private, friends")
		}
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return s.users.GetByID(ctx, user.ID)
}

func validateLink(field, link string) error {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed(field, "must be a valid http(s) URL")
	}
	return nil
}

// allowed picture types, keyed by the MIME type http.DetectContentType
// reports, mapped to the stored file extension.
var pictureExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UpdateProfilePicture stores a new profile image and deletes the previous
// one. The content type is sniffed from the bytes, never trusted from the
// request.
func (s *SettingsService) UpdateProfilePicture(ctx context.Context, user *model.User, r io.Reader) (*model.User, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("picture", "uploaded file is empty")
	}
	if len(data) > MaxUploadBytes {
		return nil, apperror.ValidationFailed("picture", "image must be 5MB or less")
	}

	contentType := http.DetectContentType(data)
	ext, ok := pictureExtensions[contentType]
	if !ok {
		return nil, apperror.ValidationFailed("picture", "image must be a JPEG, PNG or WebP")
	}

	key := user.ID + "-" + uuid.NewString() + ext
	pictureURL, err := s.uploads.Save(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		s.logger.Error("failed to store profile picture",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing picture: %w", err)
	}

	if err := s.users.UpdateProfilePicture(ctx, user.ID, pictureURL); err != nil {
		return nil, fmt.Errorf("saving picture URL: %w", err)
	}

	// Best effort; an orphaned old image is not worth failing the update.
	if old := user.ProfilePicture; old != "" {
		if err := s.uploads.Delete(ctx, path.Base(old)); err != nil {
			s.logger.Warn("failed to delete old profile picture",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("profile picture updated", slog.String("userID", user.ID))
	return s.users.GetByID(ctx, user.ID)
}

// UpdateNotifications replaces the user's notification preferences.
func (s *SettingsService) UpdateNotifications(ctx context.Context, user *model.User, prefs model.NotificationPrefs) (*model.User, error) {
	if err := s.users.UpdateNotifications(ctx, user.ID, prefs); err != nil {
		return nil, fmt.Errorf("updating notifications: %w", err)
	}
	return s.users.GetByID(ctx, user.ID)
}

// ===== PASSWORD =====

// ChangePassword verifies the current password and sets a new one. The new
// password is held to a stricter standard than at registration. OAuth-only
// accounts have no password to change.
func (s *SettingsService) ChangePassword(ctx context.Context, user *model.User, current, next string) error {
	if user.IsOAuth() || user.PasswordHash == "" {
		return apperror.ValidationFailed("currentPassword",
			"this account signs in with Google and has no password")
	}

	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		return apperror.ValidationFailed("currentPassword", "current password is incorrect")
	}
	if err := s.passwords.ValidateChangedPassword(next); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	s.logger.Info("password changed", slog.String("userID", user.ID))
	return nil
}

// ===== MODERATION =====

// BlockUser adds another account to the caller's block list.
func (s *SettingsService) BlockUser(ctx context.Context, user *model.User, blockedID string) error {
	blockedID = strings.TrimSpace(blockedID)
	if blockedID == "" {
		return apperror.ValidationFailed("userId", "user ID is required")
	}
	if blockedID == user.ID {
		return apperror.ValidationFailed("userId", "you cannot block yourself")
	}
	// The target has to exist; blocking a random string would succeed
	// silently and confuse the unblock path later.
	if _, err := s.users.GetByID(ctx, blockedID); err != nil {
		return err
	}
	return s.users.BlockUser(ctx, user.ID, blockedID)
}

func (s *SettingsService) UnblockUser(ctx context.Context, user *model.User, blockedID string) error {
	blockedID = strings.TrimSpace(blockedID)
	if blockedID == "" {
		return apperror.ValidationFailed("userId", "user ID is required")
	}
	return s.users.UnblockUser(ctx, user.ID, blockedID)
}

// BlockIP blocks an IP from submitting feedback to any of the caller's
// walls. The IP is stored verbatim and matched by string equality.
func (s *SettingsService) BlockIP(ctx context.Context, user *model.User, ip string) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return apperror.ValidationFailed("ip", "IP address is required")
	}
	return s.users.BlockIP(ctx, user.ID, ip)
}

func (s *SettingsService) UnblockIP(ctx context.Context, user *model.User, ip string) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return apperror.ValidationFailed("ip", "IP address is required")
	}
	return s.users.UnblockIP(ctx, user.ID, ip)
}

// ===== ACCOUNT DELETION =====

// RequestAccountDeletion starts the two-step deletion flow: generate a
// single-use token, persist it with a 24h expiry, and email the user a
// confirmation link.
func (s *SettingsService) RequestAccountDeletion(ctx context.Context, user *model.User, confirmBaseURL string) error {
	buf := make([]byte, deletionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generating deletion token: %w", err)
	}
	token := hex.EncodeToString(buf)

	expiry := time.Now().Add(DeletionTokenTTL)
	if err := s.users.SetDeletionToken(ctx, user.ID, token, expiry); err != nil {
		return fmt.Errorf("storing deletion token: %w", err)
	}

	link := fmt.Sprintf("%s?token=%s&userId=%s", confirmBaseURL, token, user.ID)
	body := fmt.Sprintf(
		"<p>You asked to delete your account. This is permanent: your walls and all "+
			"feedback on them will be removed.</p>"+
			"<p><a href=%q>Confirm account deletion</a></p>"+
			"<p>The link expires in 24 hours. If this wasn't you, ignore this email.</p>",
		link)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.Send(ctx, user.Email, "Confirm account deletion", body); err != nil {
			s.logger.Error("failed to send deletion email",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	s.logger.Info("account deletion requested", slog.String("userID", user.ID))
	return nil
}

// ConfirmAccountDeletion completes the flow. It requires no session: the
// emailed token is the credential. The account, its walls and feedback go
// via cascading deletes; uploaded images are swept by key prefix.
func (s *SettingsService) ConfirmAccountDeletion(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return apperror.ValidationFailed("token", "token and userId are required")
	}

	stored, expiry, err := s.users.GetDeletionToken(ctx, userID)
	if err != nil {
		return err
	}
	if stored == "" || stored != token {
		return apperror.Forbidden("invalid deletion token")
	}
	if time.Now().After(expiry) {
		return apperror.Forbidden("deletion token has expired")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	if err := s.uploads.DeletePrefix(ctx, userID+"-"); err != nil {
		s.logger.Warn("failed to sweep uploads for deleted account",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("account deleted", slog.String("userID", userID))
	return nil
}
